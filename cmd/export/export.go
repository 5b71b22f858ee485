// Package export implements the export command
package export

import (
	"fmt"

	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/cmd/root"
	csvio "fjacquet/receipt-recon/internal/common"
	"fjacquet/receipt-recon/internal/models"

	"github.com/spf13/cobra"
)

var (
	output   string
	decision string
)

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export reconciliation decisions to CSV",
	Long: `Write the latest decision for every receipt to CSV, using the
configured delimiter. Without -o the CSV is written to standard output.

Example:
  receipt-recon export -o links.csv --decision ambiguous`,
	RunE: exportFunc,
}

func init() {
	Cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV file")
	Cmd.Flags().StringVar(&decision, "decision", "", "Only export links with this decision (matched, ambiguous, unmatched)")
}

func exportFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)
	if decision != "" && !models.Decision(decision).Valid() {
		return fmt.Errorf("unknown decision %q", decision)
	}

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	links, err := app.GetStore().ListLinks(ctx, models.Decision(decision))
	if err != nil {
		return err
	}

	headers := root.AppConfig.CSV.IncludeHeaders
	if output == "" {
		return csvio.WriteLinks(cmd.OutOrStdout(), links, headers)
	}
	return csvio.WriteLinksToCSV(links, output, headers, root.Log)
}
