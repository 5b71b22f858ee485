// Package parse implements the parse command
package parse

import (
	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/cmd/root"
	"fjacquet/receipt-recon/internal/fileutils"

	"github.com/spf13/cobra"
)

var (
	input          string
	showTranscript bool
)

// Cmd represents the parse command
var Cmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a receipt without storing it",
	Long: `Extract and print the fields of one receipt PDF as YAML.

Nothing is written to the database and no payment is claimed.

Example:
  receipt-recon parse -i receipt.pdf --transcript`,
	RunE: parseFunc,
}

func init() {
	Cmd.Flags().StringVarP(&input, "input", "i", "", "Receipt PDF")
	Cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Include the extracted text lines")
	_ = Cmd.MarkFlagRequired("input")
}

func parseFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	doc, err := fileutils.ReadDocument(input, common.SourceCLI)
	if err != nil {
		return err
	}

	app, err := root.GetContainer(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	receipt, err := app.GetParser().Parse(ctx, doc)
	if err != nil {
		return err
	}
	if !showTranscript {
		receipt.Transcript.Lines = nil
	}
	return common.WriteYAML(cmd.OutOrStdout(), receipt)
}
