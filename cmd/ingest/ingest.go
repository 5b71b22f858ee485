// Package ingest implements the ingest command
package ingest

import (
	"io"

	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/cmd/root"
	"fjacquet/receipt-recon/internal/batch"
	"fjacquet/receipt-recon/internal/logging"

	"github.com/spf13/cobra"
)

var (
	input string
	quiet bool
)

// Cmd represents the ingest command
var Cmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest receipt PDFs and reconcile them",
	Long: `Ingest one receipt PDF or every PDF in a directory.

Each document is fingerprinted, parsed, stored and reconciled against the
pending payments. Documents already ingested are reported as duplicates.

Example:
  receipt-recon ingest -i receipts/`,
	RunE: ingestFunc,
}

func init() {
	Cmd.Flags().StringVarP(&input, "input", "i", "", "Receipt PDF or directory of receipts")
	Cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not draw a progress bar")
	_ = Cmd.MarkFlagRequired("input")
}

func ingestFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	paths, err := common.CollectInputs(input)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		root.Log.Warn("No documents found", logging.F(logging.FieldFile, input))
		return nil
	}

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			root.Log.WithError(cerr).Warn("Failed to close container")
		}
	}()

	var progress io.Writer
	if !quiet {
		progress = cmd.ErrOrStderr()
	}
	results, err := common.IngestFiles(ctx, app.GetEngine(), paths, progress, root.Log)
	if perr := common.PrintResults(cmd.OutOrStdout(), results); perr != nil {
		return perr
	}
	batch.Summarize(results).Log(root.Log)
	return err
}
