// Package reconcile implements the reconcile command
package reconcile

import (
	"fmt"

	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/cmd/root"
	"fjacquet/receipt-recon/internal/models"

	"github.com/spf13/cobra"
)

// Cmd represents the reconcile command
var Cmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Retry reconciliation of unmatched receipts",
	Long: `Re-run reconciliation for every stored receipt whose last decision is
unmatched, typically after new pending payments were added. Ambiguous
receipts are left for the resolve command.`,
	RunE: reconcileFunc,
}

func reconcileFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	links, err := app.GetEngine().RetryUnmatched(ctx)
	out := cmd.OutOrStdout()
	matched := 0
	for _, l := range links {
		if l.Decision == models.DecisionMatched {
			matched++
			_, _ = fmt.Fprintf(out, "%s matched -> %s\n", l.Fingerprint, l.PaymentID)
		}
	}
	_, _ = fmt.Fprintf(out, "%d of %d unmatched receipts reconciled\n", matched, len(links))
	return err
}
