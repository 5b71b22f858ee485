// Package resolve implements the resolve command
package resolve

import (
	"fmt"

	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/cmd/root"

	"github.com/spf13/cobra"
)

var (
	receipt string
	payment string
)

// Cmd represents the resolve command
var Cmd = &cobra.Command{
	Use:   "resolve",
	Short: "Bind an ambiguous receipt to a chosen payment",
	Long: `Record an operator decision: bind the receipt with the given fingerprint
to one pending payment. The payment must still be awaiting confirmation,
unbound, and settled by the receipt amount.

Example:
  receipt-recon resolve --receipt 9f2c... --payment order-1042`,
	RunE: resolveFunc,
}

func init() {
	Cmd.Flags().StringVar(&receipt, "receipt", "", "Receipt fingerprint")
	Cmd.Flags().StringVar(&payment, "payment", "", "Payment id")
	_ = Cmd.MarkFlagRequired("receipt")
	_ = Cmd.MarkFlagRequired("payment")
}

func resolveFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	link, err := app.GetEngine().Resolve(ctx, receipt, payment)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s matched -> %s\n", link.Fingerprint, link.PaymentID)
	return err
}
