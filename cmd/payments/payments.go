// Package payments implements the payments command and its subcommands
package payments

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/cmd/root"
	csvio "fjacquet/receipt-recon/internal/common"
	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"

	"github.com/spf13/cobra"
)

var (
	id        string
	amount    string
	currency  string
	reference string
	state     string
	input     string
	asYAML    bool
)

// Cmd represents the payments command
var Cmd = &cobra.Command{
	Use:   "payments",
	Short: "Manage the pending-payment pool",
	Long: `Add, import, list and update the pending payments receipts are
reconciled against.`,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add one pending payment",
	Long: `Add one payment awaiting confirmation.

Example:
  receipt-recon payments add --id order-1042 --amount 4500`,
	RunE: addFunc,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import pending payments from CSV",
	Long: `Import pending payments from a CSV file with the columns
ID, Amount, Currency, State, CreatedAt and Reference. Empty currency uses
store.default_currency and empty state means awaiting confirmation.`,
	RunE: importFunc,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending payments",
	RunE:  listFunc,
}

var setStateCmd = &cobra.Command{
	Use:   "set-state",
	Short: "Change the ledger state of a payment",
	Long: `Change the ledger state of a payment. Only payments awaiting
confirmation can be bound to receipts.`,
	RunE: setStateFunc,
}

func init() {
	addCmd.Flags().StringVar(&id, "id", "", "Payment id")
	addCmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 4500 or 1234.56")
	addCmd.Flags().StringVar(&currency, "currency", "", "Currency code (default store.default_currency)")
	addCmd.Flags().StringVar(&reference, "reference", "", "Free-form reference")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("amount")

	importCmd.Flags().StringVarP(&input, "input", "i", "", "CSV file of payments")
	_ = importCmd.MarkFlagRequired("input")

	listCmd.Flags().BoolVar(&asYAML, "yaml", false, "Print as YAML")

	setStateCmd.Flags().StringVar(&id, "id", "", "Payment id")
	setStateCmd.Flags().StringVar(&state, "state", "", "awaiting_confirmation, confirmed or cancelled")
	_ = setStateCmd.MarkFlagRequired("id")
	_ = setStateCmd.MarkFlagRequired("state")

	Cmd.AddCommand(addCmd, importCmd, listCmd, setStateCmd)
}

func addFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	row := csvio.PaymentRow{ID: id, Amount: amount, Currency: strings.ToUpper(currency), Reference: reference}
	pay, err := row.Payment(root.AppConfig.Store.DefaultCurrency)
	if err != nil {
		return err
	}

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.GetPayments().Add(ctx, pay); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %s %s\n", pay.ID, pay.Amount)
	return err
}

func importFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	rows, err := csvio.ReadCSVFile[csvio.PaymentRow](input, root.Log)
	if err != nil {
		return err
	}

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	pool := app.GetPayments()
	added := 0
	for _, row := range rows {
		pay, err := row.Payment(root.AppConfig.Store.DefaultCurrency)
		if err != nil {
			return err
		}
		if err := pool.Add(ctx, pay); err != nil {
			root.Log.WithError(err).Warn("Payment not imported", logging.F(logging.FieldPaymentID, pay.ID))
			continue
		}
		added++
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d payments\n", added, len(rows))
	return err
}

func listFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	payments, err := app.GetPayments().List(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if asYAML {
		return common.WriteYAML(out, payments)
	}
	for _, p := range payments {
		line := fmt.Sprintf("%-20s %14s %-22s %s", p.ID, p.Amount, p.State, p.CreatedAt.Format(time.RFC3339))
		if p.BoundReceipt != "" {
			line += " bound " + p.BoundReceipt
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func setStateFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)

	next := models.PaymentState(state)
	if !next.Valid() {
		return fmt.Errorf("invalid payment state %q", state)
	}

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.GetPayments().SetState(ctx, id, next); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", id, next)
	return err
}
