package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/receipt-recon/cmd/export"
	"fjacquet/receipt-recon/cmd/ingest"
	"fjacquet/receipt-recon/cmd/parse"
	"fjacquet/receipt-recon/cmd/payments"
	"fjacquet/receipt-recon/cmd/reconcile"
	"fjacquet/receipt-recon/cmd/resolve"
	"fjacquet/receipt-recon/cmd/root"
	"fjacquet/receipt-recon/cmd/watch"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(ingest.Cmd)
	root.Cmd.AddCommand(parse.Cmd)
	root.Cmd.AddCommand(watch.Cmd)
	root.Cmd.AddCommand(reconcile.Cmd)
	root.Cmd.AddCommand(resolve.Cmd)
	root.Cmd.AddCommand(payments.Cmd)
	root.Cmd.AddCommand(export.Cmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
