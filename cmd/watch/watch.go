// Package watch implements the watch command
package watch

import (
	"context"
	"path/filepath"
	"time"

	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/cmd/root"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/watcher"

	"github.com/spf13/cobra"
)

var inbox string

// Cmd represents the watch command
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an inbox directory and ingest new receipts",
	Long: `Watch an inbox directory and ingest every receipt PDF dropped into it.

Handled documents are moved to the processed directory. Documents that need
an operator are moved to the failed directory. Relative directories are
resolved against the inbox. The command runs until interrupted.

Example:
  receipt-recon watch --inbox /var/spool/receipts`,
	RunE: watchFunc,
}

func init() {
	Cmd.Flags().StringVar(&inbox, "inbox", "", "Inbox directory (default watcher.inbox)")
}

func watchFunc(cmd *cobra.Command, args []string) error {
	ctx := common.Context(cmd)
	cfg := root.AppConfig

	app, err := root.GetContainer(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	opts := Options(inbox, cfg.Watcher.Inbox, cfg.Watcher.ProcessedDir, cfg.Watcher.FailedDir, cfg.Watcher.SettleMS)

	eng := app.GetEngine()
	w := watcher.New(opts, func(ctx context.Context, doc models.RawDocument) error {
		_, err := eng.Ingest(ctx, doc)
		return err
	}, root.Log)
	return w.Run(ctx)
}

// Options resolves watcher directories. flagInbox wins over the configured
// inbox, and relative processed and failed directories live inside it.
func Options(flagInbox, inbox, processed, failed string, settleMS int) watcher.Options {
	if flagInbox != "" {
		inbox = flagInbox
	}
	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(inbox, dir)
	}
	return watcher.Options{
		Inbox:        inbox,
		ProcessedDir: resolve(processed),
		FailedDir:    resolve(failed),
		Settle:       time.Duration(settleMS) * time.Millisecond,
	}
}
