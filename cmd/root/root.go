// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"

	"fjacquet/receipt-recon/internal/config"
	"fjacquet/receipt-recon/internal/container"
	"fjacquet/receipt-recon/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// ConfigFile is an explicit configuration file, empty to search defaults
	ConfigFile string

	// LogLevel overrides log.level when set
	LogLevel string

	// AppConfig is the configuration loaded before any subcommand runs
	AppConfig *config.Config

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "receipt-recon",
		Short: "Ingest transfer receipts and reconcile them against pending payments.",
		Long: `receipt-recon extracts the transfer details from bank receipt PDFs,
classifies their layout, and binds each successful receipt to the single
pending payment it settles. Ambiguous and unmatched receipts are kept for
review.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			Log.Info("Welcome to receipt-recon!")
			Log.Info("Use --help to see available commands")
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return Setup()
		},
	}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "Config file (default searches $HOME/.receipt-recon, .receipt-recon and .)")
	Cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

// Setup loads the environment and configuration and rebuilds the shared logger.
func Setup() error {
	config.LoadEnv()

	cfg, err := config.InitializeConfig(ConfigFile)
	if err != nil {
		return err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	AppConfig = cfg
	Log = logging.NewLogrusAdapterFromLogger(config.ConfigureLoggingFromConfig(cfg))
	return nil
}

// GetContainer builds the application container from the loaded configuration.
// The caller owns the container and must close it.
func GetContainer(ctx context.Context, parseOnly bool) (*container.Container, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return container.NewContainer(ctx, AppConfig, container.Options{ParseOnly: parseOnly, Logger: Log})
}
