// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	CSV struct {
		Delimiter      string `mapstructure:"delimiter" yaml:"delimiter"`
		IncludeHeaders bool   `mapstructure:"include_headers" yaml:"include_headers"`
	} `mapstructure:"csv" yaml:"csv"`

	Extraction struct {
		MethodTimeoutSeconds int      `mapstructure:"method_timeout_seconds" yaml:"method_timeout_seconds"`
		Disabled             []string `mapstructure:"disabled" yaml:"disabled"`
		PdftotextPath        string   `mapstructure:"pdftotext_path" yaml:"pdftotext_path"`
		OCR                  struct {
			Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
			Model             string `mapstructure:"model" yaml:"model"`
			RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
			APIKey            string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
		} `mapstructure:"ocr" yaml:"ocr"`
	} `mapstructure:"extraction" yaml:"extraction"`

	Layout struct {
		ProfilePath string `mapstructure:"profile_path" yaml:"profile_path"`
	} `mapstructure:"layout" yaml:"layout"`

	Store struct {
		Path            string `mapstructure:"path" yaml:"path"`
		BusyTimeoutMS   int    `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms"`
		DefaultCurrency string `mapstructure:"default_currency" yaml:"default_currency"`
	} `mapstructure:"store" yaml:"store"`

	Engine struct {
		Workers           int `mapstructure:"workers" yaml:"workers"`
		DuplicateCacheTTL int `mapstructure:"duplicate_cache_ttl_minutes" yaml:"duplicate_cache_ttl_minutes"`
	} `mapstructure:"engine" yaml:"engine"`

	Watcher struct {
		Inbox        string `mapstructure:"inbox" yaml:"inbox"`
		ProcessedDir string `mapstructure:"processed_dir" yaml:"processed_dir"`
		FailedDir    string `mapstructure:"failed_dir" yaml:"failed_dir"`
		SettleMS     int    `mapstructure:"settle_ms" yaml:"settle_ms"`
	} `mapstructure:"watcher" yaml:"watcher"`
}

// MethodTimeout returns the per-method extraction timeout.
func (c *Config) MethodTimeout() time.Duration {
	return time.Duration(c.Extraction.MethodTimeoutSeconds) * time.Second
}

// InitializeConfig loads configuration from defaults, an optional config
// file, and RECON_* environment variables. An empty configFile searches the
// usual locations.
func InitializeConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.receipt-recon")
		v.AddConfigPath(".receipt-recon")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix("RECON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case configFile != "":
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		case !errors.As(err, &notFound):
			fmt.Fprintf(os.Stderr, "Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. The API key is always read from the unprefixed variable
	if err := v.BindEnv("extraction.ocr.api_key", "GEMINI_API_KEY"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind GEMINI_API_KEY environment variable: %v\n", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("csv.delimiter", ",")
	v.SetDefault("csv.include_headers", true)

	v.SetDefault("extraction.method_timeout_seconds", 20)
	v.SetDefault("extraction.disabled", []string{})
	v.SetDefault("extraction.pdftotext_path", "pdftotext")
	v.SetDefault("extraction.ocr.enabled", false)
	v.SetDefault("extraction.ocr.model", "gemini-2.0-flash")
	v.SetDefault("extraction.ocr.requests_per_minute", 10)

	v.SetDefault("layout.profile_path", "")

	v.SetDefault("store.path", "receipt-recon.db")
	v.SetDefault("store.busy_timeout_ms", 5000)
	v.SetDefault("store.default_currency", "RUB")

	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.duplicate_cache_ttl_minutes", 60)

	v.SetDefault("watcher.inbox", "inbox")
	v.SetDefault("watcher.processed_dir", "processed")
	v.SetDefault("watcher.failed_dir", "failed")
	v.SetDefault("watcher.settle_ms", 500)
}

var knownMethods = map[string]bool{
	"text-layer": true, "pdf-library": true, "pdftotext": true, "ocr": true, "raw-scan": true,
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if len([]rune(config.CSV.Delimiter)) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.Delimiter)
	}

	if config.Extraction.MethodTimeoutSeconds < 1 || config.Extraction.MethodTimeoutSeconds > 300 {
		return fmt.Errorf("extraction.method_timeout_seconds must be between 1 and 300, got: %d", config.Extraction.MethodTimeoutSeconds)
	}

	for _, name := range config.Extraction.Disabled {
		if !knownMethods[name] {
			return fmt.Errorf("extraction.disabled: unknown method %q", name)
		}
	}

	if config.Extraction.OCR.Enabled {
		if config.Extraction.OCR.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required when OCR extraction is enabled")
		}
		if config.Extraction.OCR.RequestsPerMinute < 1 || config.Extraction.OCR.RequestsPerMinute > 1000 {
			return fmt.Errorf("extraction.ocr.requests_per_minute must be between 1 and 1000, got: %d", config.Extraction.OCR.RequestsPerMinute)
		}
	}

	if config.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	if config.Engine.Workers < 1 || config.Engine.Workers > 64 {
		return fmt.Errorf("engine.workers must be between 1 and 64, got: %d", config.Engine.Workers)
	}

	return nil
}

// ConfigureLoggingFromConfig configures logging based on the Config struct
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
