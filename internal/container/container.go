// Package container provides dependency injection for the receipt-recon
// application. It centralizes the creation and wiring of all application
// dependencies, making them explicit and testable.
package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/receipt-recon/internal/common"
	"fjacquet/receipt-recon/internal/config"
	"fjacquet/receipt-recon/internal/engine"
	"fjacquet/receipt-recon/internal/layout"
	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/matcher"
	"fjacquet/receipt-recon/internal/receiptparser"
	"fjacquet/receipt-recon/internal/store"
	"fjacquet/receipt-recon/internal/textextract"
)

// Container holds all application dependencies and provides methods to
// access them. It is immutable after creation.
type Container struct {
	logger  logging.Logger
	config  *config.Config
	chain   *textextract.Chain
	parser  *receiptparser.Parser
	store   *store.Store
	matcher *matcher.Matcher
	engine  *engine.Engine

	closers []func() error
}

// Options select which parts of the graph are built.
type Options struct {
	// ParseOnly skips the database, for dry runs that never persist.
	ParseOnly bool
	// Logger overrides the logger built from configuration.
	Logger logging.Logger
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.CSV.Delimiter != "" {
		common.SetDelimiter([]rune(cfg.CSV.Delimiter)[0])
	}

	c := &Container{logger: logger, config: cfg}

	profile := layout.DefaultProfile()
	if cfg.Layout.ProfilePath != "" {
		p, err := layout.LoadProfile(cfg.Layout.ProfilePath)
		if err != nil {
			return nil, err
		}
		profile = p
	}

	chainOpts := textextract.Options{
		Timeout:       cfg.MethodTimeout(),
		Disabled:      cfg.Extraction.Disabled,
		PdftotextPath: cfg.Extraction.PdftotextPath,
	}
	if cfg.Extraction.OCR.Enabled {
		recognizer, err := textextract.NewGeminiRecognizer(ctx, cfg.Extraction.OCR.APIKey, cfg.Extraction.OCR.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create OCR client: %w", err)
		}
		c.closers = append(c.closers, recognizer.Close)
		chainOpts.OCR = textextract.NewOCR(recognizer, cfg.Extraction.OCR.RequestsPerMinute)
	}
	c.chain = textextract.BuildChain(logger, chainOpts)
	c.parser = receiptparser.NewParser(c.chain, profile, logger)

	if opts.ParseOnly {
		return c, nil
	}

	s, err := store.Open(ctx, cfg.Store.Path, cfg.Store.BusyTimeoutMS, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.store = s
	c.closers = append(c.closers, s.Close)

	c.matcher = matcher.NewMatcher(s.Payments(), logger)
	c.engine = engine.New(c.parser, s, c.matcher, logger, engine.Options{
		Workers:           cfg.Engine.Workers,
		DuplicateCacheTTL: time.Duration(cfg.Engine.DuplicateCacheTTL) * time.Minute,
	})

	logger.Debug("Container ready",
		logging.F("methods", c.chain.Methods()),
		logging.F("store", cfg.Store.Path))
	return c, nil
}

// GetLogger returns the application logger.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the configuration the container was built from.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetParser returns the document parser.
func (c *Container) GetParser() *receiptparser.Parser {
	return c.parser
}

// GetExtractor returns the text extraction chain.
func (c *Container) GetExtractor() *textextract.Chain {
	return c.chain
}

// GetStore returns the audit store, nil in parse-only mode.
func (c *Container) GetStore() *store.Store {
	return c.store
}

// GetPayments returns the payment pool, nil in parse-only mode.
func (c *Container) GetPayments() *store.SQLitePool {
	if c.store == nil {
		return nil
	}
	return c.store.Payments()
}

// GetMatcher returns the reconciliation matcher, nil in parse-only mode.
func (c *Container) GetMatcher() *matcher.Matcher {
	return c.matcher
}

// GetEngine returns the ingestion engine, nil in parse-only mode.
func (c *Container) GetEngine() *engine.Engine {
	return c.engine
}

// Close releases resources in reverse creation order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
