// Package watcher feeds documents dropped into an inbox directory to a
// handler and files them away by outcome.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"fjacquet/receipt-recon/internal/fileutils"
	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/receipterror"
)

// Source tags documents read by the watcher.
const Source = "inbox"

// Handler processes one document.
type Handler func(ctx context.Context, doc models.RawDocument) error

// Options configure a Watcher.
type Options struct {
	Inbox        string
	ProcessedDir string
	FailedDir    string
	// Settle is how long a file must be unmodified before it is read.
	Settle time.Duration
}

// Watcher watches one inbox directory.
type Watcher struct {
	opts    Options
	handler Handler
	logger  logging.Logger
	pending map[string]struct{}
}

// New returns a watcher.
func New(opts Options, handler Handler, logger logging.Logger) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	return &Watcher{
		opts:    opts,
		handler: handler,
		logger:  logger.WithField(logging.FieldComponent, "watcher"),
		pending: make(map[string]struct{}),
	}
}

// Run processes documents already in the inbox, then watches it until ctx
// is done.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.opts.Inbox, w.opts.ProcessedDir, w.opts.FailedDir} {
		if err := fileutils.EnsureDirectoryExists(dir); err != nil {
			return err
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.opts.Inbox); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Inbox, err)
	}
	w.logger.Info("Watching inbox", logging.F(logging.FieldFile, w.opts.Inbox))

	existing, err := fileutils.ListDocuments(w.opts.Inbox)
	if err != nil {
		return err
	}
	for _, path := range existing {
		w.pending[path] = struct{}{}
	}

	ticker := time.NewTicker(w.opts.Settle / 2)
	defer ticker.Stop()
	w.flush(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create|fsnotify.Write) && fileutils.IsDocument(ev.Name) {
				w.pending[ev.Name] = struct{}{}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("File watcher error")
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush processes every pending file that has settled.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	for path := range w.pending {
		if !fileutils.FileExists(path) {
			delete(w.pending, path)
			continue
		}
		if !fileutils.Stable(path, w.opts.Settle, now) {
			continue
		}
		delete(w.pending, path)
		w.Process(ctx, path)
	}
}

// Process reads and hands over one file, then moves it to the processed or
// failed directory.
func (w *Watcher) Process(ctx context.Context, path string) {
	log := w.logger.WithField(logging.FieldFile, path)

	doc, err := fileutils.ReadDocument(path, Source)
	if err == nil {
		err = w.handler(ctx, doc)
	}

	dst := w.opts.ProcessedDir
	if !settled(err) {
		dst = w.opts.FailedDir
	}
	moved, mvErr := fileutils.MoveFile(path, dst)
	if mvErr != nil {
		log.WithError(mvErr).Error("Failed to move document")
		return
	}
	if err != nil {
		log.WithError(err).Debug("Document handled with error", logging.F("moved_to", moved))
		return
	}
	log.Debug("Document handled", logging.F("moved_to", moved))
}

// settled reports whether err is a final outcome needing no operator.
func settled(err error) bool {
	switch receipterror.Kind(err) {
	case "", "duplicate", "rejected":
		return true
	}
	return false
}
