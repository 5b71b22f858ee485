// Package textextract turns raw document bytes into a transcript by trying
// a fixed, ordered list of extraction methods until one yields text.
package textextract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/receipterror"
)

// Method names, in the default priority order.
const (
	MethodTextLayer  = "text-layer"
	MethodPDFLibrary = "pdf-library"
	MethodPdftotext  = "pdftotext"
	MethodOCR        = "ocr"
	MethodRawScan    = "raw-scan"
)

// DefaultOrder lists the methods from cheapest and most reliable to last
// resort.
var DefaultOrder = []string{MethodTextLayer, MethodPDFLibrary, MethodPdftotext, MethodOCR, MethodRawScan}

// Method extracts plain text from document bytes. An empty result with a
// nil error means the method ran but found nothing.
type Method interface {
	Name() string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Extractor is what the parser depends on.
type Extractor interface {
	Extract(ctx context.Context, doc models.RawDocument) (models.Transcript, error)
}

// Chain tries each method in order and returns the first usable transcript.
type Chain struct {
	methods []Method
	timeout time.Duration
	logger  logging.Logger
}

// NewChain builds a chain. A non-positive timeout disables the per-method
// deadline.
func NewChain(logger logging.Logger, timeout time.Duration, methods ...Method) *Chain {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Chain{methods: methods, timeout: timeout, logger: logger}
}

// Methods returns the method names in the order they are tried.
func (c *Chain) Methods() []string {
	names := make([]string, len(c.methods))
	for i, m := range c.methods {
		names[i] = m.Name()
	}
	return names
}

// Extract runs the chain against doc.
func (c *Chain) Extract(ctx context.Context, doc models.RawDocument) (models.Transcript, error) {
	log := c.logger.WithField(logging.FieldFingerprint, doc.Fingerprint)
	attempts := make([]receipterror.MethodAttempt, 0, len(c.methods))

	for _, method := range c.methods {
		start := time.Now()
		text, err := c.run(ctx, method, doc.Data)
		elapsed := time.Since(start).Milliseconds()

		if err == nil && !readable(text) {
			text = ""
		}
		if err != nil || text == "" {
			attempts = append(attempts, receipterror.MethodAttempt{Method: method.Name(), Err: err})
			entry := log.WithFields(logging.F(logging.FieldMethod, method.Name()), logging.F(logging.FieldDuration, elapsed))
			if err != nil {
				entry.WithError(err).Debug("Extraction method failed")
			} else {
				entry.Debug("Extraction method produced no text")
			}
			continue
		}

		transcript := models.NewTranscript(text, method.Name())
		log.Debug("Extracted transcript",
			logging.F(logging.FieldMethod, method.Name()),
			logging.F(logging.FieldCount, len(transcript.Lines)),
			logging.F(logging.FieldDuration, elapsed))
		return transcript, nil
	}

	return models.Transcript{}, &receipterror.ExtractionFailure{Fingerprint: doc.Fingerprint, Attempts: attempts}
}

type methodResult struct {
	text string
	err  error
}

// run executes one method under the chain timeout. A method that ignores
// its context is abandoned when the deadline passes.
func (c *Chain) run(ctx context.Context, method Method, data []byte) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan methodResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- methodResult{err: fmt.Errorf("%s panicked: %v", method.Name(), r)}
			}
		}()
		text, err := method.Extract(ctx, data)
		done <- methodResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", method.Name(), ctx.Err())
	}
}

// readable rejects text that is empty after trimming or that is mostly
// undecodable glyph codes.
func readable(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	var total, good int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			good++
		}
	}
	return good*100 >= total*85
}
