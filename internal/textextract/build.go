package textextract

import (
	"time"

	"fjacquet/receipt-recon/internal/logging"
)

// Options selects and configures the methods of a default chain.
type Options struct {
	Timeout       time.Duration
	Disabled      []string
	PdftotextPath string
	// OCR is appended in its slot only when non-nil.
	OCR Method
}

// BuildChain assembles the methods in DefaultOrder, skipping disabled ones.
func BuildChain(logger logging.Logger, opts Options) *Chain {
	disabled := make(map[string]bool, len(opts.Disabled))
	for _, name := range opts.Disabled {
		disabled[name] = true
	}

	var methods []Method
	for _, name := range DefaultOrder {
		if disabled[name] {
			continue
		}
		switch name {
		case MethodTextLayer:
			methods = append(methods, NewTextLayer())
		case MethodPDFLibrary:
			methods = append(methods, NewPDFLibrary())
		case MethodPdftotext:
			methods = append(methods, NewPdftotext(opts.PdftotextPath))
		case MethodOCR:
			if opts.OCR != nil {
				methods = append(methods, opts.OCR)
			}
		case MethodRawScan:
			methods = append(methods, NewRawScan())
		}
	}
	return NewChain(logger, opts.Timeout, methods...)
}
