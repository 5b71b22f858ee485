// Package receiptparser runs the document pipeline: text extraction, layout
// classification, variant detection, field extraction and assembly.
package receiptparser

import (
	"context"

	"fjacquet/receipt-recon/internal/assembler"
	"fjacquet/receipt-recon/internal/fields"
	"fjacquet/receipt-recon/internal/layout"
	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/receipterror"
	"fjacquet/receipt-recon/internal/textextract"
)

// Parser turns raw documents into receipts. It holds no mutable state and
// is safe for concurrent use.
type Parser struct {
	extractor  textextract.Extractor
	classifier *layout.Classifier
	fields     *fields.Extractor
	logger     logging.Logger
}

// NewParser returns a parser using profile for labels, or the default
// profile when nil.
func NewParser(extractor textextract.Extractor, profile *layout.Profile, logger logging.Logger) *Parser {
	if profile == nil {
		profile = layout.DefaultProfile()
	}
	return &Parser{
		extractor:  extractor,
		classifier: layout.NewClassifier(profile),
		fields:     fields.NewExtractor(profile),
		logger:     logger.WithField(logging.FieldComponent, "parser"),
	}
}

// Parse extracts text from doc and assembles the receipt.
func (p *Parser) Parse(ctx context.Context, doc models.RawDocument) (*models.ParsedReceipt, error) {
	transcript, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	return p.parseTranscript(doc.Fingerprint, transcript)
}

// ParseText parses an already extracted transcript.
func (p *Parser) ParseText(fingerprint, text string) (*models.ParsedReceipt, error) {
	return p.parseTranscript(fingerprint, models.NewTranscript(text, "text"))
}

func (p *Parser) parseTranscript(fingerprint string, transcript models.Transcript) (*models.ParsedReceipt, error) {
	log := p.logger.WithFields(
		logging.F(logging.FieldFingerprint, fingerprint),
		logging.F(logging.FieldMethod, transcript.Method),
	)

	lines := p.classifier.Profile().ExpandInline(transcript.Lines)
	kind := p.classifier.Classify(lines)
	if kind == models.LayoutUnrecognized {
		log.WithError(&receipterror.StructureUnrecognized{Fingerprint: fingerprint}).
			Warn("No field labels found, falling back to sequential extraction")
	}

	variant := p.fields.DetectVariant(lines)
	f := p.fields.Extract(lines, kind, variant)
	log.Debug("Extracted fields",
		logging.F(logging.FieldLayout, kind),
		logging.F(logging.FieldVariant, variant),
		logging.F(logging.FieldCount, len(f.Names())))

	receipt, err := assembler.Assemble(transcript, kind, variant, f)
	if err != nil {
		log.WithError(err).Info("Receipt not assembled",
			logging.F(logging.FieldLayout, kind),
			logging.F(logging.FieldVariant, variant))
		return nil, err
	}
	receipt.Fingerprint = fingerprint
	if !receipt.TotalConsistent() {
		log.Warn("Total does not equal amount plus commission",
			logging.F(logging.FieldAmount, receipt.Amount.String()),
			logging.F("total", receipt.Total.String()))
	}
	return receipt, nil
}
