// Package engine ingests documents end to end: duplicate detection,
// parsing, persistence and reconciliation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/matcher"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/receipterror"
)

// Outcome tags a Result.
type Outcome string

const (
	OutcomeMatched           Outcome = "matched"
	OutcomeAmbiguous         Outcome = "ambiguous"
	OutcomeUnmatched         Outcome = "unmatched"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeRejected          Outcome = "rejected"
	OutcomeFieldMissing      Outcome = "field_missing"
	OutcomeExtractionFailure Outcome = "extraction_failure"
	OutcomeFailed            Outcome = "failed"
)

// Parser turns a document into a receipt.
type Parser interface {
	Parse(ctx context.Context, doc models.RawDocument) (*models.ParsedReceipt, error)
}

// Store persists receipts and links.
type Store interface {
	HasReceipt(ctx context.Context, fingerprint string) (bool, error)
	SaveReceipt(ctx context.Context, r *models.ParsedReceipt, doc models.RawDocument) error
	GetReceipt(ctx context.Context, fingerprint string) (*models.ParsedReceipt, error)
	SaveLink(ctx context.Context, link models.ReceiptPaymentLink) error
	GetLink(ctx context.Context, fingerprint string) (models.ReceiptPaymentLink, error)
	ListLinks(ctx context.Context, decision models.Decision) ([]models.ReceiptPaymentLink, error)
	ListUnlinked(ctx context.Context) ([]string, error)
	RecordDocument(ctx context.Context, doc models.RawDocument, outcome, detail string) error
}

// Result is the outcome of ingesting one document. Err is set for every
// outcome that did not produce a link.
type Result struct {
	Fingerprint string
	MessageID   string
	Outcome     Outcome
	Receipt     *models.ParsedReceipt
	Link        *models.ReceiptPaymentLink
	Err         error
}

// Options tune an Engine.
type Options struct {
	Workers           int
	DuplicateCacheTTL time.Duration
}

// Engine coordinates the pipeline. Parsing runs concurrently; only the
// payment claim is serialized, inside the pool.
type Engine struct {
	parser  Parser
	store   Store
	matcher *matcher.Matcher
	seen    *cache.Cache
	workers int
	logger  logging.Logger
}

// New returns an engine.
func New(parser Parser, store Store, m *matcher.Matcher, logger logging.Logger, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.DuplicateCacheTTL <= 0 {
		opts.DuplicateCacheTTL = time.Hour
	}
	return &Engine{
		parser:  parser,
		store:   store,
		matcher: m,
		seen:    cache.New(opts.DuplicateCacheTTL, 2*opts.DuplicateCacheTTL),
		workers: opts.Workers,
		logger:  logger.WithField(logging.FieldComponent, "engine"),
	}
}

// Ingest processes one document. Duplicates are detected before parsing
// and never reach reconciliation.
func (e *Engine) Ingest(ctx context.Context, doc models.RawDocument) (Result, error) {
	log := e.logger.WithFields(
		logging.F(logging.FieldFingerprint, doc.Fingerprint),
		logging.F(logging.FieldMessageID, doc.MessageID),
	)
	res := Result{Fingerprint: doc.Fingerprint, MessageID: doc.MessageID}

	dup, err := e.isDuplicate(ctx, doc.Fingerprint)
	if err != nil {
		return e.fail(ctx, log, doc, res, err)
	}
	if dup {
		return e.fail(ctx, log, doc, res, &receipterror.DuplicateReceipt{Fingerprint: doc.Fingerprint})
	}

	receipt, err := e.parser.Parse(ctx, doc)
	if err != nil {
		return e.fail(ctx, log, doc, res, err)
	}
	res.Receipt = receipt

	if err := e.store.SaveReceipt(ctx, receipt, doc); err != nil {
		if errors.Is(err, &receipterror.DuplicateReceipt{}) {
			e.seen.SetDefault(doc.Fingerprint, struct{}{})
		}
		return e.fail(ctx, log, doc, res, err)
	}
	e.seen.SetDefault(doc.Fingerprint, struct{}{})

	link, err := e.reconcile(ctx, receipt)
	if err != nil {
		log.WithError(err).Warn("Receipt saved without a decision, reconcile will retry it")
		return e.fail(ctx, log, doc, res, err)
	}
	res.Link = &link
	res.Outcome = Outcome(link.Decision)
	e.record(ctx, log, doc, res.Outcome, "")

	log.Info("Document ingested",
		logging.F(logging.FieldDecision, link.Decision),
		logging.F(logging.FieldAmount, receipt.Amount.String()))
	return res, nil
}

// IngestBatch ingests docs with at most Workers in flight. Per-document
// failures are reported in the results; only cancellation aborts the
// batch. progress, if set, is called once per finished document.
func (e *Engine) IngestBatch(ctx context.Context, docs []models.RawDocument, progress func(Result)) ([]Result, error) {
	results := make([]Result, len(docs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, _ := e.Ingest(gctx, doc)
			results[i] = res
			if progress != nil {
				mu.Lock()
				progress(res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// RetryUnmatched re-runs reconciliation for receipts whose last decision is
// unmatched, and for saved receipts that never got a decision because
// reconciliation failed. Ambiguous links need an operator and are left alone.
func (e *Engine) RetryUnmatched(ctx context.Context) ([]models.ReceiptPaymentLink, error) {
	pending, err := e.store.ListLinks(ctx, models.DecisionUnmatched)
	if err != nil {
		return nil, err
	}
	unlinked, err := e.store.ListUnlinked(ctx)
	if err != nil {
		return nil, err
	}
	fingerprints := make([]string, 0, len(pending)+len(unlinked))
	for _, old := range pending {
		fingerprints = append(fingerprints, old.Fingerprint)
	}
	fingerprints = append(fingerprints, unlinked...)

	links := make([]models.ReceiptPaymentLink, 0, len(fingerprints))
	for _, fp := range fingerprints {
		receipt, err := e.store.GetReceipt(ctx, fp)
		if err != nil {
			return links, err
		}
		link, err := e.reconcile(ctx, receipt)
		if err != nil {
			return links, err
		}
		links = append(links, link)
	}
	e.logger.Info("Retried unmatched receipts",
		logging.F(logging.FieldCount, len(links)),
		logging.F("without_decision", len(unlinked)))
	return links, nil
}

// Resolve binds an ambiguous or unmatched receipt to the payment chosen by
// an operator.
func (e *Engine) Resolve(ctx context.Context, fingerprint, paymentID string) (models.ReceiptPaymentLink, error) {
	current, err := e.store.GetLink(ctx, fingerprint)
	if err != nil {
		return models.ReceiptPaymentLink{}, err
	}
	if current.Decision == models.DecisionMatched && current.PaymentID != paymentID {
		return models.ReceiptPaymentLink{}, fmt.Errorf("receipt %s is already matched to payment %s", fingerprint, current.PaymentID)
	}

	receipt, err := e.store.GetReceipt(ctx, fingerprint)
	if err != nil {
		return models.ReceiptPaymentLink{}, err
	}
	link, err := e.matcher.Bind(ctx, receipt, paymentID)
	if err != nil {
		return models.ReceiptPaymentLink{}, err
	}
	if err := e.store.SaveLink(ctx, link); err != nil {
		return models.ReceiptPaymentLink{}, err
	}
	return link, nil
}

func (e *Engine) reconcile(ctx context.Context, receipt *models.ParsedReceipt) (models.ReceiptPaymentLink, error) {
	link, err := e.matcher.Reconcile(ctx, receipt)
	if err != nil {
		return link, err
	}
	if err := e.store.SaveLink(ctx, link); err != nil {
		return link, err
	}
	return link, nil
}

func (e *Engine) isDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	if _, ok := e.seen.Get(fingerprint); ok {
		return true, nil
	}
	has, err := e.store.HasReceipt(ctx, fingerprint)
	if err != nil {
		return false, err
	}
	if has {
		e.seen.SetDefault(fingerprint, struct{}{})
	}
	return has, nil
}

func (e *Engine) fail(ctx context.Context, log logging.Logger, doc models.RawDocument, res Result, err error) (Result, error) {
	res.Err = err
	res.Outcome = outcomeOf(err)

	switch res.Outcome {
	case OutcomeDuplicate:
		log.Info("Duplicate document skipped")
	case OutcomeRejected:
		log.WithError(err).Info("Document rejected")
	case OutcomeFailed:
		log.WithError(err).Error("Document ingestion failed")
	default:
		log.WithError(err).Warn("Document needs manual handling")
	}
	if res.Outcome != OutcomeDuplicate {
		e.record(ctx, log, doc, res.Outcome, err.Error())
	}
	return res, err
}

func (e *Engine) record(ctx context.Context, log logging.Logger, doc models.RawDocument, outcome Outcome, detail string) {
	if err := e.store.RecordDocument(ctx, doc, string(outcome), detail); err != nil {
		log.WithError(err).Warn("Failed to record document outcome")
	}
}

func outcomeOf(err error) Outcome {
	switch receipterror.Kind(err) {
	case "duplicate":
		return OutcomeDuplicate
	case "rejected":
		return OutcomeRejected
	case "field_missing":
		return OutcomeFieldMissing
	case "extraction_failure":
		return OutcomeExtractionFailure
	default:
		return OutcomeFailed
	}
}
