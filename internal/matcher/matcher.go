// Package matcher binds parsed receipts to pending payments.
package matcher

import (
	"context"
	"fmt"
	"time"

	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
)

// maxClaimAttempts bounds how often a lost claim re-runs candidate
// selection.
const maxClaimAttempts = 8

// Matcher reconciles receipts against a PaymentPool. Reconciliation never
// guesses: more than one candidate is escalated as ambiguous.
type Matcher struct {
	pool   PaymentPool
	logger logging.Logger
	now    func() time.Time
}

// NewMatcher returns a matcher over pool.
func NewMatcher(pool PaymentPool, logger logging.Logger) *Matcher {
	return &Matcher{
		pool:   pool,
		logger: logger.WithField(logging.FieldComponent, "matcher"),
		now:    time.Now,
	}
}

// Pool returns the underlying payment pool.
func (m *Matcher) Pool() PaymentPool {
	return m.pool
}

// Reconcile decides the link for receipt. Calling it again for an already
// matched receipt returns the existing binding and claims nothing.
func (m *Matcher) Reconcile(ctx context.Context, receipt *models.ParsedReceipt) (models.ReceiptPaymentLink, error) {
	log := m.logger.WithFields(
		logging.F(logging.FieldFingerprint, receipt.Fingerprint),
		logging.F(logging.FieldAmount, receipt.Amount.String()),
	)

	for attempt := 1; attempt <= maxClaimAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.ReceiptPaymentLink{}, err
		}

		bound, ok, err := m.pool.BoundTo(ctx, receipt.Fingerprint)
		if err != nil {
			return models.ReceiptPaymentLink{}, fmt.Errorf("failed to look up binding: %w", err)
		}
		if ok {
			log.Debug("Receipt already bound", logging.F(logging.FieldPaymentID, bound.ID))
			return m.link(receipt, models.DecisionMatched, bound.ID, nil), nil
		}

		candidates, err := m.pool.Candidates(ctx, receipt.Amount)
		if err != nil {
			return models.ReceiptPaymentLink{}, fmt.Errorf("failed to select candidates: %w", err)
		}

		switch len(candidates) {
		case 0:
			log.Info("No candidate payment", logging.F(logging.FieldDecision, models.DecisionUnmatched))
			return m.link(receipt, models.DecisionUnmatched, "", nil), nil
		case 1:
			won, err := m.pool.Claim(ctx, candidates[0].ID, receipt.Fingerprint)
			if err != nil {
				return models.ReceiptPaymentLink{}, fmt.Errorf("failed to claim payment %s: %w", candidates[0].ID, err)
			}
			if won {
				log.Info("Receipt matched",
					logging.F(logging.FieldPaymentID, candidates[0].ID),
					logging.F(logging.FieldDecision, models.DecisionMatched))
				return m.link(receipt, models.DecisionMatched, candidates[0].ID, nil), nil
			}
			log.Debug("Claim lost, reselecting", logging.F(logging.FieldPaymentID, candidates[0].ID))
		default:
			ids := make([]string, len(candidates))
			for i, c := range candidates {
				ids[i] = c.ID
			}
			log.Warn("Several candidate payments, manual decision required",
				logging.F(logging.FieldCandidates, ids),
				logging.F(logging.FieldDecision, models.DecisionAmbiguous))
			return m.link(receipt, models.DecisionAmbiguous, "", ids), nil
		}
	}
	return models.ReceiptPaymentLink{}, fmt.Errorf("gave up claiming a payment for %s after %d attempts", receipt.Fingerprint, maxClaimAttempts)
}

// Bind records an operator decision: receipt settles paymentID. The payment
// must still be claimable and carry the receipt amount.
func (m *Matcher) Bind(ctx context.Context, receipt *models.ParsedReceipt, paymentID string) (models.ReceiptPaymentLink, error) {
	bound, ok, err := m.pool.BoundTo(ctx, receipt.Fingerprint)
	if err != nil {
		return models.ReceiptPaymentLink{}, fmt.Errorf("failed to look up binding: %w", err)
	}
	if ok {
		if bound.ID != paymentID {
			return models.ReceiptPaymentLink{}, fmt.Errorf("receipt %s is already bound to payment %s", receipt.Fingerprint, bound.ID)
		}
		return m.link(receipt, models.DecisionMatched, bound.ID, nil), nil
	}

	payment, err := m.pool.Get(ctx, paymentID)
	if err != nil {
		return models.ReceiptPaymentLink{}, err
	}
	if !payment.Amount.Settles(receipt.Amount) {
		return models.ReceiptPaymentLink{}, fmt.Errorf("payment %s amount %s does not match receipt amount %s",
			paymentID, payment.Amount, receipt.Amount)
	}
	won, err := m.pool.Claim(ctx, paymentID, receipt.Fingerprint)
	if err != nil {
		return models.ReceiptPaymentLink{}, fmt.Errorf("failed to claim payment %s: %w", paymentID, err)
	}
	if !won {
		return models.ReceiptPaymentLink{}, fmt.Errorf("payment %s is no longer claimable", paymentID)
	}

	m.logger.Info("Receipt bound by operator",
		logging.F(logging.FieldFingerprint, receipt.Fingerprint),
		logging.F(logging.FieldPaymentID, paymentID))
	return m.link(receipt, models.DecisionMatched, paymentID, nil), nil
}

func (m *Matcher) link(r *models.ParsedReceipt, d models.Decision, paymentID string, candidates []string) models.ReceiptPaymentLink {
	return models.ReceiptPaymentLink{
		Fingerprint: r.Fingerprint,
		PaymentID:   paymentID,
		Decision:    d,
		Candidates:  candidates,
		Amount:      r.Amount,
		DecidedAt:   m.now().UTC(),
	}
}
