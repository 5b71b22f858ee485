// Package batch summarizes the results of ingesting many documents.
package batch

import (
	"fmt"
	"sort"
	"strings"

	"fjacquet/receipt-recon/internal/engine"
	"fjacquet/receipt-recon/internal/logging"
)

// Summary counts results by outcome and keeps the ones needing attention.
type Summary struct {
	Total     int
	ByOutcome map[engine.Outcome]int
	// Attention lists results an operator has to look at: ambiguous
	// matches and documents that could not be turned into receipts.
	Attention []engine.Result
}

// Summarize aggregates results.
func Summarize(results []engine.Result) Summary {
	s := Summary{ByOutcome: make(map[engine.Outcome]int)}
	for _, r := range results {
		if r.Outcome == "" {
			continue
		}
		s.Total++
		s.ByOutcome[r.Outcome]++
		if NeedsAttention(r.Outcome) {
			s.Attention = append(s.Attention, r)
		}
	}
	return s
}

// NeedsAttention reports whether outcome requires manual handling.
// Unmatched receipts are retried automatically and duplicates and
// rejections are final.
func NeedsAttention(o engine.Outcome) bool {
	switch o {
	case engine.OutcomeAmbiguous, engine.OutcomeFieldMissing, engine.OutcomeExtractionFailure, engine.OutcomeFailed:
		return true
	}
	return false
}

// String renders counts as "matched=2 unmatched=1", sorted by outcome.
func (s Summary) String() string {
	outcomes := make([]string, 0, len(s.ByOutcome))
	for o := range s.ByOutcome {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)

	parts := make([]string, len(outcomes))
	for i, o := range outcomes {
		parts[i] = fmt.Sprintf("%s=%d", o, s.ByOutcome[engine.Outcome(o)])
	}
	return strings.Join(parts, " ")
}

// Log writes the summary and one warning per result needing attention.
func (s Summary) Log(logger logging.Logger) {
	logger.Info("Batch finished",
		logging.F(logging.FieldCount, s.Total),
		logging.F("outcomes", s.String()))
	for _, r := range s.Attention {
		entry := logger.WithFields(
			logging.F(logging.FieldFingerprint, r.Fingerprint),
			logging.F(logging.FieldMessageID, r.MessageID),
			logging.F(logging.FieldDecision, r.Outcome))
		if r.Err != nil {
			entry = entry.WithError(r.Err)
		}
		entry.Warn("Document needs attention")
	}
}
