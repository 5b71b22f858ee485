package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"fjacquet/receipt-recon/internal/engine"
	"fjacquet/receipt-recon/internal/logging"
)

func TestSummarize(t *testing.T) {
	results := []engine.Result{
		{Fingerprint: "a", Outcome: engine.OutcomeMatched},
		{Fingerprint: "b", Outcome: engine.OutcomeMatched},
		{Fingerprint: "c", Outcome: engine.OutcomeAmbiguous},
		{Fingerprint: "d", Outcome: engine.OutcomeUnmatched},
		{Fingerprint: "e", Outcome: engine.OutcomeExtractionFailure, Err: errors.New("no text")},
		{Fingerprint: "f", Outcome: engine.OutcomeDuplicate},
		{},
	}

	s := Summarize(results)
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.ByOutcome[engine.OutcomeMatched])
	assert.Equal(t, "ambiguous=1 duplicate=1 extraction_failure=1 matched=2 unmatched=1", s.String())
	assert.Len(t, s.Attention, 2)

	logger := logging.NewMockLogger()
	s.Log(logger)
	assert.True(t, logger.HasEntry("INFO", "Batch finished"))
	assert.Len(t, logger.EntriesByLevel("WARN"), 2)
}

func TestNeedsAttention(t *testing.T) {
	tests := []struct {
		outcome engine.Outcome
		want    bool
	}{
		{engine.OutcomeMatched, false},
		{engine.OutcomeUnmatched, false},
		{engine.OutcomeRejected, false},
		{engine.OutcomeDuplicate, false},
		{engine.OutcomeAmbiguous, true},
		{engine.OutcomeFieldMissing, true},
		{engine.OutcomeFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsAttention(tt.outcome))
		})
	}
}
