package common_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/receipt-recon/cmd/common"
	"fjacquet/receipt-recon/internal/engine"
	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIngester implements common.BatchIngester for testing
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) IngestBatch(ctx context.Context, docs []models.RawDocument, progress func(engine.Result)) ([]engine.Result, error) {
	args := m.Called(ctx, docs)
	results := args.Get(0).([]engine.Result)
	for _, r := range results {
		progress(r)
	}
	return results, args.Error(1)
}

func writeDocs(t *testing.T, names ...string) string {
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF "+name), 0600))
	}
	return dir
}

func TestCollectInputs(t *testing.T) {
	dir := writeDocs(t, "b.pdf", "a.pdf", "notes.txt")

	paths, err := common.CollectInputs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.pdf")}, paths)

	single := filepath.Join(dir, "notes.txt")
	paths, err = common.CollectInputs(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, paths)

	_, err = common.CollectInputs("")
	assert.Error(t, err)
	_, err = common.CollectInputs(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestIngestFiles(t *testing.T) {
	dir := writeDocs(t, "a.pdf", "b.pdf")
	paths, err := common.CollectInputs(dir)
	require.NoError(t, err)

	results := []engine.Result{
		{Fingerprint: "aaa", MessageID: "a.pdf", Outcome: engine.OutcomeMatched},
		{Fingerprint: "bbb", MessageID: "b.pdf", Outcome: engine.OutcomeDuplicate},
	}
	ing := &MockIngester{}
	ing.On("IngestBatch", mock.Anything, mock.MatchedBy(func(docs []models.RawDocument) bool {
		return len(docs) == 2 && docs[0].MessageID == "a.pdf" && docs[0].Source == common.SourceCLI &&
			docs[0].Fingerprint == models.Fingerprint([]byte("%PDF a.pdf"))
	})).Return(results, nil)

	var progress bytes.Buffer
	got, err := common.IngestFiles(context.Background(), ing, paths, &progress, logging.NewMockLogger())
	require.NoError(t, err)
	assert.Equal(t, results, got)
	assert.NotEmpty(t, progress.String())
	ing.AssertExpectations(t)
}

func TestIngestFiles_UnreadableFileIsAResult(t *testing.T) {
	dir := writeDocs(t, "a.pdf")
	paths := []string{filepath.Join(dir, "gone.pdf"), filepath.Join(dir, "a.pdf")}

	ok := engine.Result{Fingerprint: "aaa", MessageID: "a.pdf", Outcome: engine.OutcomeUnmatched}
	ing := &MockIngester{}
	ing.On("IngestBatch", mock.Anything, mock.MatchedBy(func(docs []models.RawDocument) bool {
		return len(docs) == 1 && docs[0].MessageID == "a.pdf"
	})).Return([]engine.Result{ok}, nil)

	logger := logging.NewMockLogger()
	got, err := common.IngestFiles(context.Background(), ing, paths, nil, logger)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gone.pdf", got[0].MessageID)
	assert.Equal(t, engine.OutcomeFailed, got[0].Outcome)
	assert.Error(t, got[0].Err)
	assert.Equal(t, ok, got[1])
	assert.True(t, logger.HasEntry("WARN", "Skipping unreadable document"))
	ing.AssertExpectations(t)
}

func TestIngestFiles_NothingReadable(t *testing.T) {
	ing := &MockIngester{}
	got, err := common.IngestFiles(context.Background(), ing, []string{filepath.Join(t.TempDir(), "gone.pdf")}, nil, logging.NewMockLogger())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, engine.OutcomeFailed, got[0].Outcome)
	ing.AssertNotCalled(t, "IngestBatch", mock.Anything, mock.Anything)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	err := common.PrintResults(&buf, []engine.Result{
		{Fingerprint: "0123456789abcdef", MessageID: "m1", Outcome: engine.OutcomeMatched,
			Link: &models.ReceiptPaymentLink{PaymentID: "p-1"}},
		{Fingerprint: "ff", MessageID: "m2", Outcome: engine.OutcomeAmbiguous,
			Link: &models.ReceiptPaymentLink{Candidates: []string{"p-2", "p-3"}}},
		{Fingerprint: "ee", MessageID: "m3", Outcome: engine.OutcomeRejected, Err: errors.New("status missing")},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "0123456789ab matched")
	assert.Contains(t, out, "m1 -> p-1")
	assert.Contains(t, out, "candidates: p-2,p-3")
	assert.Contains(t, out, "m3: status missing")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, common.WriteYAML(&buf, map[string]string{"variant": "by-phone"}))
	assert.Equal(t, "variant: by-phone\n", buf.String())
}
