package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/matcher"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/receipterror"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "recon.db"), 5000, logging.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rub(n int64) models.Money {
	return models.NewMoney(decimal.NewFromInt(n), models.CurrencyRUB)
}

func testReceipt(fp string, amount int64) *models.ParsedReceipt {
	ts := time.Date(2024, 3, 12, 14, 5, 33, 0, time.UTC)
	return &models.ParsedReceipt{
		Fingerprint: fp,
		Variant:     models.VariantByPhone,
		Layout:      models.LayoutColumnar,
		Timestamp:   &ts,
		Amount:      rub(amount),
		Status:      models.StatusSuccess,
		SenderName:  "Ivan P.",
		ByPhone:     &models.ByPhoneDetails{Phone: "+79123456789"},
		Transcript:  models.NewTranscript("Сумма 1 000 ₽\nУспешно", "text-layer"),
	}
}

func TestOpen_Migrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "recon.db")
	s, err := Open(context.Background(), path, 1000, logging.NewMockLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an up-to-date database applies nothing.
	logger := logging.NewMockLogger()
	s, err = Open(context.Background(), path, 1000, logger)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.False(t, logger.HasEntry("INFO", "Applied migration"))

	_, err = Open(context.Background(), " ", 1000, logger)
	assert.Error(t, err)
}

func TestReceipts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := testReceipt("fp1", 1000)
	doc := models.RawDocument{Fingerprint: "fp1", MessageID: "m1", ArrivedAt: time.Now()}

	has, err := s.HasReceipt(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.SaveReceipt(ctx, r, doc))
	err = s.SaveReceipt(ctx, r, doc)
	assert.True(t, errors.Is(err, &receipterror.DuplicateReceipt{}), "got %v", err)

	has, err = s.HasReceipt(ctx, "fp1")
	require.NoError(t, err)
	assert.True(t, has)

	got, err := s.GetReceipt(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, r.Fingerprint, got.Fingerprint)
	assert.True(t, got.Amount.Equal(r.Amount))
	assert.Equal(t, r.ByPhone, got.ByPhone)
	assert.Equal(t, r.Transcript, got.Transcript)
	require.NotNil(t, got.Timestamp)
	assert.True(t, got.Timestamp.Equal(*r.Timestamp))

	_, err = s.GetReceipt(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, fp := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveReceipt(ctx, testReceipt(fp, 1000), models.RawDocument{Fingerprint: fp}))
	}
	t0 := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveLink(ctx, models.ReceiptPaymentLink{Fingerprint: "a", Decision: models.DecisionUnmatched, Amount: rub(1000), DecidedAt: t0}))
	require.NoError(t, s.SaveLink(ctx, models.ReceiptPaymentLink{Fingerprint: "b", Decision: models.DecisionAmbiguous, Candidates: []string{"p1", "p2"}, Amount: rub(1000), DecidedAt: t0.Add(time.Second)}))
	require.NoError(t, s.SaveLink(ctx, models.ReceiptPaymentLink{Fingerprint: "c", Decision: models.DecisionMatched, PaymentID: "p3", Amount: rub(1000), DecidedAt: t0.Add(2 * time.Second)}))

	// Latest decision wins, except over a matched one.
	require.NoError(t, s.SaveLink(ctx, models.ReceiptPaymentLink{Fingerprint: "a", Decision: models.DecisionMatched, PaymentID: "p9", Amount: rub(1000), DecidedAt: t0.Add(3 * time.Second)}))
	require.NoError(t, s.SaveLink(ctx, models.ReceiptPaymentLink{Fingerprint: "c", Decision: models.DecisionUnmatched, Amount: rub(1000), DecidedAt: t0.Add(4 * time.Second)}))

	a, err := s.GetLink(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionMatched, a.Decision)
	assert.Equal(t, "p9", a.PaymentID)

	c, err := s.GetLink(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionMatched, c.Decision)
	assert.Equal(t, "p3", c.PaymentID)

	ambiguous, err := s.ListLinks(ctx, models.DecisionAmbiguous)
	require.NoError(t, err)
	require.Len(t, ambiguous, 1)
	assert.Equal(t, []string{"p1", "p2"}, ambiguous[0].Candidates)
	assert.True(t, ambiguous[0].DecidedAt.Equal(t0.Add(time.Second)))

	all, err := s.ListLinks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "b", all[0].Fingerprint)

	_, err = s.GetLink(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUnlinked(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	none, err := s.ListUnlinked(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	for _, fp := range []string{"a", "b"} {
		require.NoError(t, s.SaveReceipt(ctx, testReceipt(fp, 1000), models.RawDocument{Fingerprint: fp}))
	}
	require.NoError(t, s.SaveLink(ctx, models.ReceiptPaymentLink{Fingerprint: "a", Decision: models.DecisionUnmatched, Amount: rub(1000), DecidedAt: time.Now()}))

	unlinked, err := s.ListUnlinked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, unlinked)
}

func TestRecordDocument(t *testing.T) {
	s := openTestStore(t)
	doc := models.NewRawDocument([]byte("x"), "m", time.Now(), "inbox")
	require.NoError(t, s.RecordDocument(context.Background(), doc, "rejected", "status missing"))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE fingerprint = ?`, doc.Fingerprint).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLitePool(t *testing.T) {
	pool := openTestStore(t).Payments()
	ctx := context.Background()
	t0 := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, pool.Add(ctx, models.PendingPayment{ID: "p2", Amount: rub(1000), CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, pool.Add(ctx, models.PendingPayment{ID: "p1", Amount: models.NewMoney(decimal.RequireFromString("1000.00"), models.CurrencyRUB), CreatedAt: t0}))
	require.NoError(t, pool.Add(ctx, models.PendingPayment{ID: "usd", Amount: models.NewMoney(decimal.NewFromInt(1000), "USD"), CreatedAt: t0}))
	require.NoError(t, pool.Add(ctx, models.PendingPayment{ID: "done", Amount: rub(1000), State: models.PaymentConfirmed, CreatedAt: t0}))
	assert.ErrorIs(t, pool.Add(ctx, models.PendingPayment{ID: "p1", Amount: rub(1)}), matcher.ErrPaymentExists)
	assert.Error(t, pool.Add(ctx, models.PendingPayment{ID: "bad", State: "paid"}))

	candidates, err := pool.Candidates(ctx, rub(1000))
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "p1", candidates[0].ID)
	assert.Equal(t, "p2", candidates[1].ID)

	won, err := pool.Claim(ctx, "p1", "fp1")
	require.NoError(t, err)
	assert.True(t, won)
	won, err = pool.Claim(ctx, "p1", "fp2")
	require.NoError(t, err)
	assert.False(t, won, "a bound payment cannot be claimed again")
	won, err = pool.Claim(ctx, "p2", "fp1")
	require.NoError(t, err)
	assert.False(t, won, "a receipt binds at most one payment")
	_, err = pool.Claim(ctx, "nope", "fp1")
	assert.ErrorIs(t, err, matcher.ErrPaymentNotFound)

	bound, ok, err := pool.BoundTo(ctx, "fp1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p1", bound.ID)

	_, ok, err = pool.BoundTo(ctx, "fp2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, pool.SetState(ctx, "p2", models.PaymentCancelled))
	candidates, err = pool.Candidates(ctx, rub(1000))
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.ErrorIs(t, pool.SetState(ctx, "nope", models.PaymentConfirmed), matcher.ErrPaymentNotFound)

	all, err := pool.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLitePool_ConcurrentReconcile(t *testing.T) {
	pool := openTestStore(t).Payments()
	ctx := context.Background()
	require.NoError(t, pool.Add(ctx, models.PendingPayment{ID: "only", Amount: rub(1000)}))
	m := matcher.NewMatcher(pool, logging.NewMockLogger())

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matched int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link, err := m.Reconcile(ctx, testReceipt(fmt.Sprintf("r%d", i), 1000))
			assert.NoError(t, err)
			if link.Decision == models.DecisionMatched {
				mu.Lock()
				matched++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, matched)
}
