package matcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
)

func rub(n int64) models.Money {
	return models.NewMoney(decimal.NewFromInt(n), models.CurrencyRUB)
}

func receipt(fp string, amount int64) *models.ParsedReceipt {
	return &models.ParsedReceipt{Fingerprint: fp, Amount: rub(amount), Status: models.StatusSuccess}
}

func payment(id string, amount int64, created time.Time) models.PendingPayment {
	return models.PendingPayment{ID: id, Amount: rub(amount), State: models.PaymentAwaitingConfirmation, CreatedAt: created}
}

var t0 = time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

func TestReconcile_SequentialCompetition(t *testing.T) {
	pool := NewMemoryPool(payment("p1", 1000, t0))
	m := NewMatcher(pool, logging.NewMockLogger())
	ctx := context.Background()

	first, err := m.Reconcile(ctx, receipt("r1", 1000))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionMatched, first.Decision)
	assert.Equal(t, "p1", first.PaymentID)

	second, err := m.Reconcile(ctx, receipt("r2", 1000))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionUnmatched, second.Decision)
	assert.Empty(t, second.PaymentID)
}

func TestReconcile_Ambiguous(t *testing.T) {
	pool := NewMemoryPool(payment("p2", 1000, t0.Add(time.Minute)), payment("p1", 1000, t0))
	m := NewMatcher(pool, logging.NewMockLogger())

	link, err := m.Reconcile(context.Background(), receipt("r1", 1000))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAmbiguous, link.Decision)
	assert.Equal(t, []string{"p1", "p2"}, link.Candidates)
	assert.Empty(t, link.PaymentID)

	for _, id := range []string{"p1", "p2"} {
		p, err := pool.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, p.BoundReceipt)
	}
}

func TestReconcile_CandidateFilter(t *testing.T) {
	confirmed := payment("confirmed", 1000, t0)
	confirmed.State = models.PaymentConfirmed
	bound := payment("bound", 1000, t0)
	bound.BoundReceipt = "other"
	usd := payment("usd", 1000, t0)
	usd.Amount.Currency = "USD"
	kopecks := payment("kopecks", 1000, t0)
	kopecks.Amount = models.NewMoney(decimal.RequireFromString("1000.01"), models.CurrencyRUB)
	noCurrency := payment("plain", 1000, t0)
	noCurrency.Amount.Currency = ""

	pool := NewMemoryPool(confirmed, bound, usd, kopecks, noCurrency)
	m := NewMatcher(pool, logging.NewMockLogger())

	link, err := m.Reconcile(context.Background(), receipt("r1", 1000))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionMatched, link.Decision)
	assert.Equal(t, "plain", link.PaymentID)
}

func TestReconcile_Idempotent(t *testing.T) {
	pool := NewMemoryPool(payment("p1", 1000, t0), payment("p2", 500, t0))
	m := NewMatcher(pool, logging.NewMockLogger())
	r := receipt("r1", 1000)

	first, err := m.Reconcile(context.Background(), r)
	require.NoError(t, err)
	require.NoError(t, pool.Add(context.Background(), payment("p3", 1000, t0)))

	again, err := m.Reconcile(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionMatched, again.Decision)
	assert.Equal(t, first.PaymentID, again.PaymentID)

	p3, err := pool.Get(context.Background(), "p3")
	require.NoError(t, err)
	assert.Empty(t, p3.BoundReceipt, "re-reconciling must not claim another payment")
}

func TestReconcile_ConcurrentAtMostOneBinding(t *testing.T) {
	const receipts = 50
	pool := NewMemoryPool(payment("p1", 1000, t0), payment("other", 700, t0))
	m := NewMatcher(pool, logging.NewMockLogger())

	links := make([]models.ReceiptPaymentLink, receipts)
	var wg sync.WaitGroup
	for i := 0; i < receipts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link, err := m.Reconcile(context.Background(), receipt(fmt.Sprintf("r%d", i), 1000))
			assert.NoError(t, err)
			links[i] = link
		}(i)
	}
	wg.Wait()

	matched := 0
	for _, l := range links {
		switch l.Decision {
		case models.DecisionMatched:
			matched++
			assert.Equal(t, "p1", l.PaymentID)
		case models.DecisionUnmatched:
		default:
			t.Fatalf("unexpected decision %s", l.Decision)
		}
	}
	assert.Equal(t, 1, matched)
}

func TestReconcile_ConcurrentManyPayments(t *testing.T) {
	const n = 20
	pool := NewMemoryPool()
	for i := 0; i < n/2; i++ {
		require.NoError(t, pool.Add(context.Background(), payment(fmt.Sprintf("p%d", i), int64(100+i), t0)))
	}
	m := NewMatcher(pool, logging.NewMockLogger())

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Reconcile(context.Background(), receipt(fmt.Sprintf("r%d", i), int64(100+i%(n/2))))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	payments, err := pool.List(context.Background())
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, p := range payments {
		require.NotEmpty(t, p.BoundReceipt, p.ID)
		assert.False(t, seen[p.BoundReceipt], "receipt %s bound twice", p.BoundReceipt)
		seen[p.BoundReceipt] = true
	}
}

func TestReconcile_LostClaimReselects(t *testing.T) {
	pool := &racingPool{MemoryPool: NewMemoryPool(payment("p1", 1000, t0), payment("p2", 1000, t0.Add(time.Minute)))}
	pool.beforeFirstCandidates = func() {
		_, _ = pool.MemoryPool.Claim(context.Background(), "p1", "rival")
	}
	m := NewMatcher(pool, logging.NewMockLogger())

	link, err := m.Reconcile(context.Background(), receipt("r1", 1000))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionMatched, link.Decision)
	assert.Equal(t, "p2", link.PaymentID)
}

// racingPool serves a stale candidate list once to simulate losing a race.
type racingPool struct {
	*MemoryPool
	beforeFirstCandidates func()
	served                bool
}

func (r *racingPool) Candidates(ctx context.Context, amount models.Money) ([]models.PendingPayment, error) {
	if !r.served {
		r.served = true
		p1, _ := r.Get(ctx, "p1")
		r.beforeFirstCandidates()
		return []models.PendingPayment{p1}, nil
	}
	return r.MemoryPool.Candidates(ctx, amount)
}

func TestBind(t *testing.T) {
	pool := NewMemoryPool(payment("p1", 1000, t0), payment("p2", 1000, t0), payment("small", 10, t0))
	m := NewMatcher(pool, logging.NewMockLogger())
	ctx := context.Background()
	r := receipt("r1", 1000)

	_, err := m.Bind(ctx, r, "small")
	assert.Error(t, err)
	_, err = m.Bind(ctx, r, "missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	link, err := m.Bind(ctx, r, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionMatched, link.Decision)
	assert.Equal(t, "p2", link.PaymentID)

	again, err := m.Bind(ctx, r, "p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", again.PaymentID)

	_, err = m.Bind(ctx, r, "p1")
	assert.Error(t, err)
	_, err = m.Bind(ctx, receipt("r2", 1000), "p2")
	assert.Error(t, err)
}

func TestMemoryPool_Add(t *testing.T) {
	pool := NewMemoryPool()
	ctx := context.Background()

	require.NoError(t, pool.Add(ctx, models.PendingPayment{ID: "p1", Amount: rub(5)}))
	p, err := pool.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAwaitingConfirmation, p.State)

	assert.ErrorIs(t, pool.Add(ctx, models.PendingPayment{ID: "p1"}), ErrPaymentExists)
	assert.Error(t, pool.Add(ctx, models.PendingPayment{}))
	assert.Error(t, pool.Add(ctx, models.PendingPayment{ID: "x", State: "paid"}))
}
