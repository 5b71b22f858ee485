package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"fjacquet/receipt-recon/internal/models"
)

var (
	// ErrPaymentNotFound is returned for an unknown payment id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentExists is returned when adding a payment id twice.
	ErrPaymentExists = errors.New("payment already exists")
)

// PaymentPool is the ledger's set of pending payments.
//
// Claim must be an atomic compare-and-set: it binds fingerprint to the
// payment only while the payment is still awaiting confirmation and
// unbound, and reports whether this call made the binding.
type PaymentPool interface {
	Add(ctx context.Context, p models.PendingPayment) error
	Get(ctx context.Context, id string) (models.PendingPayment, error)
	List(ctx context.Context) ([]models.PendingPayment, error)
	// Candidates returns claimable payments whose amount settles amount,
	// oldest first.
	Candidates(ctx context.Context, amount models.Money) ([]models.PendingPayment, error)
	Claim(ctx context.Context, paymentID, fingerprint string) (bool, error)
	// BoundTo returns the payment bound to fingerprint, if any.
	BoundTo(ctx context.Context, fingerprint string) (models.PendingPayment, bool, error)
}

// MemoryPool is an in-process PaymentPool: an arena of payments indexed by
// id and by bound fingerprint, guarded by one mutex.
type MemoryPool struct {
	mu       sync.Mutex
	payments []models.PendingPayment
	byID     map[string]int
	byBound  map[string]int
}

// NewMemoryPool returns a pool holding payments.
func NewMemoryPool(payments ...models.PendingPayment) *MemoryPool {
	p := &MemoryPool{byID: make(map[string]int), byBound: make(map[string]int)}
	for _, pay := range payments {
		_ = p.Add(context.Background(), pay)
	}
	return p
}

func (p *MemoryPool) Add(_ context.Context, pay models.PendingPayment) error {
	if pay.ID == "" {
		return fmt.Errorf("payment id is required")
	}
	if pay.State == "" {
		pay.State = models.PaymentAwaitingConfirmation
	}
	if !pay.State.Valid() {
		return fmt.Errorf("invalid payment state %q", pay.State)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[pay.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPaymentExists, pay.ID)
	}
	p.payments = append(p.payments, pay)
	idx := len(p.payments) - 1
	p.byID[pay.ID] = idx
	if pay.BoundReceipt != "" {
		p.byBound[pay.BoundReceipt] = idx
	}
	return nil
}

func (p *MemoryPool) Get(_ context.Context, id string) (models.PendingPayment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.byID[id]
	if !ok {
		return models.PendingPayment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	return p.payments[idx], nil
}

func (p *MemoryPool) List(_ context.Context) ([]models.PendingPayment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.PendingPayment, len(p.payments))
	copy(out, p.payments)
	sortPayments(out)
	return out, nil
}

func (p *MemoryPool) Candidates(_ context.Context, amount models.Money) ([]models.PendingPayment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PendingPayment
	for _, pay := range p.payments {
		if pay.Claimable() && pay.Amount.Settles(amount) {
			out = append(out, pay)
		}
	}
	sortPayments(out)
	return out, nil
}

func (p *MemoryPool) Claim(_ context.Context, paymentID, fingerprint string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.byID[paymentID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	if !p.payments[idx].Claimable() {
		return false, nil
	}
	if _, bound := p.byBound[fingerprint]; bound {
		return false, nil
	}
	p.payments[idx].BoundReceipt = fingerprint
	p.byBound[fingerprint] = idx
	return true, nil
}

func (p *MemoryPool) BoundTo(_ context.Context, fingerprint string) (models.PendingPayment, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.byBound[fingerprint]
	if !ok {
		return models.PendingPayment{}, false, nil
	}
	return p.payments[idx], true, nil
}

func sortPayments(ps []models.PendingPayment) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
