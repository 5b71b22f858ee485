package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/receipt-recon/internal/matcher"
	"fjacquet/receipt-recon/internal/models"
)

// SQLitePool is a matcher.PaymentPool over the payments table. Claims are
// a conditional UPDATE, so concurrent claimers cannot both win.
type SQLitePool struct {
	db *sql.DB
}

var _ matcher.PaymentPool = (*SQLitePool)(nil)

const paymentColumns = `id, amount, currency, state, created_at, bound_receipt, reference`

func (p *SQLitePool) Add(ctx context.Context, pay models.PendingPayment) error {
	if strings.TrimSpace(pay.ID) == "" {
		return fmt.Errorf("payment id is required")
	}
	if pay.State == "" {
		pay.State = models.PaymentAwaitingConfirmation
	}
	if !pay.State.Valid() {
		return fmt.Errorf("invalid payment state %q", pay.State)
	}
	if pay.CreatedAt.IsZero() {
		pay.CreatedAt = time.Now()
	}
	var bound sql.NullString
	if pay.BoundReceipt != "" {
		bound = sql.NullString{String: pay.BoundReceipt, Valid: true}
	}

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		pay.ID, pay.Amount.Amount.String(), pay.Amount.Currency, pay.State, formatTime(pay.CreatedAt), bound, pay.Reference)
	if err != nil {
		return fmt.Errorf("failed to add payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", matcher.ErrPaymentExists, pay.ID)
	}
	return nil
}

func (p *SQLitePool) Get(ctx context.Context, id string) (models.PendingPayment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	pay, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pay, fmt.Errorf("%w: %s", matcher.ErrPaymentNotFound, id)
	}
	return pay, err
}

func (p *SQLitePool) List(ctx context.Context) ([]models.PendingPayment, error) {
	return p.query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at, id`)
}

// Candidates narrows by the canonical amount text in SQL, then applies the
// currency rule of Money.Settles.
func (p *SQLitePool) Candidates(ctx context.Context, amount models.Money) ([]models.PendingPayment, error) {
	rows, err := p.query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE amount = ? AND state = ? AND bound_receipt IS NULL
		ORDER BY created_at, id`,
		amount.Amount.String(), models.PaymentAwaitingConfirmation)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, pay := range rows {
		if pay.Amount.Settles(amount) {
			out = append(out, pay)
		}
	}
	return out, nil
}

func (p *SQLitePool) Claim(ctx context.Context, paymentID, fingerprint string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE payments SET bound_receipt = ?
		WHERE id = ? AND bound_receipt IS NULL AND state = ?
		AND NOT EXISTS (SELECT 1 FROM payments WHERE bound_receipt = ?)`,
		fingerprint, paymentID, models.PaymentAwaitingConfirmation, fingerprint)
	if err != nil {
		return false, fmt.Errorf("failed to claim payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim payment: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := p.Get(ctx, paymentID); err != nil {
		return false, err
	}
	return false, nil
}

func (p *SQLitePool) BoundTo(ctx context.Context, fingerprint string) (models.PendingPayment, bool, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE bound_receipt = ?`, fingerprint)
	pay, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingPayment{}, false, nil
	}
	if err != nil {
		return models.PendingPayment{}, false, err
	}
	return pay, true, nil
}

// SetState moves a payment to state, as the ledger does once a matched
// receipt has been acted on.
func (p *SQLitePool) SetState(ctx context.Context, id string, state models.PaymentState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid payment state %q", state)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE payments SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", matcher.ErrPaymentNotFound, id)
	}
	return nil
}

func (p *SQLitePool) query(ctx context.Context, query string, args ...any) ([]models.PendingPayment, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.PendingPayment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}

func scanPayment(row scanner) (models.PendingPayment, error) {
	var (
		pay                       models.PendingPayment
		amount, currency, created string
		state                     string
		bound, reference          sql.NullString
	)
	if err := row.Scan(&pay.ID, &amount, &currency, &state, &created, &bound, &reference); err != nil {
		return pay, err
	}
	money, err := models.NewMoneyFromString(amount, currency)
	if err != nil {
		return pay, err
	}
	pay.Amount = money
	pay.State = models.PaymentState(state)
	pay.BoundReceipt = bound.String
	pay.Reference = reference.String
	if pay.CreatedAt, err = parseTime(created); err != nil {
		return pay, err
	}
	return pay, nil
}
