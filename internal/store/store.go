// Package store persists receipts, reconciliation links and the pending
// payment pool in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/receipterror"
)

// ErrNotFound is returned when a receipt or link does not exist.
var ErrNotFound = errors.New("not found")

// Fixed-width UTC timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed audit store.
type Store struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
// The ":memory:" path opens a private in-memory database.
func Open(ctx context.Context, path string, busyTimeoutMS int, logger logging.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), models.PermissionDirectory); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; claims rely on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger.WithField(logging.FieldComponent, "store")}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Payments returns the payment pool sharing this database.
func (s *Store) Payments() *SQLitePool {
	return &SQLitePool{db: s.db}
}

// SaveReceipt stores r once. A second save of the same fingerprint fails
// with DuplicateReceipt.
func (s *Store) SaveReceipt(ctx context.Context, r *models.ParsedReceipt, doc models.RawDocument) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	var ts sql.NullString
	if r.Timestamp != nil {
		ts = sql.NullString{String: r.Timestamp.Format(time.RFC3339), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (fingerprint, variant, layout, amount, currency, sender, receipt_time,
			message_id, source, arrived_at, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING`,
		r.Fingerprint, r.Variant, r.Layout, r.Amount.Amount.String(), r.Amount.Currency, r.SenderName, ts,
		doc.MessageID, doc.Source, formatTime(doc.ArrivedAt), string(body), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	if n == 0 {
		return &receipterror.DuplicateReceipt{Fingerprint: r.Fingerprint}
	}
	return nil
}

// HasReceipt reports whether a receipt with fingerprint is stored.
func (s *Store) HasReceipt(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM receipts WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up receipt: %w", err)
	}
	return true, nil
}

// GetReceipt loads a stored receipt.
func (s *Store) GetReceipt(ctx context.Context, fingerprint string) (*models.ParsedReceipt, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM receipts WHERE fingerprint = ?`, fingerprint).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}
	var r models.ParsedReceipt
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt %s: %w", fingerprint, err)
	}
	return &r, nil
}

// SaveLink records the latest decision for a receipt. A matched link is
// permanent and is never overwritten.
func (s *Store) SaveLink(ctx context.Context, link models.ReceiptPaymentLink) error {
	candidates, err := json.Marshal(nonNil(link.Candidates))
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}
	var paymentID sql.NullString
	if link.PaymentID != "" {
		paymentID = sql.NullString{String: link.PaymentID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO links (fingerprint, payment_id, decision, candidates, amount, currency, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			payment_id = excluded.payment_id,
			decision = excluded.decision,
			candidates = excluded.candidates,
			amount = excluded.amount,
			currency = excluded.currency,
			decided_at = excluded.decided_at
		WHERE links.decision != 'matched'`,
		link.Fingerprint, paymentID, link.Decision, string(candidates),
		link.Amount.Amount.String(), link.Amount.Currency, formatTime(link.DecidedAt))
	if err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}
	return nil
}

// GetLink returns the latest decision for fingerprint.
func (s *Store) GetLink(ctx context.Context, fingerprint string) (models.ReceiptPaymentLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, payment_id, decision, candidates, amount, currency, decided_at
		FROM links WHERE fingerprint = ?`, fingerprint)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReceiptPaymentLink{}, fmt.Errorf("link %s: %w", fingerprint, ErrNotFound)
	}
	return link, err
}

// ListLinks returns links with decision, or all links when decision is
// empty, oldest decision first.
func (s *Store) ListLinks(ctx context.Context, decision models.Decision) ([]models.ReceiptPaymentLink, error) {
	query := `SELECT fingerprint, payment_id, decision, candidates, amount, currency, decided_at FROM links`
	var args []any
	if decision != "" {
		query += ` WHERE decision = ?`
		args = append(args, decision)
	}
	query += ` ORDER BY decided_at, fingerprint`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []models.ReceiptPaymentLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ListUnlinked returns the fingerprints of stored receipts that have no
// link yet, oldest first. These are receipts whose reconciliation failed
// after they were saved.
func (s *Store) ListUnlinked(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.fingerprint FROM receipts r
		LEFT JOIN links l ON l.fingerprint = r.fingerprint
		WHERE l.fingerprint IS NULL
		ORDER BY r.created_at, r.fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlinked receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fingerprints []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to list unlinked receipts: %w", err)
		}
		fingerprints = append(fingerprints, fp)
	}
	return fingerprints, rows.Err()
}

// RecordDocument appends an arrival to the document log with its outcome.
func (s *Store) RecordDocument(ctx context.Context, doc models.RawDocument, outcome, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (fingerprint, message_id, source, arrived_at, outcome, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.Fingerprint, doc.MessageID, doc.Source, formatTime(doc.ArrivedAt), outcome, detail, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (models.ReceiptPaymentLink, error) {
	var (
		link                              models.ReceiptPaymentLink
		paymentID                         sql.NullString
		candidates, amount, currency, dec string
		decision                          string
	)
	if err := row.Scan(&link.Fingerprint, &paymentID, &decision, &candidates, &amount, &currency, &dec); err != nil {
		return link, err
	}
	link.PaymentID = paymentID.String
	link.Decision = models.Decision(decision)
	if err := json.Unmarshal([]byte(candidates), &link.Candidates); err != nil {
		return link, fmt.Errorf("failed to decode candidates: %w", err)
	}
	if len(link.Candidates) == 0 {
		link.Candidates = nil
	}
	money, err := models.NewMoneyFromString(amount, currency)
	if err != nil {
		return link, err
	}
	link.Amount = money
	if link.DecidedAt, err = parseTime(dec); err != nil {
		return link, err
	}
	return link, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}
