package store

import (
	"context"
	"database/sql"
	"fmt"

	"fjacquet/receipt-recon/internal/logging"
)

// SchemaVersion is the schema version this build expects.
const SchemaVersion = 2

type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "receipts, links and payments",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS receipts (
				fingerprint TEXT PRIMARY KEY,
				variant TEXT NOT NULL,
				layout TEXT NOT NULL,
				amount TEXT NOT NULL,
				currency TEXT NOT NULL,
				sender TEXT NOT NULL,
				receipt_time TEXT,
				message_id TEXT,
				source TEXT,
				arrived_at TEXT,
				body TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS links (
				fingerprint TEXT PRIMARY KEY REFERENCES receipts(fingerprint),
				payment_id TEXT,
				decision TEXT NOT NULL,
				candidates TEXT NOT NULL DEFAULT '[]',
				amount TEXT NOT NULL,
				currency TEXT NOT NULL,
				decided_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_links_decision ON links(decision)`,
			`CREATE TABLE IF NOT EXISTS payments (
				id TEXT PRIMARY KEY,
				amount TEXT NOT NULL,
				currency TEXT NOT NULL,
				state TEXT NOT NULL,
				created_at TEXT NOT NULL,
				bound_receipt TEXT UNIQUE,
				reference TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_amount ON payments(amount, state)`,
		},
	},
	{
		version:     2,
		description: "document arrival log",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS documents (
				fingerprint TEXT NOT NULL,
				message_id TEXT,
				source TEXT,
				arrived_at TEXT,
				outcome TEXT NOT NULL,
				detail TEXT,
				recorded_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(fingerprint)`,
		},
	},
}

// Migrate brings the schema up to SchemaVersion. Each migration runs in
// its own transaction together with the user_version bump.
func (s *Store) Migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		s.logger.Info("Applied migration",
			logging.F("version", m.version),
			logging.F("description", m.description))
	}

	var final int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	if final != SchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
	}
	defer rollback(tx)

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
