package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Migration is one named, append-only schema step. Shipped migrations
// are never reordered or removed; new changes get new names.
type Migration struct {
	Name string
	Run  func(ctx context.Context, tx *sql.Tx) error
}

func execAll(ctx context.Context, tx *sql.Tx, queries ...string) error {
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec %q: %w", q, err)
		}
	}
	return nil
}

// Migrations returns the shipped migration sequence in order.
func Migrations() []Migration {
	return []Migration{
		{
			Name: "001_create_bookings",
			Run: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`CREATE TABLE IF NOT EXISTS bookings (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						unit TEXT NOT NULL,
						date TEXT NOT NULL,
						time TEXT NOT NULL,
						name TEXT NOT NULL,
						phone TEXT,
						companion TEXT,
						created_at TEXT NOT NULL,
						updated_at TEXT NOT NULL
					)`)
			},
		},
		{
			Name: "002_booking_indexes",
			Run: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot_name ON bookings(unit, date, time, name)`,
					`CREATE INDEX IF NOT EXISTS idx_bookings_unit_date ON bookings(unit, date)`,
					`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`)
			},
		},
		{
			Name: "003_booking_status",
			Run: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`ALTER TABLE bookings ADD COLUMN status TEXT NOT NULL DEFAULT 'confirmed'`)
			},
		},
	}
}

// ApplyMigrations brings the schema up to date. The ledger insert runs
// in the same transaction as the migration body, so a failing body is
// never marked as applied; the caller must treat an error as fatal.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrations []Migration, logger *zerolog.Logger) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create migrations ledger: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, `SELECT name FROM migrations`)
	if err != nil {
		return fmt.Errorf("load migrations ledger: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan migrations ledger: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("read migrations ledger: %w", err)
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if err := m.Run(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO migrations (name, applied_at) VALUES (?, datetime('now'))`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
		if logger != nil {
			logger.Info().Str("migration", m.Name).Msg("migration applied")
		}
	}
	return nil
}
