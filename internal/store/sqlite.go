package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"quadra/internal/models"
)

// SQLiteStore is the relational backend. Reservations run inside
// immediate transactions, so the capacity check and the insert form
// one serialized unit; the unique index rejects duplicate names.
type SQLiteStore struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and
// applies the shipped migrations. A migration failure is returned as
// an error and must abort startup.
func OpenSQLite(ctx context.Context, path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// _txlock=immediate makes every transaction take the write lock up
	// front, which is what serializes count+insert in Reserve.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := ApplyMigrations(ctx, db, Migrations(), logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("sqlite store ready")
	return &SQLiteStore{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for health checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (s *SQLiteStore) Count(ctx context.Context, unit models.Unit, date, slot string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE unit = ? AND date = ? AND time = ? AND status = ?`,
		string(unit), date, slot, models.StatusConfirmed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count slot %s %s %s: %w", unit, date, slot, err)
	}
	return count, nil
}

func insertBooking(ctx context.Context, tx *sql.Tx, b *models.Booking, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (unit, date, time, name, phone, companion, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(b.Unit), b.Date, b.Time, b.Name,
		nullable(b.Phone), nullable(b.Companion), models.StatusConfirmed,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}
	b.ID = id
	b.Status = models.StatusConfirmed
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) Reserve(ctx context.Context, capacity int, bookings ...*models.Booking) error {
	if err := validateSlot(bookings); err != nil {
		return err
	}
	first := bookings[0]

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback()

	if capacity > 0 {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE unit = ? AND date = ? AND time = ? AND status = ?`,
			string(first.Unit), first.Date, first.Time, models.StatusConfirmed,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("recheck slot: %w", err)
		}
		if count+len(bookings) > capacity {
			return ErrSlotFull
		}
	}

	now := time.Now()
	for _, b := range bookings {
		if err := insertBooking(ctx, tx, b, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, booking *models.Booking) error {
	return s.Reserve(ctx, 0, booking)
}

const bookingColumns = `id, unit, date, time, name, COALESCE(phone, ''), COALESCE(companion, ''), status, created_at, updated_at`

func scanBooking(rows *sql.Rows) (models.Booking, error) {
	var b models.Booking
	var unit, createdAt, updatedAt string
	if err := rows.Scan(&b.ID, &unit, &b.Date, &b.Time, &b.Name, &b.Phone, &b.Companion, &b.Status, &createdAt, &updatedAt); err != nil {
		return b, err
	}
	b.Unit = models.Unit(unit)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return b, nil
}

func (s *SQLiteStore) queryBookings(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListByDate(ctx context.Context, date string) ([]models.Booking, error) {
	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ? ORDER BY unit, time, name`, date)
}

func (s *SQLiteStore) ListByUnit(ctx context.Context, unit models.Unit) ([]models.Booking, error) {
	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE unit = ? ORDER BY date, time, name`, string(unit))
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) PurgeBefore(ctx context.Context, date string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE date < ?`, date)
	if err != nil {
		return 0, fmt.Errorf("purge before %s: %w", date, err)
	}
	return res.RowsAffected()
}
