package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quadra/internal/lockmgr"
	"quadra/internal/models"
)

// FileStore is the flat-file backend: one JSON agenda per unit. Every
// read-check-write sequence runs inside a named critical section from
// the lock manager, keyed by the destination unit, which makes the
// capacity check atomic by construction. Plain reads go without the
// lock: agendas are replaced by atomic rename, so a reader always sees
// a complete snapshot.
type FileStore struct {
	dir    string
	locks  *lockmgr.Manager
	logger *zerolog.Logger
}

type agenda struct {
	Seq      int64            `json:"seq"`
	Bookings []models.Booking `json:"bookings"`
}

// OpenFileStore prepares the agenda directory.
func OpenFileStore(dir string, locks *lockmgr.Manager, logger *zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create agenda directory: %w", err)
	}
	logger.Info().Str("dir", dir).Msg("file store ready")
	return &FileStore{dir: dir, locks: locks, logger: logger}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(unit models.Unit) string {
	return filepath.Join(s.dir, fmt.Sprintf("agenda_%s.json", strings.ToLower(string(unit))))
}

func lockKey(unit models.Unit) string {
	return "agenda:" + string(unit)
}

func (s *FileStore) load(unit models.Unit) (*agenda, error) {
	data, err := os.ReadFile(s.path(unit))
	if os.IsNotExist(err) {
		return &agenda{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read agenda %s: %w", unit, err)
	}

	var a agenda
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode agenda %s: %w", unit, err)
	}
	return &a, nil
}

func (s *FileStore) save(unit models.Unit, a *agenda) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode agenda %s: %w", unit, err)
	}

	tmp := s.path(unit) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write agenda %s: %w", unit, err)
	}
	if err := os.Rename(tmp, s.path(unit)); err != nil {
		return fmt.Errorf("replace agenda %s: %w", unit, err)
	}
	return nil
}

// bookingID derives a store-wide unique id from the per-unit sequence:
// unit A takes odd ids, unit B even ones.
func bookingID(unit models.Unit, seq int64) int64 {
	if unit == models.UnitA {
		return seq*2 - 1
	}
	return seq * 2
}

func countSlot(a *agenda, unit models.Unit, date, slot string) int {
	count := 0
	for _, b := range a.Bookings {
		if b.Unit == unit && b.Date == date && b.Time == slot && b.Status == models.StatusConfirmed {
			count++
		}
	}
	return count
}

func hasName(a *agenda, unit models.Unit, date, slot, name string) bool {
	for _, b := range a.Bookings {
		if b.Unit == unit && b.Date == date && b.Time == slot && b.Name == name {
			return true
		}
	}
	return false
}

func (s *FileStore) Count(ctx context.Context, unit models.Unit, date, slot string) (int, error) {
	a, err := s.load(unit)
	if err != nil {
		return 0, err
	}
	return countSlot(a, unit, date, slot), nil
}

func (s *FileStore) Reserve(ctx context.Context, capacity int, bookings ...*models.Booking) error {
	if err := validateSlot(bookings); err != nil {
		return err
	}
	first := bookings[0]

	return s.locks.Acquire(ctx, lockKey(first.Unit), func() error {
		a, err := s.load(first.Unit)
		if err != nil {
			return err
		}

		for _, b := range bookings {
			if hasName(a, b.Unit, b.Date, b.Time, b.Name) {
				return ErrDuplicate
			}
		}
		if capacity > 0 && countSlot(a, first.Unit, first.Date, first.Time)+len(bookings) > capacity {
			return ErrSlotFull
		}

		now := time.Now()
		for _, b := range bookings {
			a.Seq++
			b.ID = bookingID(b.Unit, a.Seq)
			b.Status = models.StatusConfirmed
			b.CreatedAt = now
			b.UpdatedAt = now
			a.Bookings = append(a.Bookings, *b)
		}
		return s.save(first.Unit, a)
	})
}

func (s *FileStore) Insert(ctx context.Context, booking *models.Booking) error {
	return s.Reserve(ctx, 0, booking)
}

func (s *FileStore) ListByDate(ctx context.Context, date string) ([]models.Booking, error) {
	var out []models.Booking
	for _, unit := range []models.Unit{models.UnitA, models.UnitB} {
		a, err := s.load(unit)
		if err != nil {
			return nil, err
		}
		for _, b := range a.Bookings {
			if b.Date == date {
				out = append(out, b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *FileStore) ListByUnit(ctx context.Context, unit models.Unit) ([]models.Booking, error) {
	a, err := s.load(unit)
	if err != nil {
		return nil, err
	}
	out := append([]models.Booking(nil), a.Bookings...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, id int64) error {
	for _, unit := range []models.Unit{models.UnitA, models.UnitB} {
		found := false
		err := s.locks.Acquire(ctx, lockKey(unit), func() error {
			a, err := s.load(unit)
			if err != nil {
				return err
			}
			kept := a.Bookings[:0]
			for _, b := range a.Bookings {
				if b.ID == id {
					found = true
					continue
				}
				kept = append(kept, b)
			}
			if !found {
				return nil
			}
			a.Bookings = kept
			return s.save(unit, a)
		})
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return ErrNotFound
}

func (s *FileStore) PurgeBefore(ctx context.Context, date string) (int64, error) {
	var purged int64
	for _, unit := range []models.Unit{models.UnitA, models.UnitB} {
		err := s.locks.Acquire(ctx, lockKey(unit), func() error {
			a, err := s.load(unit)
			if err != nil {
				return err
			}
			kept := a.Bookings[:0]
			dropped := 0
			for _, b := range a.Bookings {
				if b.Date < date {
					dropped++
					continue
				}
				kept = append(kept, b)
			}
			if dropped == 0 {
				return nil
			}
			a.Bookings = kept
			purged += int64(dropped)
			return s.save(unit, a)
		})
		if err != nil {
			return purged, err
		}
	}
	return purged, nil
}
