// Package store persists bookings. Two interchangeable backends exist:
// a sqlite store whose reservations run inside immediate transactions,
// and a flat-file agenda store whose critical sections are serialized
// by a named lock per unit. A deployment uses exactly one of them.
package store

import (
	"context"
	"errors"

	"quadra/internal/models"
)

var (
	// ErrDuplicate signals a (unit, date, time, name) collision.
	ErrDuplicate = errors.New("booking already recorded")

	// ErrSlotFull signals that the slot cannot hold the requested seats.
	ErrSlotFull = errors.New("slot capacity exhausted")

	// ErrNotFound signals a missing booking id.
	ErrNotFound = errors.New("booking not found")
)

// Store is the capability set the rest of the system relies on.
type Store interface {
	// Count returns the number of confirmed bookings in a slot.
	Count(ctx context.Context, unit models.Unit, date, slot string) (int, error)

	// Reserve atomically inserts all given bookings, which must share
	// one slot. It fails with ErrSlotFull when the slot cannot hold
	// them under capacity (0 = unconstrained) and with ErrDuplicate on
	// a name collision; either way nothing is written.
	Reserve(ctx context.Context, capacity int, bookings ...*models.Booking) error

	// Insert writes a single booking without a capacity gate, used by
	// imports and administrative corrections.
	Insert(ctx context.Context, booking *models.Booking) error

	ListByDate(ctx context.Context, date string) ([]models.Booking, error)
	ListByUnit(ctx context.Context, unit models.Unit) ([]models.Booking, error)

	// Delete removes a booking by id (explicit cancellation).
	Delete(ctx context.Context, id int64) error

	// PurgeBefore removes bookings dated strictly before date and
	// returns how many rows were dropped.
	PurgeBefore(ctx context.Context, date string) (int64, error)

	Close() error
}

func validateSlot(bookings []*models.Booking) error {
	if len(bookings) == 0 {
		return errors.New("no bookings to reserve")
	}
	first := bookings[0]
	for _, b := range bookings[1:] {
		if b.Unit != first.Unit || b.Date != first.Date || b.Time != first.Time {
			return errors.New("reservation spans more than one slot")
		}
	}
	return nil
}
