package models

import (
	"fmt"
	"time"
)

// Unit identifies one of the academy locations.
type Unit string

const (
	UnitA Unit = "A"
	UnitB Unit = "B"
)

// ParseUnit validates a stored unit value.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case UnitA, UnitB:
		return Unit(s), nil
	}
	return "", fmt.Errorf("unknown unit: %q", s)
}

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

// Booking represents a confirmed trial-class reservation.
// The tuple (Unit, Date, Time, Name) is unique in the store.
type Booking struct {
	ID        int64  `json:"id"`
	Unit      Unit   `json:"unit"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // HH:MM
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Companion string `json:"companion,omitempty"`
	Status    string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCompanion reports whether the reservation carries a second attendee.
func (b *Booking) HasCompanion() bool {
	return b.Companion != ""
}

// Seats returns how many seats the reservation occupies.
func (b *Booking) Seats() int {
	if b.HasCompanion() {
		return 2
	}
	return 1
}

// SlotKey returns the slot identity the booking occupies.
func (b *Booking) SlotKey() string {
	return fmt.Sprintf("%s/%s/%s", b.Unit, b.Date, b.Time)
}

// ParseDate parses the stored date form.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// ValidTime reports whether s is a well-formed HH:MM slot start.
func ValidTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
