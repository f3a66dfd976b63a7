// Package schedule derives the legal time catalog for a unit and date
// and annotates it with remaining capacity from live store counts.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quadra/internal/models"
)

// UnitSchedule is the static catalog entry for one unit.
type UnitSchedule struct {
	ID         models.Unit
	Name       string
	Capacity   int // seats per slot; 0 means unconstrained
	Companions bool
	Times      map[time.Weekday][]string // HH:MM, per weekday
}

// DefaultCatalog returns the compiled-in unit catalog, used when the
// config file does not override it. Unit A runs fixed evening slots on
// business days with two seats per slot; unit B staffs different time
// sets depending on the weekday and carries no numeric cap.
func DefaultCatalog() []UnitSchedule {
	weekdayTimes := func(days []time.Weekday, times []string) map[time.Weekday][]string {
		m := make(map[time.Weekday][]string, len(days))
		for _, d := range days {
			m[d] = times
		}
		return m
	}

	businessDays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	unitA := UnitSchedule{
		ID:         models.UnitA,
		Name:       "Unidade Centro",
		Capacity:   2,
		Companions: true,
		Times:      weekdayTimes(businessDays, []string{"17:30", "18:30", "19:30"}),
	}

	unitB := UnitSchedule{
		ID:         models.UnitB,
		Name:       "Unidade Orla",
		Capacity:   0,
		Companions: true,
		Times:      map[time.Weekday][]string{},
	}
	for d, times := range weekdayTimes([]time.Weekday{time.Monday, time.Wednesday, time.Friday},
		[]string{"07:00", "08:00", "18:00", "19:00"}) {
		unitB.Times[d] = times
	}
	for d, times := range weekdayTimes([]time.Weekday{time.Tuesday, time.Thursday},
		[]string{"06:30", "07:30", "18:30", "19:30"}) {
		unitB.Times[d] = times
	}

	return []UnitSchedule{unitA, unitB}
}

// Counter supplies live occupancy per slot.
type Counter interface {
	Count(ctx context.Context, unit models.Unit, date, slot string) (int, error)
}

// SlotOption is one offered time with its remaining capacity.
// Remaining is negative when the unit has no numeric cap.
type SlotOption struct {
	Time      string
	Remaining int
}

// Calculator computes availability from the static catalog plus live
// counts. It holds no per-date cache: counts change under concurrent
// writers, so every call hits the store.
type Calculator struct {
	units map[models.Unit]UnitSchedule
	store Counter
}

// NewCalculator builds a Calculator over the given catalog.
func NewCalculator(catalog []UnitSchedule, store Counter) *Calculator {
	units := make(map[models.Unit]UnitSchedule, len(catalog))
	for _, u := range catalog {
		units[u.ID] = u
	}
	return &Calculator{units: units, store: store}
}

// Units lists the catalog units in stable order.
func (c *Calculator) Units() []UnitSchedule {
	out := make([]UnitSchedule, 0, len(c.units))
	for _, u := range c.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unit returns the catalog entry for id.
func (c *Calculator) Unit(id models.Unit) (UnitSchedule, bool) {
	u, ok := c.units[id]
	return u, ok
}

// Capacity returns the per-slot seat cap for the unit (0 = unconstrained).
func (c *Calculator) Capacity(id models.Unit) int {
	return c.units[id].Capacity
}

// AllowsCompanions reports whether the unit accepts a second attendee.
func (c *Calculator) AllowsCompanions(id models.Unit) bool {
	return c.units[id].Companions
}

// NextDates returns the next n dates (YYYY-MM-DD) on which the unit
// holds classes, starting the day after from.
func (c *Calculator) NextDates(id models.Unit, from time.Time, n int) []string {
	u, ok := c.units[id]
	if !ok || n <= 0 {
		return nil
	}

	dates := make([]string, 0, n)
	day := from.AddDate(0, 0, 1)
	// 366-day scan bound guards against a unit with an empty catalog.
	for i := 0; i < 366 && len(dates) < n; i++ {
		if len(u.Times[day.Weekday()]) > 0 {
			dates = append(dates, day.Format("2006-01-02"))
		}
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

// Available computes the offered slots for (unit, date). Entries with
// no remaining seats are dropped for capped units; unconstrained units
// offer every catalog entry for the weekday.
func (c *Calculator) Available(ctx context.Context, id models.Unit, date string) ([]SlotOption, error) {
	u, ok := c.units[id]
	if !ok {
		return nil, fmt.Errorf("unknown unit: %s", id)
	}

	day, err := models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}

	var options []SlotOption
	for _, slot := range u.Times[day.Weekday()] {
		if u.Capacity <= 0 {
			options = append(options, SlotOption{Time: slot, Remaining: -1})
			continue
		}
		count, err := c.store.Count(ctx, id, date, slot)
		if err != nil {
			return nil, fmt.Errorf("count %s %s %s: %w", id, date, slot, err)
		}
		remaining := u.Capacity - count
		if remaining <= 0 {
			continue
		}
		options = append(options, SlotOption{Time: slot, Remaining: remaining})
	}
	return options, nil
}
