// Package flow drives the trial-class booking dialogue, one strictly
// ordered step at a time per visitor. Capacity is checked twice: an
// advisory check when time options are rendered, and an authoritative
// one inside the store at confirm time.
package flow

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quadra/internal/events"
	"quadra/internal/lockmgr"
	"quadra/internal/metrics"
	"quadra/internal/models"
	"quadra/internal/schedule"
	"quadra/internal/session"
	"quadra/internal/store"
)

// Dialogue steps.
const (
	StepUnit          = "unit_select"
	StepDate          = "date_select"
	StepTime          = "time_select"
	StepName          = "name_entry"
	StepCompanionAsk  = "companion_decision"
	StepCompanionName = "companion_name"
	StepConfirm       = "confirm"
)

// Scratch data keys.
const (
	keyUnit      = "unit"
	keyDates     = "dates"
	keyDate      = "date"
	keyTimes     = "times"
	keyTime      = "time"
	keyName      = "name"
	keyCompanion = "companion"
)

// Store is the slice of the booking store the dialogue needs.
type Store interface {
	Count(ctx context.Context, unit models.Unit, date, slot string) (int, error)
	Reserve(ctx context.Context, capacity int, bookings ...*models.Booking) error
}

// Publisher dispatches domain events to the notification sink.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Controller is the dialogue state machine driver.
type Controller struct {
	sessions  session.Manager
	store     Store
	catalog   *schedule.Calculator
	publisher Publisher
	logger    *zerolog.Logger

	// DaysAhead is how many upcoming class days are offered.
	DaysAhead int

	now func() time.Time
}

// New creates a Controller. publisher may be nil when no sink is wired.
func New(sessions session.Manager, st Store, catalog *schedule.Calculator, publisher Publisher, logger *zerolog.Logger) *Controller {
	return &Controller{
		sessions:  sessions,
		store:     st,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
		DaysAhead: 5,
		now:       time.Now,
	}
}

// HandleMessage processes one inbound message for phone and returns
// the outbound reply. Infrastructure failures are translated into a
// user-facing text and logged; the returned error is informational.
func (c *Controller) HandleMessage(ctx context.Context, phone, text string) (string, error) {
	text = strings.TrimSpace(text)

	state, err := c.sessions.Get(ctx, phone)
	if err != nil {
		c.logger.Error().Err(err).Str("phone", phone).Msg("session read failed")
		return msgSessionTrouble, err
	}

	if state == nil {
		state = session.NewState(phone, StepUnit)
		if err := c.sessions.Set(ctx, state); err != nil {
			c.logger.Error().Err(err).Str("phone", phone).Msg("session write failed")
			return msgSessionTrouble, err
		}
		return promptGreeting(c.catalog.Units()), nil
	}

	if strings.EqualFold(text, "cancelar") || strings.EqualFold(text, "/cancelar") {
		if err := c.sessions.Clear(ctx, phone); err != nil {
			c.logger.Error().Err(err).Str("phone", phone).Msg("session clear failed")
		}
		return msgAborted, nil
	}

	switch state.Step {
	case StepUnit:
		return c.handleUnit(ctx, state, text)
	case StepDate:
		return c.handleDate(ctx, state, text)
	case StepTime:
		return c.handleTime(ctx, state, text)
	case StepName:
		return c.handleName(ctx, state, text)
	case StepCompanionAsk:
		return c.handleCompanionAsk(ctx, state, text)
	case StepCompanionName:
		return c.handleCompanionName(ctx, state, text)
	case StepConfirm:
		return c.handleConfirm(ctx, state, text)
	default:
		c.logger.Warn().Str("phone", phone).Str("step", state.Step).Msg("unknown dialogue step")
		if err := c.sessions.Clear(ctx, phone); err != nil {
			c.logger.Error().Err(err).Str("phone", phone).Msg("session clear failed")
		}
		return msgSessionTrouble, nil
	}
}

// pickIndex parses a 1-based menu answer into options.
func pickIndex(input string, size int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > size {
		return 0, false
	}
	return n - 1, true
}

func (c *Controller) saveState(ctx context.Context, state *session.State) error {
	if err := c.sessions.Set(ctx, state); err != nil {
		c.logger.Error().Err(err).Str("phone", state.Phone).Msg("session write failed")
		return err
	}
	return nil
}

func (c *Controller) handleUnit(ctx context.Context, state *session.State, input string) (string, error) {
	units := c.catalog.Units()
	idx, ok := pickIndex(input, len(units))
	if !ok {
		return msgInvalidOption + "\n\n" + promptUnits(units), nil
	}
	unit := units[idx]

	dates := c.catalog.NextDates(unit.ID, c.now(), c.DaysAhead)
	if len(dates) == 0 {
		return msgInvalidOption + "\n\n" + promptUnits(units), nil
	}

	state.Set(keyUnit, string(unit.ID))
	state.Set(keyDates, dates)
	state.Step = StepDate
	if err := c.saveState(ctx, state); err != nil {
		return msgSessionTrouble, err
	}
	return promptDates(dates), nil
}

func (c *Controller) handleDate(ctx context.Context, state *session.State, input string) (string, error) {
	dates := state.GetStrings(keyDates)
	idx, ok := pickIndex(input, len(dates))
	if !ok {
		return msgInvalidOption + "\n\n" + promptDates(dates), nil
	}
	date := dates[idx]
	unit := models.Unit(state.GetString(keyUnit))

	options, err := c.catalog.Available(ctx, unit, date)
	if err != nil {
		c.logger.Error().Err(err).Str("phone", state.Phone).Msg("availability check failed")
		return msgStoreFailure, err
	}

	// Dead-end avoidance: a fully booked day loops back to the date
	// choice instead of stranding the dialogue.
	if len(options) == 0 {
		return msgNoCapacity + "\n\n" + promptDates(dates), nil
	}

	times := make([]string, len(options))
	for i, opt := range options {
		times[i] = opt.Time
	}
	state.Set(keyDate, date)
	state.Set(keyTimes, times)
	state.Step = StepTime
	if err := c.saveState(ctx, state); err != nil {
		return msgSessionTrouble, err
	}
	return promptTimes(options), nil
}

func (c *Controller) handleTime(ctx context.Context, state *session.State, input string) (string, error) {
	times := state.GetStrings(keyTimes)
	idx, ok := pickIndex(input, len(times))
	if !ok {
		return msgInvalidOption, nil
	}

	state.Set(keyTime, times[idx])
	state.Step = StepName
	if err := c.saveState(ctx, state); err != nil {
		return msgSessionTrouble, err
	}
	return msgAskName, nil
}

var nameRegex = regexp.MustCompile(`^[\p{L}\s\-']+$`)

func validName(input string) string {
	if len(strings.Fields(input)) < 2 {
		return msgNameTooShort
	}
	if !nameRegex.MatchString(input) {
		return msgNameBadChars
	}
	return ""
}

func (c *Controller) handleName(ctx context.Context, state *session.State, input string) (string, error) {
	if msg := validName(input); msg != "" {
		return msg, nil
	}
	state.Set(keyName, input)

	unit := models.Unit(state.GetString(keyUnit))
	if c.catalog.AllowsCompanions(unit) {
		count, err := c.store.Count(ctx, unit, state.GetString(keyDate), state.GetString(keyTime))
		if err != nil {
			c.logger.Error().Err(err).Str("phone", state.Phone).Msg("slot count failed")
			return msgStoreFailure, err
		}
		// A companion is only offered while the slot is still empty;
		// otherwise the remaining seat count could not hold both.
		if count == 0 {
			state.Step = StepCompanionAsk
			if err := c.saveState(ctx, state); err != nil {
				return msgSessionTrouble, err
			}
			return msgAskCompanion, nil
		}
	}

	return c.toConfirm(ctx, state)
}

func (c *Controller) handleCompanionAsk(ctx context.Context, state *session.State, input string) (string, error) {
	switch {
	case isAffirmative(input):
		state.Step = StepCompanionName
		if err := c.saveState(ctx, state); err != nil {
			return msgSessionTrouble, err
		}
		return msgAskCompanName, nil
	case isNegative(input):
		return c.toConfirm(ctx, state)
	default:
		return msgInvalidOption + "\n\n" + msgAskCompanion, nil
	}
}

func (c *Controller) handleCompanionName(ctx context.Context, state *session.State, input string) (string, error) {
	if msg := validName(input); msg != "" {
		return msg, nil
	}
	if strings.EqualFold(input, state.GetString(keyName)) {
		return msgCompanionSame, nil
	}
	state.Set(keyCompanion, input)
	return c.toConfirm(ctx, state)
}

func (c *Controller) toConfirm(ctx context.Context, state *session.State) (string, error) {
	state.Step = StepConfirm
	if err := c.saveState(ctx, state); err != nil {
		return msgSessionTrouble, err
	}
	booking := c.draft(state)
	unitName := c.unitName(booking.Unit)
	return formatSummary(unitName, booking), nil
}

func (c *Controller) draft(state *session.State) *models.Booking {
	return &models.Booking{
		Unit:      models.Unit(state.GetString(keyUnit)),
		Date:      state.GetString(keyDate),
		Time:      state.GetString(keyTime),
		Name:      state.GetString(keyName),
		Phone:     state.Phone,
		Companion: state.GetString(keyCompanion),
	}
}

func (c *Controller) unitName(id models.Unit) string {
	if u, ok := c.catalog.Unit(id); ok {
		return u.Name
	}
	return string(id)
}

func (c *Controller) handleConfirm(ctx context.Context, state *session.State, input string) (string, error) {
	switch {
	case isNegative(input):
		fresh := session.NewState(state.Phone, StepUnit)
		if err := c.saveState(ctx, fresh); err != nil {
			return msgSessionTrouble, err
		}
		return msgRestart + "\n\n" + promptUnits(c.catalog.Units()), nil
	case isAffirmative(input):
		return c.reserve(ctx, state)
	default:
		return msgConfirmHint, nil
	}
}

// reserve performs the authoritative capacity re-check and the write,
// atomically, through the store.
func (c *Controller) reserve(ctx context.Context, state *session.State) (string, error) {
	primary := c.draft(state)
	rows := []*models.Booking{primary}
	if primary.HasCompanion() {
		rows = append(rows, &models.Booking{
			Unit:      primary.Unit,
			Date:      primary.Date,
			Time:      primary.Time,
			Name:      primary.Companion,
			Phone:     primary.Phone,
			Companion: primary.Name,
		})
	}

	capacity := c.catalog.Capacity(primary.Unit)
	err := c.store.Reserve(ctx, capacity, rows...)
	switch {
	case err == nil:
		// fallthrough below

	case errors.Is(err, store.ErrSlotFull):
		metrics.IncBookingRejected(metrics.ReasonCapacity)
		c.logger.Info().Str("phone", state.Phone).Str("slot", primary.SlotKey()).
			Int("seats", len(rows)).Msg("slot filled before confirm")
		if clearErr := c.sessions.Clear(ctx, state.Phone); clearErr != nil {
			c.logger.Error().Err(clearErr).Str("phone", state.Phone).Msg("session clear failed")
		}
		return msgCapacityLost, nil

	case errors.Is(err, store.ErrDuplicate):
		metrics.IncBookingRejected(metrics.ReasonDuplicate)
		c.logger.Warn().Str("phone", state.Phone).Str("slot", primary.SlotKey()).
			Str("name", primary.Name).Msg("duplicate booking name")
		if clearErr := c.sessions.Clear(ctx, state.Phone); clearErr != nil {
			c.logger.Error().Err(clearErr).Str("phone", state.Phone).Msg("session clear failed")
		}
		return msgSlotTaken, nil

	case lockmgr.IsBusy(err):
		// Transient contention: keep the session in confirm so an
		// immediate retry works.
		metrics.IncBookingRejected(metrics.ReasonBusy)
		c.logger.Warn().Err(err).Str("phone", state.Phone).Msg("agenda busy")
		return msgSystemBusy, nil

	default:
		c.logger.Error().Err(err).Str("phone", state.Phone).Msg("reservation write failed")
		return msgStoreFailure, err
	}

	metrics.IncBookingCreated(string(primary.Unit))
	if c.publisher != nil {
		c.publisher.Publish(events.BookingConfirmed, events.BookingConfirmedPayload{
			Unit:      string(primary.Unit),
			UnitName:  c.unitName(primary.Unit),
			Name:      primary.Name,
			Companion: primary.Companion,
			Date:      primary.Date,
			Time:      primary.Time,
		})
	}
	if err := c.sessions.Clear(ctx, state.Phone); err != nil {
		c.logger.Error().Err(err).Str("phone", state.Phone).Msg("session clear failed")
	}
	return formatBooked(c.unitName(primary.Unit), primary), nil
}
