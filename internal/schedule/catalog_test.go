package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadra/internal/models"
)

type fakeCounter struct {
	counts map[string]int
}

func (f *fakeCounter) Count(_ context.Context, unit models.Unit, date, slot string) (int, error) {
	return f.counts[string(unit)+"/"+date+"/"+slot], nil
}

func newCalc(counts map[string]int) *Calculator {
	return NewCalculator(DefaultCatalog(), &fakeCounter{counts: counts})
}

func TestNextDatesSkipsDaysWithoutClasses(t *testing.T) {
	calc := newCalc(nil)

	// Friday 2024-06-07: unit A has no weekend classes, so the next
	// offered days start on Monday.
	from := time.Date(2024, 6, 7, 12, 0, 0, 0, time.UTC)
	dates := calc.NextDates(models.UnitA, from, 3)
	assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-12"}, dates)

	// Unit B holds classes Monday through Friday as well.
	dates = calc.NextDates(models.UnitB, from, 5)
	assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-12", "2024-06-13", "2024-06-14"}, dates)
}

func TestAvailableWeekdayGroups(t *testing.T) {
	calc := newCalc(nil)
	ctx := context.Background()

	// Monday vs Tuesday carry different option sets for unit B.
	monday, err := calc.Available(ctx, models.UnitB, "2024-06-10")
	require.NoError(t, err)
	tuesday, err := calc.Available(ctx, models.UnitB, "2024-06-11")
	require.NoError(t, err)

	assert.Equal(t, []SlotOption{
		{Time: "07:00", Remaining: -1},
		{Time: "08:00", Remaining: -1},
		{Time: "18:00", Remaining: -1},
		{Time: "19:00", Remaining: -1},
	}, monday)
	assert.Equal(t, []SlotOption{
		{Time: "06:30", Remaining: -1},
		{Time: "07:30", Remaining: -1},
		{Time: "18:30", Remaining: -1},
		{Time: "19:30", Remaining: -1},
	}, tuesday)
}

func TestAvailableRemainingAnnotation(t *testing.T) {
	calc := newCalc(map[string]int{
		"A/2024-06-10/17:30": 1,
		"A/2024-06-10/18:30": 2,
	})

	options, err := calc.Available(context.Background(), models.UnitA, "2024-06-10")
	require.NoError(t, err)

	// 18:30 is full and dropped; 17:30 shows one seat left.
	assert.Equal(t, []SlotOption{
		{Time: "17:30", Remaining: 1},
		{Time: "19:30", Remaining: 2},
	}, options)
}

func TestAvailableNoCatalogDay(t *testing.T) {
	calc := newCalc(nil)

	// Saturday has no classes at unit A.
	options, err := calc.Available(context.Background(), models.UnitA, "2024-06-08")
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestAvailableRejectsUnknownUnit(t *testing.T) {
	calc := newCalc(nil)
	_, err := calc.Available(context.Background(), models.Unit("Z"), "2024-06-10")
	assert.Error(t, err)

	_, err = calc.Available(context.Background(), models.UnitA, "10/06/2024")
	assert.Error(t, err)
}

func TestUnitAccessors(t *testing.T) {
	calc := newCalc(nil)

	units := calc.Units()
	require.Len(t, units, 2)
	assert.Equal(t, models.UnitA, units[0].ID)
	assert.Equal(t, models.UnitB, units[1].ID)

	assert.Equal(t, 2, calc.Capacity(models.UnitA))
	assert.Equal(t, 0, calc.Capacity(models.UnitB))
	assert.True(t, calc.AllowsCompanions(models.UnitA))
}
