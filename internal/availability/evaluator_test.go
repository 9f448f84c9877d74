package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopvisit/internal/model"
)

// Wednesday noon.
var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

var (
	nextMonday  = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	nextTuesday = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(func() time.Time { return fixedNow })
}

func at(date time.Time, clock string) Candidate {
	c, err := model.ParseClock(clock)
	if err != nil {
		panic(err)
	}
	return Candidate{Date: date, Time: c}
}

func entry(day model.Weekday, start, end string) model.OpenHourEntry {
	return model.OpenHourEntry{ShopID: "s1", DayOfWeek: day, StartTime: start, EndTime: end}
}

func closedDay(day model.Weekday) model.OpenHourEntry {
	return model.OpenHourEntry{ShopID: "s1", DayOfWeek: day, IsClosed: true}
}

func TestEvaluateScenarios(t *testing.T) {
	ev := newTestEvaluator()

	t.Run("A open monday", func(t *testing.T) {
		res := ev.Evaluate([]model.OpenHourEntry{entry(model.Monday, "09:00", "17:00")}, at(nextMonday, "10:30"))
		assert.Equal(t, StatusOpen, res.Status)
		assert.NoError(t, res.Err())
	})

	t.Run("B closed monday", func(t *testing.T) {
		schedule := []model.OpenHourEntry{
			closedDay(model.Monday),
			entry(model.Tuesday, "09:00", "17:00"),
			entry(model.Friday, "10:00", "14:00"),
		}
		res := ev.Evaluate(schedule, at(nextMonday, "10:30"))
		assert.Equal(t, StatusClosedForDay, res.Status)
		assert.NotContains(t, res.SuggestedDays, model.Monday)
		assert.Equal(t, []model.Weekday{model.Tuesday, model.Friday}, res.SuggestedDays)
	})

	t.Run("C split shift gap", func(t *testing.T) {
		schedule := []model.OpenHourEntry{
			entry(model.Tuesday, "14:00", "18:00"),
			entry(model.Tuesday, "09:00", "12:00"),
		}
		res := ev.Evaluate(schedule, at(nextTuesday, "13:00"))
		assert.Equal(t, StatusOutsideHours, res.Status)
		assert.Equal(t, []string{"09:00-12:00", "14:00-18:00"}, res.SuggestedWindows)
	})

	t.Run("D yesterday", func(t *testing.T) {
		yesterday := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
		schedules := [][]model.OpenHourEntry{
			nil,
			{entry(model.Tuesday, "00:00", "23:59")},
			{closedDay(model.Tuesday)},
		}
		for _, s := range schedules {
			res := ev.Evaluate(s, at(yesterday, "10:00"))
			assert.Equal(t, StatusInPast, res.Status)
		}
	})
}

func TestEvaluateClosedForDayWithoutEntries(t *testing.T) {
	ev := newTestEvaluator()
	schedule := []model.OpenHourEntry{
		entry(model.Friday, "10:00", "14:00"),
		entry(model.Wednesday, "10:00", "14:00"),
		entry(model.Wednesday, "15:00", "18:00"),
		closedDay(model.Sunday),
	}
	res := ev.Evaluate(schedule, at(nextMonday, "10:30"))
	assert.Equal(t, StatusClosedForDay, res.Status)
	assert.Equal(t, []model.Weekday{model.Wednesday, model.Friday}, res.SuggestedDays)
	assert.Contains(t, res.Message(), "Wednesday, Friday")
}

func TestEvaluateEmptyScheduleAlwaysOpen(t *testing.T) {
	ev := newTestEvaluator()
	for h := 0; h < 24; h++ {
		for d := 1; d <= 14; d++ {
			c := Candidate{Date: fixedNow.AddDate(0, 0, d), Time: model.ClockTime(h*60 + 15)}
			c.Date = time.Date(c.Date.Year(), c.Date.Month(), c.Date.Day(), 0, 0, 0, 0, time.UTC)
			assert.Equal(t, StatusOpen, ev.Evaluate(nil, c).Status)
		}
	}
}

func TestEvaluateClosedFlagWins(t *testing.T) {
	ev := newTestEvaluator()
	schedule := []model.OpenHourEntry{
		entry(model.Monday, "00:00", "23:59"),
		closedDay(model.Monday),
		entry(model.Monday, "09:00", "17:00"),
	}
	for m := 0; m < 24*60; m += 7 {
		res := ev.Evaluate(schedule, Candidate{Date: nextMonday, Time: model.ClockTime(m)})
		assert.NotEqual(t, StatusOpen, res.Status)
	}
}

func TestEvaluateSplitShiftsAllRangesTested(t *testing.T) {
	ev := newTestEvaluator()
	schedule := []model.OpenHourEntry{
		entry(model.Tuesday, "09:00", "12:00"),
		entry(model.Tuesday, "14:00", "18:00"),
		entry(model.Tuesday, "20:00", "22:00"),
	}

	tests := []struct {
		clock string
		want  Status
	}{
		{"09:00", StatusOpen},
		{"12:00", StatusOpen},
		{"12:01", StatusOutsideHours},
		{"14:00", StatusOpen},
		{"17:59", StatusOpen},
		{"18:00", StatusOpen},
		{"21:30", StatusOpen},
		{"22:01", StatusOutsideHours},
		{"08:59", StatusOutsideHours},
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Evaluate(schedule, at(nextTuesday, tt.clock)).Status)
		})
	}
}

func TestEvaluateIgnoresInvalidRanges(t *testing.T) {
	ev := newTestEvaluator()
	schedule := []model.OpenHourEntry{
		entry(model.Tuesday, "18:00", "09:00"),
		entry(model.Tuesday, "bad", "12:00"),
		entry(model.Tuesday, "13:00", "15:00"),
	}
	res := ev.Evaluate(schedule, at(nextTuesday, "10:00"))
	assert.Equal(t, StatusOutsideHours, res.Status)
	assert.Equal(t, []string{"13:00-15:00"}, res.SuggestedWindows)
}

func TestEvaluateIdempotent(t *testing.T) {
	ev := newTestEvaluator()
	schedule := []model.OpenHourEntry{
		entry(model.Tuesday, "09:00", "12:00"),
		entry(model.Tuesday, "14:00", "18:00"),
		closedDay(model.Monday),
	}
	for _, c := range []Candidate{at(nextTuesday, "13:00"), at(nextMonday, "10:00"), at(nextTuesday, "10:00")} {
		first := ev.Evaluate(schedule, c)
		second := ev.Evaluate(schedule, c)
		assert.Equal(t, first, second)
	}
}

func TestEvaluateNowBoundary(t *testing.T) {
	ev := newTestEvaluator()
	today := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, StatusInPast, ev.Evaluate(nil, at(today, "12:00")).Status)
	assert.Equal(t, StatusOpen, ev.Evaluate(nil, at(today, "12:01")).Status)
}

func TestResultErr(t *testing.T) {
	ev := newTestEvaluator()
	res := ev.Evaluate([]model.OpenHourEntry{closedDay(model.Monday)}, at(nextMonday, "10:00"))

	err := res.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlotRejected))

	var rejected *SlotRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, StatusClosedForDay, rejected.Result.Status)
	assert.Equal(t, "The shop is closed on Monday.", res.Message())
}

func TestCandidateFromSlot(t *testing.T) {
	c, err := CandidateFromSlot(model.CandidateSlot{CatalogID: "c1", Date: "2026-10-19", Time: "10:30"}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC), c.At())

	_, err = CandidateFromSlot(model.CandidateSlot{CatalogID: "c1", Date: "2026-10-19", Time: "late"}, time.UTC)
	assert.ErrorIs(t, err, model.ErrInvalidSlot)
}
