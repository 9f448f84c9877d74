// Package availability decides whether a visit slot falls inside a shop's weekly open hours.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"shopvisit/internal/model"
)

// Status is the outcome of an availability check.
type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusClosedForDay Status = "CLOSED_FOR_DAY"
	StatusOutsideHours Status = "OUTSIDE_HOURS"
	StatusInPast       Status = "IN_PAST"
)

// ErrSlotRejected is matched by every *SlotRejectedError.
var ErrSlotRejected = errors.New("slot rejected")

// Candidate is a requested visit: a calendar date and a local time of day.
type Candidate struct {
	Date time.Time
	Time model.ClockTime
}

// CandidateFromSlot parses a slot in loc.
func CandidateFromSlot(slot model.CandidateSlot, loc *time.Location) (Candidate, error) {
	date, clock, err := slot.Parse(loc)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Date: date, Time: clock}, nil
}

// At returns the candidate as a point in time.
func (c Candidate) At() time.Time {
	return c.Time.On(c.Date)
}

// Result of Evaluate. Suggestions are only set for CLOSED_FOR_DAY and OUTSIDE_HOURS.
type Result struct {
	Status           Status          `json:"status"`
	Day              model.Weekday   `json:"day"`
	SuggestedDays    []model.Weekday `json:"suggested_days,omitempty"`
	SuggestedWindows []string        `json:"suggested_time_windows,omitempty"`
}

func (r Result) Open() bool {
	return r.Status == StatusOpen
}

// Message is a user-facing explanation of the result.
func (r Result) Message() string {
	switch r.Status {
	case StatusOpen:
		return "The shop is open at the selected time."
	case StatusInPast:
		return "The selected date and time has already passed. Please pick a future slot."
	case StatusClosedForDay:
		if len(r.SuggestedDays) == 0 {
			return fmt.Sprintf("The shop is closed on %s.", r.Day)
		}
		names := make([]string, len(r.SuggestedDays))
		for i, d := range r.SuggestedDays {
			names[i] = d.String()
		}
		return fmt.Sprintf("The shop is closed on %s. Open days: %s.", r.Day, strings.Join(names, ", "))
	case StatusOutsideHours:
		return fmt.Sprintf("The shop is closed at the selected time. Open on %s: %s.",
			r.Day, strings.Join(r.SuggestedWindows, ", "))
	default:
		return string(r.Status)
	}
}

// Err returns nil for OPEN and a *SlotRejectedError otherwise.
func (r Result) Err() error {
	if r.Open() {
		return nil
	}
	return &SlotRejectedError{Result: r}
}

// SlotRejectedError carries the rejection and its suggestions.
type SlotRejectedError struct {
	Result Result
}

func (e *SlotRejectedError) Error() string {
	return fmt.Sprintf("slot rejected: %s", e.Result.Status)
}

func (e *SlotRejectedError) Is(target error) bool {
	return target == ErrSlotRejected
}

// Evaluator checks candidates against schedules. It holds no state besides the clock.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator creates an evaluator; a nil clock means time.Now.
func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{now: now}
}

type window struct {
	start, end model.ClockTime
}

func (w window) String() string {
	return w.start.String() + "-" + w.end.String()
}

// Evaluate decides OPEN, CLOSED_FOR_DAY, OUTSIDE_HOURS or IN_PAST for a candidate.
// An empty schedule means the shop has not configured hours and is always open.
func (e *Evaluator) Evaluate(schedule []model.OpenHourEntry, c Candidate) Result {
	day := model.WeekdayOf(c.Date)
	res := Result{Day: day}

	if !c.At().After(e.now()) {
		res.Status = StatusInPast
		return res
	}

	if len(schedule) == 0 {
		res.Status = StatusOpen
		return res
	}

	var sameDay []window
	hasSameDay, closed := false, false
	openDays := make(map[model.Weekday]bool)

	for _, entry := range schedule {
		if entry.DayOfWeek == day {
			hasSameDay = true
			if entry.IsClosed {
				closed = true
				continue
			}
		} else if entry.IsClosed {
			continue
		}

		start, end, err := entry.Range()
		if err != nil {
			continue
		}
		if entry.DayOfWeek == day {
			sameDay = append(sameDay, window{start: start, end: end})
		} else if entry.DayOfWeek.Valid() {
			openDays[entry.DayOfWeek] = true
		}
	}

	if closed || !hasSameDay {
		res.Status = StatusClosedForDay
		for _, d := range model.AllWeekdays {
			if openDays[d] {
				res.SuggestedDays = append(res.SuggestedDays, d)
			}
		}
		return res
	}

	for _, w := range sameDay {
		if w.start <= c.Time && c.Time <= w.end {
			res.Status = StatusOpen
			return res
		}
	}

	sort.Slice(sameDay, func(i, j int) bool {
		if sameDay[i].start == sameDay[j].start {
			return sameDay[i].end < sameDay[j].end
		}
		return sameDay[i].start < sameDay[j].start
	})

	res.Status = StatusOutsideHours
	seen := make(map[window]bool, len(sameDay))
	for _, w := range sameDay {
		if seen[w] {
			continue
		}
		seen[w] = true
		res.SuggestedWindows = append(res.SuggestedWindows, w.String())
	}
	return res
}
