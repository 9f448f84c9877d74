package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a day of week, 1=Monday ... 7=Sunday.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// AllWeekdays lists days in schedule order.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf returns the schedule day for a date.
func WeekdayOf(t time.Time) Weekday {
	d := int(t.Weekday())
	if d == 0 {
		d = 7 // Sunday = 7
	}
	return Weekday(d)
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return time.Weekday(int(d) % 7).String()
}

// OpenHourEntry is one recurring weekly opening range of a shop.
type OpenHourEntry struct {
	ID        int64   `json:"id,omitempty"`
	ShopID    string  `json:"shop_id"`
	DayOfWeek Weekday `json:"day_of_week"`
	StartTime string  `json:"start_time"` // "09:00"
	EndTime   string  `json:"end_time"`   // "17:00"
	IsClosed  bool    `json:"is_closed"`
}

// ClockTime is a local time of day in minutes since midnight.
type ClockTime int

// ParseClock parses "HH:MM" (seconds, if present, are ignored).
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return ClockTime(hour*60 + minute), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On places the time of day on the calendar date of d.
func (c ClockTime) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), int(c)/60, int(c)%60, 0, 0, d.Location())
}

// Range returns the parsed bounds of an open entry.
func (e OpenHourEntry) Range() (start, end ClockTime, err error) {
	start, err = ParseClock(e.StartTime)
	if err != nil {
		return 0, 0, fmt.Errorf("parse start time: %w", err)
	}
	end, err = ParseClock(e.EndTime)
	if err != nil {
		return 0, 0, fmt.Errorf("parse end time: %w", err)
	}
	if start >= end {
		return 0, 0, fmt.Errorf("start %s is not before end %s", e.StartTime, e.EndTime)
	}
	return start, end, nil
}
