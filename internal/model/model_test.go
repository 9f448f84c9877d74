package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayOf(t *testing.T) {
	// 2026-10-12 is a Monday.
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, Monday, WeekdayOf(monday))
	assert.Equal(t, Sunday, WeekdayOf(monday.AddDate(0, 0, 6)))
	assert.Equal(t, "Sunday", Sunday.String())
	assert.Equal(t, "Monday", Monday.String())
	assert.False(t, Weekday(0).Valid())
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"09:00", 540, false},
		{"23:59", 1439, false},
		{"14:30:00", 870, false},
		{"24:00", 0, true},
		{"9", 0, true},
		{"aa:10", 0, true},
		{"10:61", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in[:5], got.String())
		})
	}
}

func TestOpenHourEntryRange(t *testing.T) {
	_, _, err := OpenHourEntry{StartTime: "17:00", EndTime: "09:00"}.Range()
	assert.Error(t, err)

	start, end, err := OpenHourEntry{StartTime: "09:00", EndTime: "17:00"}.Range()
	require.NoError(t, err)
	assert.Equal(t, ClockTime(540), start)
	assert.Equal(t, ClockTime(1020), end)
}

func TestCandidateSlotParse(t *testing.T) {
	date, clock, err := CandidateSlot{CatalogID: "c1", Date: "2026-10-12", Time: "10:30"}.Parse(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 12, 10, 30, 0, 0, time.UTC), clock.On(date))

	_, _, err = CandidateSlot{CatalogID: "c1", Date: "12.10.2026", Time: "10:30"}.Parse(time.UTC)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, _, err = CandidateSlot{Date: "2026-10-12", Time: "10:30"}.Parse(time.UTC)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestPaymentStatusToggled(t *testing.T) {
	assert.Equal(t, PaymentPaid, PaymentUnpaid.Toggled())
	assert.Equal(t, PaymentUnpaid, PaymentPaid.Toggled())
	assert.Equal(t, PaymentUnpaid, PaymentUnpaid.Toggled().Toggled())
}
