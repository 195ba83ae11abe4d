package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCalendar(t *testing.T) {
	cal, err := NewSessionCalendar("America/New_York", "09:30", "16:00")
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Monday 2025-01-06.
	assert.True(t, cal.CanTradeAt(time.Date(2025, 1, 6, 9, 30, 0, 0, ny)))
	assert.True(t, cal.CanTradeAt(time.Date(2025, 1, 6, 15, 59, 0, 0, ny)))
	assert.False(t, cal.CanTradeAt(time.Date(2025, 1, 6, 9, 29, 0, 0, ny)))
	assert.False(t, cal.CanTradeAt(time.Date(2025, 1, 6, 16, 0, 0, 0, ny)))

	// Saturday and Sunday.
	assert.False(t, cal.CanTradeAt(time.Date(2025, 1, 4, 12, 0, 0, 0, ny)))
	assert.False(t, cal.CanTradeAt(time.Date(2025, 1, 5, 12, 0, 0, 0, ny)))

	// A UTC timestamp converts into the session timezone first:
	// 15:00 UTC on a Monday is 10:00 in New York.
	assert.True(t, cal.CanTradeAt(time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)))
}

func TestSessionCalendarValidation(t *testing.T) {
	_, err := NewSessionCalendar("Mars/Olympus", "09:30", "16:00")
	assert.Error(t, err)

	_, err = NewSessionCalendar("UTC", "25:00", "16:00")
	assert.Error(t, err)

	_, err = NewSessionCalendar("UTC", "16:00", "09:30")
	assert.Error(t, err)
}

func TestAlwaysOpen(t *testing.T) {
	assert.True(t, AlwaysOpen{}.CanTradeAt(time.Now()))
	assert.True(t, AlwaysOpen{}.CanTradeAt(time.Time{}))
}
