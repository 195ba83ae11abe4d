package engine

import (
	"fmt"
	"time"
)

// Calendar gates trading by wall-clock time. The engine consults it before
// every bar; it owns no other calendar logic.
type Calendar interface {
	CanTradeAt(t time.Time) bool
}

// AlwaysOpen permits trading at any time. Used by simulations.
type AlwaysOpen struct{}

// CanTradeAt implements Calendar.
func (AlwaysOpen) CanTradeAt(time.Time) bool { return true }

// SessionCalendar permits trading Monday through Friday between an open and
// close time in an exchange-local timezone. The close minute is exclusive.
type SessionCalendar struct {
	loc       *time.Location
	openMins  int
	closeMins int
}

// NewSessionCalendar parses HH:MM session bounds in the given IANA timezone.
func NewSessionCalendar(timezone, open, close string) (*SessionCalendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	openMins, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("invalid open time: %w", err)
	}
	closeMins, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("invalid close time: %w", err)
	}
	if openMins >= closeMins {
		return nil, fmt.Errorf("session open %s must precede close %s", open, close)
	}
	return &SessionCalendar{loc: loc, openMins: openMins, closeMins: closeMins}, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// CanTradeAt implements Calendar.
func (c *SessionCalendar) CanTradeAt(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	mins := local.Hour()*60 + local.Minute()
	return mins >= c.openMins && mins < c.closeMins
}
