package marketclock

import (
	"fmt"
	"time"

	"breakout-scanner/internal/interfaces"
)

// Clock is the production MarketClock: wall-clock time checked against a
// fixed weekday open/close window in the exchange's location. Exchange
// holidays are not modeled; a holiday just produces an empty scan.
type Clock struct {
	loc       *time.Location
	openMins  int // minutes from midnight, exchange local time
	closeMins int
}

var _ interfaces.MarketClock = (*Clock)(nil)

// New builds a clock for a location and an "HH:MM"–"HH:MM" session window.
func New(location, open, close string) (*Clock, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, fmt.Errorf("load market location %q: %w", location, err)
	}
	openMins, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("parse market open %q: %w", open, err)
	}
	closeMins, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("parse market close %q: %w", close, err)
	}
	if closeMins <= openMins {
		return nil, fmt.Errorf("market close %q not after open %q", close, open)
	}
	return &Clock{loc: loc, openMins: openMins, closeMins: closeMins}, nil
}

// Default returns the NYSE session: 09:30–16:00 America/New_York.
func Default() *Clock {
	c, err := New("America/New_York", "09:30", "16:00")
	if err != nil {
		panic(err) // tzdata for America/New_York is embedded via time/tzdata or system zoneinfo
	}
	return c
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return h*60 + m, nil
}

func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// IsOpen reports whether t falls on a weekday inside the session window.
func (c *Clock) IsOpen(t time.Time) bool {
	t = t.In(c.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= c.openMins && mins < c.closeMins
}

// TradingDay returns the cache-partitioning day key for t in exchange time.
func (c *Clock) TradingDay(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}
