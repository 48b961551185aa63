package interfaces

import "time"

// MarketClock abstracts wall-clock time and the market-hours predicate so
// both are injectable in tests.
type MarketClock interface {
	Now() time.Time
	// IsOpen reports whether the market is open at t: a weekday inside the
	// configured open/close window.
	IsOpen(t time.Time) bool
	// TradingDay returns the trading-day cache key ("2006-01-02") for t.
	TradingDay(t time.Time) string
}
