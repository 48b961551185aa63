package interfaces

import (
	"context"

	"breakout-scanner/internal/types"
)

// PriceProvider is an upstream daily price source. Implementations are
// assumed to fail intermittently and to rate-limit; errors are classified
// into the types taxonomy so the scheduler can decide what to retry.
type PriceProvider interface {
	// FetchDailySeries returns recent daily bars for a ticker, oldest first.
	FetchDailySeries(ctx context.Context, ticker string) ([]types.Bar, error)
	// FetchQuote returns the latest traded price for a ticker.
	FetchQuote(ctx context.Context, ticker string) (float64, error)
	Name() string
}
