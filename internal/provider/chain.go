package provider

import (
	"context"
	"errors"
	"fmt"

	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/types"
)

// Chain tries providers in order and returns the first success. This is
// simple fallback ordering, not reconciliation: whichever provider answers
// first wins. A rate-limit error stops the chain immediately so the caller
// sees the signal instead of hammering the next provider.
type Chain struct {
	providers []interfaces.PriceProvider
}

var _ interfaces.PriceProvider = (*Chain)(nil)

func NewChain(providers ...interfaces.PriceProvider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) FetchDailySeries(ctx context.Context, ticker string) ([]types.Bar, error) {
	var lastErr error
	for _, p := range c.providers {
		bars, err := p.FetchDailySeries(ctx, ticker)
		if err == nil {
			return bars, nil
		}
		if errors.Is(err, types.ErrRateLimited) {
			return nil, err
		}
		logger.Warn(ctx, "Provider failed, trying next",
			"provider", p.Name(), "ticker", ticker, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no providers configured", types.ErrNetwork)
	}
	return nil, lastErr
}

func (c *Chain) FetchQuote(ctx context.Context, ticker string) (float64, error) {
	var lastErr error
	for _, p := range c.providers {
		price, err := p.FetchQuote(ctx, ticker)
		if err == nil {
			return price, nil
		}
		if errors.Is(err, types.ErrRateLimited) {
			return 0, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no providers configured", types.ErrNetwork)
	}
	return 0, lastErr
}
