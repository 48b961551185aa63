// Package acquisition turns ticker lists into normalized PriceRecords,
// consulting the cache first and routing misses through the request
// scheduler so the whole process stays inside the upstream rate budget.
package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"breakout-scanner/internal/cache"
	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/scheduler"
	"breakout-scanner/internal/types"
)

// Outcome is one ticker's collection result. Failures are reported here,
// never thrown out of the batch.
type Outcome struct {
	Ticker string
	Record *types.PriceRecord
	Err    error
}

// Options controls one Collect pass.
type Options struct {
	// BypassCache skips the cache read but still writes fresh results
	// back, refreshing the TTL for subsequent non-bypass calls.
	BypassCache bool
	// Progress, if set, is called after every processed ticker.
	Progress func(processed, total int, ticker string)
}

// Config holds acquisition tuning.
type Config struct {
	BatchSize  int           // tickers per batch, default 8
	BatchDelay time.Duration // pause between batches, default 2s
	CacheTTL   time.Duration // freshness window, default 24h
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = 2 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	return c
}

// Service coordinates provider, cache, and scheduler for batched collection.
type Service struct {
	provider interfaces.PriceProvider
	cache    interfaces.CacheStore
	sched    *scheduler.Scheduler
	clock    interfaces.MarketClock
	cfg      Config
}

// New creates an acquisition service.
func New(provider interfaces.PriceProvider, cacheStore interfaces.CacheStore,
	sched *scheduler.Scheduler, clock interfaces.MarketClock, cfg Config) *Service {
	return &Service{
		provider: provider,
		cache:    cacheStore,
		sched:    sched,
		clock:    clock,
		cfg:      cfg.withDefaults(),
	}
}

// Collect produces one Outcome per ticker, in input order. Tickers are
// processed in fixed-size batches with an inter-batch delay so sustained
// throughput stays within the scheduler's rate budget across batch
// boundaries. One ticker's failure never aborts the rest.
func (s *Service) Collect(ctx context.Context, tickers []string, opts Options) []Outcome {
	total := len(tickers)
	outcomes := make([]Outcome, total)

	var processed int
	var mu sync.Mutex
	report := func(ticker string) {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		processed++
		p := processed
		mu.Unlock()
		opts.Progress(p, total, ticker)
	}

	tradingDay := s.clock.TradingDay(s.clock.Now())

	for start := 0; start < total; start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int, ticker string) {
				defer wg.Done()
				rec, err := s.fetchOne(ctx, ticker, tradingDay, opts.BypassCache)
				outcomes[idx] = Outcome{Ticker: ticker, Record: rec, Err: err}
				report(ticker)
			}(i, tickers[i])
		}
		wg.Wait()

		if end < total {
			select {
			case <-time.After(s.cfg.BatchDelay):
			case <-ctx.Done():
				for i := end; i < total; i++ {
					outcomes[i] = Outcome{
						Ticker: tickers[i],
						Err:    fmt.Errorf("%s: %w", tickers[i], types.ErrCancelled),
					}
				}
				return outcomes
			}
		}
	}

	return outcomes
}

// QuoteOutcome is one ticker's live-quote result.
type QuoteOutcome struct {
	Ticker string
	Price  float64
	Err    error
}

// Quotes fetches the latest traded price for each ticker, one outcome per
// ticker in input order. Quotes are never cached; every fetch goes through
// the scheduler so tick polling stays inside the rate budget.
func (s *Service) Quotes(ctx context.Context, tickers []string) []QuoteOutcome {
	outcomes := make([]QuoteOutcome, len(tickers))
	var wg sync.WaitGroup
	for i := range tickers {
		wg.Add(1)
		go func(idx int, ticker string) {
			defer wg.Done()
			price, err := s.quoteOne(ctx, ticker)
			outcomes[idx] = QuoteOutcome{Ticker: ticker, Price: price, Err: err}
		}(i, tickers[i])
	}
	wg.Wait()
	return outcomes
}

func (s *Service) quoteOne(ctx context.Context, ticker string) (float64, error) {
	value, err := s.sched.Submit(ctx, ticker, func(opCtx context.Context) (any, error) {
		price, err := s.provider.FetchQuote(opCtx, ticker)
		if err == nil {
			return price, nil
		}
		if !errors.Is(err, types.ErrMalformed) {
			return nil, err
		}
		// no usable quote endpoint; the series' last close is the price
		bars, serr := s.provider.FetchDailySeries(opCtx, ticker)
		if serr != nil || len(bars) == 0 {
			return nil, err
		}
		return bars[len(bars)-1].Close, nil
	})
	if err != nil {
		return 0, err
	}
	price, ok := value.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected payload type for %s", types.ErrMalformed, ticker)
	}
	return price, nil
}

func (s *Service) fetchOne(ctx context.Context, ticker, tradingDay string, bypass bool) (*types.PriceRecord, error) {
	key := cache.Key(ticker, tradingDay)

	if !bypass {
		if payload, ok := s.cache.Get(ctx, key); ok {
			var rec types.PriceRecord
			if err := json.Unmarshal(payload, &rec); err == nil {
				logger.Debug(ctx, "Cache hit", "ticker", ticker, "day", tradingDay)
				return &rec, nil
			}
			// corrupt cache entry, treat as a miss
			_ = s.cache.Invalidate(ctx, key)
		}
	}

	value, err := s.sched.Submit(ctx, ticker, func(opCtx context.Context) (any, error) {
		bars, err := s.provider.FetchDailySeries(opCtx, ticker)
		if err != nil {
			return nil, err
		}
		return normalize(ticker, s.provider.Name(), tradingDay, bars)
	})
	if err != nil {
		return nil, err
	}

	rec, ok := value.(*types.PriceRecord)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload type for %s", types.ErrMalformed, ticker)
	}

	// Fresh results always go back to the cache, also on bypass runs, so
	// later non-bypass calls observe the latest data.
	if payload, err := json.Marshal(rec); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.cfg.CacheTTL); err != nil {
			logger.Warn(ctx, "Cache write failed", "ticker", ticker, "error", err)
		}
	}

	return rec, nil
}

// normalize turns a raw daily series into a PriceRecord: the last bar is
// the current state, the bar before it the prior completed day. Fewer than
// two trading days of history is insufficient for the comparison.
func normalize(ticker, source, tradingDay string, bars []types.Bar) (*types.PriceRecord, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: %s has %d trading days of history, need 2",
			types.ErrValidation, ticker, len(bars))
	}
	last := bars[len(bars)-1]
	prior := bars[len(bars)-2]
	return &types.PriceRecord{
		Ticker:       ticker,
		CurrentPrice: last.Close,
		PriorClose:   prior.Close,
		PriorHigh:    prior.High,
		PriorLow:     prior.Low,
		PriorVolume:  prior.Vol,
		AsOf:         tradingDay,
		Source:       source,
	}, nil
}
