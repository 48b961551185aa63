package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"breakout-scanner/internal/cache"
	"breakout-scanner/internal/marketclock"
	"breakout-scanner/internal/provider"
	"breakout-scanner/internal/scheduler"
	"breakout-scanner/internal/types"
)

func bars(prices ...float64) []types.Bar {
	out := make([]types.Bar, len(prices))
	for i, p := range prices {
		out[i] = types.Bar{
			Date:  time.Now().AddDate(0, 0, i-len(prices)),
			Open:  p,
			High:  p * 1.02,
			Low:   p * 0.98,
			Close: p,
			Vol:   5_000_000,
		}
	}
	return out
}

func newService(mock *provider.Mock) (*Service, *scheduler.Scheduler) {
	sched := scheduler.New(scheduler.Config{
		MinInterval: time.Millisecond,
		RetryDelay:  5 * time.Millisecond,
		MaxRetries:  1,
	}, nil)
	svc := New(mock, cache.NewStore(cache.NewMemoryKV(), nil), sched,
		marketclock.Default(), Config{
			BatchSize:  4,
			BatchDelay: time.Millisecond,
			CacheTTL:   time.Hour,
		})
	return svc, sched
}

func TestCollectNormalizesSeries(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Series = map[string][]types.Bar{"AAPL": bars(98, 100, 104)}
	svc, sched := newService(mock)
	defer sched.Stop()

	outcomes := svc.Collect(context.Background(), []string{"AAPL"}, Options{})
	if len(outcomes) != 1 {
		t.Fatalf("Expected one outcome, got %d", len(outcomes))
	}
	out := outcomes[0]
	if out.Err != nil {
		t.Fatalf("Expected success, got %v", out.Err)
	}
	if out.Record.CurrentPrice != 104 {
		t.Errorf("Expected current price from the last bar, got %f", out.Record.CurrentPrice)
	}
	if out.Record.PriorClose != 100 {
		t.Errorf("Expected prior close from the second-to-last bar, got %f", out.Record.PriorClose)
	}
	if out.Record.Source != "mock" {
		t.Errorf("Expected source mock, got %s", out.Record.Source)
	}
}

func TestCollectIsIdempotentWithinTradingDay(t *testing.T) {
	mock := provider.NewMock(100)
	svc, sched := newService(mock)
	defer sched.Stop()

	ctx := context.Background()
	first := svc.Collect(ctx, []string{"AAPL"}, Options{})
	if first[0].Err != nil {
		t.Fatalf("Expected first collect to succeed, got %v", first[0].Err)
	}
	second := svc.Collect(ctx, []string{"AAPL"}, Options{})
	if second[0].Err != nil {
		t.Fatalf("Expected second collect to succeed, got %v", second[0].Err)
	}

	if got := mock.Calls("AAPL"); got != 1 {
		t.Errorf("Expected a single upstream fetch across repeated collects, got %d", got)
	}
	if *first[0].Record != *second[0].Record {
		t.Error("Expected identical records from cache replay")
	}
}

func TestCollectBypassRefetchesAndRefreshesCache(t *testing.T) {
	mock := provider.NewMock(100)
	svc, sched := newService(mock)
	defer sched.Stop()

	ctx := context.Background()
	svc.Collect(ctx, []string{"AAPL"}, Options{})
	svc.Collect(ctx, []string{"AAPL"}, Options{BypassCache: true})

	if got := mock.Calls("AAPL"); got != 2 {
		t.Errorf("Expected bypass to hit upstream again, got %d calls", got)
	}

	// The bypass write-through means a later cached read needs no fetch.
	svc.Collect(ctx, []string{"AAPL"}, Options{})
	if got := mock.Calls("AAPL"); got != 2 {
		t.Errorf("Expected bypass result cached for later reads, got %d calls", got)
	}
}

func TestCollectRejectsShortHistory(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Series = map[string][]types.Bar{"IPO": bars(50)}
	svc, sched := newService(mock)
	defer sched.Stop()

	outcomes := svc.Collect(context.Background(), []string{"IPO"}, Options{})
	if !errors.Is(outcomes[0].Err, types.ErrValidation) {
		t.Errorf("Expected validation error for one bar of history, got %v", outcomes[0].Err)
	}
	if outcomes[0].Record != nil {
		t.Error("Expected no record for a rejected series")
	}
}

func TestCollectIsolatesFailures(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Series = map[string][]types.Bar{
		"GOOD": bars(98, 100, 104),
		"BAD":  bars(50), // too short, normalization fails
	}
	svc, sched := newService(mock)
	defer sched.Stop()

	outcomes := svc.Collect(context.Background(), []string{"GOOD", "BAD"}, Options{})
	if outcomes[0].Err != nil {
		t.Errorf("Expected GOOD to succeed despite BAD failing, got %v", outcomes[0].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("Expected BAD to fail")
	}
	if outcomes[0].Ticker != "GOOD" || outcomes[1].Ticker != "BAD" {
		t.Error("Expected outcomes in input order")
	}
}

func TestCollectReportsProgress(t *testing.T) {
	mock := provider.NewMock(100)
	svc, sched := newService(mock)
	defer sched.Stop()

	var mu sync.Mutex
	var counts []int
	tickers := []string{"A", "B", "C", "D", "E"} // spans two batches
	svc.Collect(context.Background(), tickers, Options{
		Progress: func(processed, total int, ticker string) {
			mu.Lock()
			counts = append(counts, processed)
			mu.Unlock()
			if total != len(tickers) {
				t.Errorf("Expected total %d, got %d", len(tickers), total)
			}
		},
	})

	mu.Lock()
	defer mu.Unlock()
	if len(counts) != len(tickers) {
		t.Fatalf("Expected %d progress callbacks, got %d", len(tickers), len(counts))
	}
	if counts[len(counts)-1] != len(tickers) {
		t.Errorf("Expected final processed count %d, got %d", len(tickers), counts[len(counts)-1])
	}
}

func TestQuotesFetchLiveAndAreNeverCached(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Quotes = map[string]float64{"AAPL": 101.5, "MSFT": 250}
	svc, sched := newService(mock)
	defer sched.Stop()

	ctx := context.Background()
	outcomes := svc.Quotes(ctx, []string{"AAPL", "MSFT"})
	if len(outcomes) != 2 {
		t.Fatalf("Expected one outcome per ticker, got %d", len(outcomes))
	}
	if outcomes[0].Ticker != "AAPL" || outcomes[1].Ticker != "MSFT" {
		t.Error("Expected outcomes in input order")
	}
	if outcomes[0].Err != nil || outcomes[0].Price != 101.5 {
		t.Errorf("Expected live price 101.5, got %f (%v)", outcomes[0].Price, outcomes[0].Err)
	}

	// A second round hits upstream again; quotes never replay from cache.
	mock.Quotes["AAPL"] = 103
	again := svc.Quotes(ctx, []string{"AAPL"})
	if again[0].Price != 103 {
		t.Errorf("Expected refreshed price 103, got %f", again[0].Price)
	}
	if got := mock.Calls("AAPL"); got != 2 {
		t.Errorf("Expected 2 upstream fetches, got %d", got)
	}
}

// quoteless has no usable quote endpoint, like a chart-only upstream.
type quoteless struct {
	*provider.Mock
}

func (q quoteless) FetchQuote(_ context.Context, ticker string) (float64, error) {
	return 0, fmt.Errorf("%w: no quote payload for %s", types.ErrMalformed, ticker)
}

func TestQuotesFallBackToSeriesClose(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Series = map[string][]types.Bar{"AAPL": bars(98, 100, 104)}
	sched := scheduler.New(scheduler.Config{
		MinInterval: time.Millisecond,
		RetryDelay:  5 * time.Millisecond,
		MaxRetries:  1,
	}, nil)
	defer sched.Stop()
	svc := New(quoteless{mock}, cache.NewStore(cache.NewMemoryKV(), nil), sched,
		marketclock.Default(), Config{
			BatchSize:  4,
			BatchDelay: time.Millisecond,
			CacheTTL:   time.Hour,
		})

	outcomes := svc.Quotes(context.Background(), []string{"AAPL"})
	if outcomes[0].Err != nil {
		t.Fatalf("Expected series fallback to succeed, got %v", outcomes[0].Err)
	}
	if outcomes[0].Price != 104 {
		t.Errorf("Expected last close 104 as the quote, got %f", outcomes[0].Price)
	}
}

func TestQuotesSurfaceRateLimit(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Err = fmt.Errorf("status 429: %w", types.ErrRateLimited)
	svc, sched := newService(mock)
	defer sched.Stop()

	outcomes := svc.Quotes(context.Background(), []string{"AAPL"})
	if !errors.Is(outcomes[0].Err, types.ErrRateLimited) {
		t.Errorf("Expected rate-limit error to surface, got %v", outcomes[0].Err)
	}
}

func TestCollectCancellationMarksRemaining(t *testing.T) {
	mock := provider.NewMock(100)
	sched := scheduler.New(scheduler.Config{
		MinInterval: time.Millisecond,
		RetryDelay:  5 * time.Millisecond,
		MaxRetries:  1,
	}, nil)
	defer sched.Stop()
	svc := New(mock, cache.NewStore(cache.NewMemoryKV(), nil), sched,
		marketclock.Default(), Config{
			BatchSize:  4,
			BatchDelay: 10 * time.Second, // cancellation lands in the inter-batch pause
			CacheTTL:   time.Hour,
		})

	ctx, cancel := context.WithCancel(context.Background())
	tickers := []string{"A", "B", "C", "D", "E"}
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	outcomes := svc.Collect(ctx, tickers, Options{})

	if len(outcomes) != len(tickers) {
		t.Fatalf("Expected an outcome per ticker, got %d", len(outcomes))
	}
	if !errors.Is(outcomes[4].Err, types.ErrCancelled) {
		t.Errorf("Expected the ticker after the cancelled pause marked cancelled, got %v", outcomes[4].Err)
	}
}
