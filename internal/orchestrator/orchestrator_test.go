package orchestrator

import (
	"context"
	"testing"
	"time"

	"breakout-scanner/internal/acquisition"
	"breakout-scanner/internal/cache"
	"breakout-scanner/internal/events"
	"breakout-scanner/internal/provider"
	"breakout-scanner/internal/scheduler"
	"breakout-scanner/internal/types"
	"breakout-scanner/internal/watchlist"
)

type fakeClock struct {
	open bool
}

func (f fakeClock) Now() time.Time                { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
func (f fakeClock) IsOpen(_ time.Time) bool       { return f.open }
func (f fakeClock) TradingDay(t time.Time) string { return t.Format("2006-01-02") }

// breakout: current at/above entry; waiting: just below; quiet: far below.
func seriesFor(kind string) []types.Bar {
	prior := types.Bar{Close: 100, High: 105, Low: 95, Vol: 5_000_000}
	var current float64
	switch kind {
	case "breakout":
		current = 107
	case "waiting":
		current = 104
	default:
		current = 90
	}
	return []types.Bar{prior, {Close: current, High: current, Low: current, Vol: 5_000_000}}
}

func newOrchestrator(t *testing.T, mock *provider.Mock, tickers []string) (*Orchestrator, *watchlist.Tracker, *events.Bus) {
	t.Helper()
	sched := scheduler.New(scheduler.Config{
		MinInterval: time.Millisecond,
		RetryDelay:  5 * time.Millisecond,
	}, nil)
	t.Cleanup(sched.Stop)

	clock := fakeClock{open: false}
	kv := cache.NewMemoryKV()
	acq := acquisition.New(mock, cache.NewStore(kv, nil), sched, clock, acquisition.Config{
		BatchSize:  8,
		BatchDelay: time.Millisecond,
		CacheTTL:   time.Hour,
	})

	bus := events.NewBus(32)
	bus.Start()
	t.Cleanup(bus.Stop)

	tracker := watchlist.New(acq, sched, clock, bus, kv)

	params := types.StrategyParameters{
		BreakoutFactor: 0.6,
		VolatilityMin:  2,
		VolatilityMax:  15,
		MinVolume:      1_000_000,
		MinPrice:       5,
		ProximityPct:   3,
	}
	o := New(acq, params, tracker, bus, clock,
		func(_ context.Context) []string { return tickers },
		Config{TopN: 2, PollInterval: time.Hour})
	return o, tracker, bus
}

func TestRunScanClassifiesUniverse(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Series = map[string][]types.Bar{
		"BRK": seriesFor("breakout"),
		"WAI": seriesFor("waiting"),
		"QUI": seriesFor("quiet"),
	}
	o, _, _ := newOrchestrator(t, mock, []string{"BRK", "WAI", "QUI"})

	result, err := o.RunScan(context.Background())
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}

	if result.TotalScanned != 3 {
		t.Errorf("Expected 3 scanned, got %d", result.TotalScanned)
	}
	if len(result.Breakouts) != 1 || result.Breakouts[0].Ticker != "BRK" {
		t.Errorf("Expected BRK as the sole breakout, got %+v", result.Breakouts)
	}
	if len(result.Waiting) != 1 || result.Waiting[0].Ticker != "WAI" {
		t.Errorf("Expected WAI as the sole waiting candidate, got %+v", result.Waiting)
	}
	if result.ErrorCount != 0 {
		t.Errorf("Expected no errors, got %d", result.ErrorCount)
	}

	if o.LastResult() != result {
		t.Error("Expected the scan recorded as the last result")
	}
}

func TestRunScanCountsErrorsWithoutAborting(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Series = map[string][]types.Bar{
		"GOOD": seriesFor("waiting"),
		"BAD":  {{Close: 50}}, // one bar, fails normalization
	}
	o, _, _ := newOrchestrator(t, mock, []string{"GOOD", "BAD"})

	result, err := o.RunScan(context.Background())
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	if result.ErrorCount != 1 {
		t.Errorf("Expected 1 error, got %d", result.ErrorCount)
	}
	if len(result.Waiting) != 1 {
		t.Errorf("Expected the healthy ticker still evaluated, got %+v", result.Waiting)
	}
}

func TestRefreshWatchlistTakesTopWaiting(t *testing.T) {
	mock := provider.NewMock(100)
	o, tracker, _ := newOrchestrator(t, mock, nil)

	result := &types.ScanResult{
		Waiting: []types.Analysis{
			{Ticker: "A", EntryPrice: 106, StopLoss5: 100.7, Target1: 113.95, Score: 90},
			{Ticker: "B", EntryPrice: 52, StopLoss5: 49.4, Target1: 55.9, Score: 80},
			{Ticker: "C", EntryPrice: 31, StopLoss5: 29.5, Target1: 33.3, Score: 70},
		},
	}
	o.RefreshWatchlist(context.Background(), result)

	snap := tracker.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Expected a watchlist capped at 2, got %d", len(snap))
	}
	if snap[0].Ticker != "A" || snap[1].Ticker != "B" {
		t.Errorf("Expected the two highest scores tracked, got %+v", snap)
	}
	if snap[0].StopLoss != 100.7 {
		t.Errorf("Expected the 5%% stop carried onto the candidate, got %f", snap[0].StopLoss)
	}
}

func TestScanCompletedEventPublished(t *testing.T) {
	mock := provider.NewMock(100)
	mock.Series = map[string][]types.Bar{"WAI": seriesFor("waiting")}
	o, _, bus := newOrchestrator(t, mock, []string{"WAI"})

	done := make(chan types.ScanResult, 1)
	bus.Subscribe(events.ScanCompleted, func(ev events.Event) {
		done <- ev.Data.(types.ScanResult)
	})

	if _, err := o.RunScan(context.Background()); err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}

	select {
	case result := <-done:
		if result.TotalScanned != 1 {
			t.Errorf("Expected the published result to match the scan, got %+v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a scan:completed event")
	}
}
