// Package orchestrator drives full-universe scans: acquisition feeds the
// analyzer, the classified result set is aggregated and published, and the
// top waiting candidates become the tracker's next watchlist.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"breakout-scanner/internal/acquisition"
	"breakout-scanner/internal/analyzer"
	"breakout-scanner/internal/events"
	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/types"
	"breakout-scanner/internal/watchlist"
)

// Config holds orchestrator tuning.
type Config struct {
	TopN         int           // watchlist size bound, default 10
	PollInterval time.Duration // tracker poll interval, default 30s
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	return c
}

// Orchestrator owns the scan lifecycle. One scan runs at a time; a scan
// invocation while another is in progress is rejected rather than queued.
type Orchestrator struct {
	acq      *acquisition.Service
	params   types.StrategyParameters
	tracker  *watchlist.Tracker
	bus      *events.Bus
	clock    interfaces.MarketClock
	universe func(ctx context.Context) []string
	cfg      Config

	cron *cron.Cron

	mu         sync.Mutex
	scanning   bool
	lastResult *types.ScanResult
}

// New creates an orchestrator. universe resolves the ticker list per scan
// so a dynamic universe source can refresh between invocations.
func New(acq *acquisition.Service, params types.StrategyParameters,
	tracker *watchlist.Tracker, bus *events.Bus, clock interfaces.MarketClock,
	universe func(ctx context.Context) []string, cfg Config) *Orchestrator {
	return &Orchestrator{
		acq:      acq,
		params:   params,
		tracker:  tracker,
		bus:      bus,
		clock:    clock,
		universe: universe,
		cfg:      cfg.withDefaults(),
		cron:     cron.New(),
	}
}

// RunScan performs one full-universe pass: collect, analyze, aggregate.
func (o *Orchestrator) RunScan(ctx context.Context) (*types.ScanResult, error) {
	o.mu.Lock()
	if o.scanning {
		o.mu.Unlock()
		return nil, fmt.Errorf("scan already in progress")
	}
	o.scanning = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.scanning = false
		o.mu.Unlock()
	}()

	tickers := o.universe(ctx)
	op := logger.StartOperation(ctx, "universe_scan", "universe", len(tickers))

	result := &types.ScanResult{
		TotalScanned: len(tickers),
		StartedAt:    o.clock.Now(),
	}

	outcomes := o.acq.Collect(ctx, tickers, acquisition.Options{
		Progress: func(processed, total int, ticker string) {
			o.bus.Publish(events.AcquisitionProgress, "orchestrator", types.AcquisitionProgress{
				Processed: processed,
				Total:     total,
				Ticker:    ticker,
			})
		},
	})

	for _, out := range outcomes {
		if out.Err != nil {
			result.ErrorCount++
			logger.Debug(ctx, "Ticker could not be evaluated", "ticker", out.Ticker, "error", out.Err)
			continue
		}
		a := analyzer.Evaluate(*out.Record, o.params)
		switch a.Classification {
		case types.Breakout:
			result.Breakouts = append(result.Breakouts, a)
		case types.Waiting:
			result.Waiting = append(result.Waiting, a)
		}
	}

	sortByScore(result.Breakouts)
	sortByScore(result.Waiting)
	result.Duration = time.Since(result.StartedAt)

	o.mu.Lock()
	o.lastResult = result
	o.mu.Unlock()

	logger.ScanSummary(ctx, result.TotalScanned, len(result.Breakouts), len(result.Waiting), result.ErrorCount)
	o.bus.Publish(events.ScanCompleted, "orchestrator", *result)
	op.End("breakouts", len(result.Breakouts), "waiting", len(result.Waiting), "errors", result.ErrorCount)

	return result, nil
}

func sortByScore(list []types.Analysis) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
}

// LastResult returns the most recent completed scan, if any.
func (o *Orchestrator) LastResult() *types.ScanResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult
}

// RefreshWatchlist replaces the tracker's set with the scan's top waiting
// candidates. Waiting candidates are the ones worth polling: the point is
// to catch the moment they cross their entry price.
func (o *Orchestrator) RefreshWatchlist(ctx context.Context, result *types.ScanResult) {
	n := o.cfg.TopN
	if n > len(result.Waiting) {
		n = len(result.Waiting)
	}
	candidates := make([]types.WatchCandidate, 0, n)
	for _, a := range result.Waiting[:n] {
		candidates = append(candidates, types.WatchCandidate{
			Ticker:       a.Ticker,
			EntryPrice:   a.EntryPrice,
			StopLoss:     a.StopLoss5,
			Target1:      a.Target1,
			Target2:      a.Target2,
			Score:        a.Score,
			CurrentPrice: a.CurrentPrice,
		})
	}
	o.tracker.BuildWatchlist(ctx, candidates)
}

// ScanAndTrack is the cron unit of work: scan, refresh the watchlist, and
// make sure the tracker is polling while the market is open.
func (o *Orchestrator) ScanAndTrack(ctx context.Context) {
	result, err := o.RunScan(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Scheduled scan failed", err)
		o.bus.Publish(events.ScanError, "orchestrator", err.Error())
		return
	}
	o.RefreshWatchlist(ctx, result)

	if o.clock.IsOpen(o.clock.Now()) && o.tracker.Status().State == watchlist.Idle {
		if err := o.tracker.Start(ctx, o.cfg.PollInterval); err != nil {
			logger.Warn(ctx, "Could not start tracker", "error", err)
		}
	}
}

// Schedule registers a recurring scan under the given cron spec and starts
// the cron runner.
func (o *Orchestrator) Schedule(ctx context.Context, spec string) error {
	if _, err := o.cron.AddFunc(spec, func() { o.ScanAndTrack(ctx) }); err != nil {
		return fmt.Errorf("register scan schedule %q: %w", spec, err)
	}
	o.cron.Start()
	logger.Info(ctx, "Scan schedule registered", "spec", spec)
	return nil
}

// StopSchedule halts the cron runner, waiting for a running job to finish.
func (o *Orchestrator) StopSchedule() {
	stopCtx := o.cron.Stop()
	<-stopCtx.Done()
}
