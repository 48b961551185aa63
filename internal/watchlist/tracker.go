// Package watchlist tracks a bounded set of breakout candidates in real
// time. Each candidate moves WAITING → BREAKOUT exactly once; the tracker
// as a whole cycles IDLE → TRACKING → IDLE and auto-stops outside market
// hours.
package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"breakout-scanner/internal/acquisition"
	"breakout-scanner/internal/events"
	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/scheduler"
	"breakout-scanner/internal/types"
)

// State of the whole tracker.
type State string

const (
	Idle     State = "idle"
	Tracking State = "tracking"
)

// snapshotKey is where the current watchlist persists across sessions.
const snapshotKey = "watchlist:current"

// rateLimitPauseThreshold is how many consecutive rate-limited ticks the
// orchestrator's pause policy keys on.
const rateLimitPauseThreshold = 3

// Status exposes enough tracker state for the orchestrator's pause policy.
type Status struct {
	State                 State     `json:"state"`
	Tracked               int       `json:"tracked"`
	Breakouts             int       `json:"breakouts"`
	ConsecutiveRateLimits int       `json:"consecutive_rate_limits"`
	LastTick              time.Time `json:"last_tick,omitempty"`
}

// RateLimited reports whether polling should pause.
func (s Status) RateLimited() bool {
	return s.ConsecutiveRateLimits >= rateLimitPauseThreshold
}

// Tracker owns its WatchCandidates exclusively: every tick mutates them in
// place, and everything handed out is a copy.
type Tracker struct {
	acq   *acquisition.Service
	sched *scheduler.Scheduler
	clock interfaces.MarketClock
	bus   *events.Bus
	store interfaces.KVStore

	mu              sync.RWMutex
	state           State
	order           []string
	candidates      map[string]*types.WatchCandidate
	rateLimitStreak int
	lastTick        time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle tracker. store may be nil to disable persistence.
func New(acq *acquisition.Service, sched *scheduler.Scheduler,
	clock interfaces.MarketClock, bus *events.Bus, store interfaces.KVStore) *Tracker {
	return &Tracker{
		acq:        acq,
		sched:      sched,
		clock:      clock,
		bus:        bus,
		store:      store,
		state:      Idle,
		candidates: make(map[string]*types.WatchCandidate),
	}
}

// BuildWatchlist replaces the whole tracked set atomically. Candidates are
// never evicted individually; the only removal path is this wholesale
// regeneration.
func (t *Tracker) BuildWatchlist(ctx context.Context, candidates []types.WatchCandidate) {
	t.mu.Lock()
	t.order = t.order[:0]
	t.candidates = make(map[string]*types.WatchCandidate, len(candidates))
	for i := range candidates {
		c := candidates[i] // copy, callers keep their slice
		if _, dup := t.candidates[c.Ticker]; dup {
			continue
		}
		t.order = append(t.order, c.Ticker)
		t.candidates[c.Ticker] = &c
	}
	t.rateLimitStreak = 0
	t.mu.Unlock()

	logger.Info(ctx, "Watchlist rebuilt", "candidates", len(candidates))
	t.persist(ctx)
}

// Restore loads the last persisted watchlist, replacing the tracked set.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	raw, err := t.store.Get(ctx, snapshotKey)
	if err != nil {
		return fmt.Errorf("load watchlist snapshot: %w", err)
	}
	if raw == nil {
		return nil
	}
	var candidates []types.WatchCandidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return fmt.Errorf("decode watchlist snapshot: %w", err)
	}
	t.BuildWatchlist(ctx, candidates)
	return nil
}

func (t *Tracker) persist(ctx context.Context) {
	if t.store == nil {
		return
	}
	snapshot := t.Snapshot()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := t.store.Set(ctx, snapshotKey, raw); err != nil {
		logger.Warn(ctx, "Failed to persist watchlist", "error", err)
	}
}

// Snapshot returns an immutable copy of the tracked candidates.
func (t *Tracker) Snapshot() []types.WatchCandidate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.WatchCandidate, 0, len(t.order))
	for _, ticker := range t.order {
		out = append(out, *t.candidates[ticker])
	}
	return out
}

// Status returns current tracker state for observability and pause policy.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	breakouts := 0
	for _, c := range t.candidates {
		if c.HasBreakout {
			breakouts++
		}
	}
	return Status{
		State:                 t.state,
		Tracked:               len(t.candidates),
		Breakouts:             breakouts,
		ConsecutiveRateLimits: t.rateLimitStreak,
		LastTick:              t.lastTick,
	}
}

// Start begins the polling loop. It refuses to start outside market hours
// or when already tracking.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if !t.clock.IsOpen(t.clock.Now()) {
		return fmt.Errorf("market is closed, not starting tracker")
	}

	t.mu.Lock()
	if t.state == Tracking {
		t.mu.Unlock()
		return fmt.Errorf("tracker already running")
	}
	t.state = Tracking
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	tracked := len(t.order)
	t.mu.Unlock()

	t.bus.Publish(events.TrackerStarted, "watchlist", t.Status())
	logger.Info(ctx, "Watchlist tracking started", "interval", interval.String(), "tracked", tracked)

	t.wg.Add(1)
	go t.loop(loopCtx, interval)
	return nil
}

func (t *Tracker) loop(ctx context.Context, interval time.Duration) {
	defer t.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.clock.IsOpen(t.clock.Now()) {
				logger.Info(ctx, "Market closed, tracker auto-stopping")
				t.halt(ctx)
				return
			}
			t.Tick(ctx)
		}
	}
}

// Tick checks every tracked candidate's live quote against its entry
// price. A single candidate's fetch failure is logged and skipped; its
// state is left unchanged for this tick. Rate limiting counts at most one
// streak increment per tick, however many candidates it hit.
func (t *Tracker) Tick(ctx context.Context) {
	t.mu.RLock()
	tickers := make([]string, len(t.order))
	copy(tickers, t.order)
	t.mu.RUnlock()
	if len(tickers) == 0 {
		return
	}

	op := logger.StartOperation(ctx, "watchlist_tick", "tracked", len(tickers))
	outcomes := t.acq.Quotes(ctx, tickers)

	now := t.clock.Now()
	var alerts []types.BreakoutAlert
	var rateLimited, succeeded bool

	t.mu.Lock()
	t.lastTick = now
	for _, out := range outcomes {
		if out.Err != nil {
			if errors.Is(out.Err, types.ErrRateLimited) {
				rateLimited = true
			}
			logger.Warn(ctx, "Candidate price check failed, skipping this tick",
				"ticker", out.Ticker, "error", out.Err)
			continue
		}
		succeeded = true

		cand, ok := t.candidates[out.Ticker]
		if !ok {
			// watchlist was rebuilt mid-tick, the late result is stale
			continue
		}
		cand.CurrentPrice = out.Price
		cand.LastCheck = now

		if !cand.HasBreakout && cand.CurrentPrice >= cand.EntryPrice {
			cand.HasBreakout = true
			cand.BreakoutTime = now
			cand.BreakoutPrice = cand.CurrentPrice
			alerts = append(alerts, types.BreakoutAlert{
				Ticker:       cand.Ticker,
				EntryPrice:   cand.EntryPrice,
				CurrentPrice: cand.CurrentPrice,
				GainPercent:  (cand.CurrentPrice - cand.EntryPrice) / cand.EntryPrice * 100,
				Time:         now,
			})
		}
	}
	switch {
	case rateLimited:
		t.rateLimitStreak++
	case succeeded:
		t.rateLimitStreak = 0
	}
	t.mu.Unlock()

	for _, alert := range alerts {
		logger.Breakout(ctx, alert.Ticker, alert.EntryPrice, alert.CurrentPrice, alert.GainPercent)
		t.bus.Publish(events.BreakoutDetected, "watchlist", alert)
	}
	if len(alerts) > 0 {
		t.persist(ctx)
	}
	op.End("breakouts", len(alerts))
}

// Stop halts the polling loop and cancels any in-flight per-tick requests,
// leaving candidate state as last observed.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	if t.state != Tracking {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	t.halt(ctx)
}

// halt performs the shared shutdown path for Stop and market-close
// auto-stop: cancel per-ticker scheduler requests and go idle.
func (t *Tracker) halt(ctx context.Context) {
	t.mu.Lock()
	if t.state == Idle {
		t.mu.Unlock()
		return
	}
	t.state = Idle
	tickers := make([]string, len(t.order))
	copy(tickers, t.order)
	t.mu.Unlock()

	for _, ticker := range tickers {
		t.sched.Cancel(ticker)
	}
	t.bus.Publish(events.TrackerStopped, "watchlist", t.Status())
	logger.Info(ctx, "Watchlist tracking stopped")
}
