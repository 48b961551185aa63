package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/types"
)

// Operation is the unit of work the scheduler dispatches, typically one
// upstream fetch. It must honor ctx cancellation.
type Operation func(ctx context.Context) (any, error)

// Config holds scheduler tuning.
type Config struct {
	MinInterval time.Duration // minimum spacing between dispatches
	RetryDelay  time.Duration // delay before a retry batch is replayed
	MaxRetries  int           // re-queues per request before giving up
}

// DefaultConfig returns the stock configuration: one dispatch per second,
// three retries replayed after two seconds.
func DefaultConfig() Config {
	return Config{
		MinInterval: 1 * time.Second,
		RetryDelay:  2 * time.Second,
		MaxRetries:  3,
	}
}

func (c Config) withDefaults() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = 1 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

type outcome struct {
	value any
	err   error
}

type request struct {
	key      string
	op       Operation
	attempts int
	done     chan outcome
	once     sync.Once
	opCancel context.CancelFunc
}

func (r *request) resolve(v any, err error) {
	r.once.Do(func() { r.done <- outcome{value: v, err: err} })
}

// Status is a point-in-time snapshot of scheduler queues for observability.
type Status struct {
	Queued   int `json:"queued"`
	Retrying int `json:"retrying"`
	InFlight int `json:"in_flight"`
	Failed   int `json:"failed"`
}

// Scheduler serializes outbound requests under a minimum inter-dispatch
// interval, deduplicates concurrent submissions per key, retries retryable
// failures in batches, and supports bulk cancellation. Callers submit
// concurrently from many goroutines; dispatch order is global FIFO.
type Scheduler struct {
	cfg Config

	mu       sync.Mutex
	queue    []*request          // awaiting dispatch, FIFO
	retrying []*request          // failed, awaiting batch replay
	tracked  map[string]*request // every unresolved key (dedup scope)
	running  map[string]*request // dispatched, operation executing
	failed   map[string]error    // retry-exhausted keys, cleared by re-submit

	retryTimer   *time.Timer
	lastDispatch time.Time

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *Metrics
}

// New creates a scheduler and starts its dispatch loop.
func New(cfg Config, metrics *Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:     cfg.withDefaults(),
		tracked: make(map[string]*request),
		running: make(map[string]*request),
		failed:  make(map[string]error),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Submit enqueues an operation for key and blocks until it resolves.
// A submit for a key already queued, retrying, or in flight is rejected
// immediately with types.ErrDuplicateRequest. A submit for a previously
// failed key clears the failure mark and tries again from scratch.
func (s *Scheduler) Submit(ctx context.Context, key string, op Operation) (any, error) {
	s.mu.Lock()
	if _, dup := s.tracked[key]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", key, types.ErrDuplicateRequest)
	}
	delete(s.failed, key) // a fresh submit is a manual re-request
	req := &request{key: key, op: op, done: make(chan outcome, 1)}
	s.tracked[key] = req
	s.queue = append(s.queue, req)
	s.updateGauges()
	s.mu.Unlock()
	s.signal()

	select {
	case out := <-req.done:
		return out.value, out.err
	case <-ctx.Done():
		s.Cancel(key)
		return nil, fmt.Errorf("%s: %w", key, types.ErrCancelled)
	}
}

// Cancel rejects one key's queued or in-flight request with
// types.ErrCancelled. Returns false if the key is not tracked.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	req, ok := s.tracked[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.removeLocked(req)
	s.updateGauges()
	s.mu.Unlock()

	s.reject(req)
	return true
}

// CancelAll rejects every queued and in-flight request with
// types.ErrCancelled and atomically clears all internal queues. Operations
// already on the wire cannot be aborted; their late responses are discarded.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	victims := make([]*request, 0, len(s.tracked))
	for _, req := range s.tracked {
		victims = append(victims, req)
	}
	s.queue = nil
	s.retrying = nil
	s.tracked = make(map[string]*request)
	s.running = make(map[string]*request)
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.updateGauges()
	s.mu.Unlock()

	for _, req := range victims {
		s.reject(req)
	}
}

func (s *Scheduler) reject(req *request) {
	if req.opCancel != nil {
		req.opCancel()
	}
	req.resolve(nil, fmt.Errorf("%s: %w", req.key, types.ErrCancelled))
	s.metrics.cancelled()
}

// Status returns current queue depths.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Queued:   len(s.queue),
		Retrying: len(s.retrying),
		InFlight: len(s.running),
		Failed:   len(s.failed),
	}
}

// FailedError returns the terminal error recorded for key, if any.
func (s *Scheduler) FailedError(key string) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.failed[key]
	return err, ok
}

// Stop cancels everything outstanding and halts the dispatch loop.
func (s *Scheduler) Stop() {
	s.CancelAll()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			empty := len(s.queue) == 0
			s.mu.Unlock()
			if empty {
				break
			}
			if !s.pace() {
				return
			}
			req := s.popNext()
			if req == nil {
				continue
			}
			s.launch(req)
		}
	}
}

// pace blocks until the minimum interval since the previous dispatch has
// elapsed. Returns false if the scheduler is shutting down.
func (s *Scheduler) pace() bool {
	s.mu.Lock()
	wait := s.cfg.MinInterval - time.Since(s.lastDispatch)
	s.mu.Unlock()
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Scheduler) popNext() *request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	req := s.queue[0]
	s.queue = s.queue[1:]
	s.running[req.key] = req
	s.lastDispatch = time.Now()
	s.updateGauges()
	return req
}

func (s *Scheduler) launch(req *request) {
	opCtx, opCancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	req.opCancel = opCancel
	s.mu.Unlock()

	s.metrics.dispatched()
	go func() {
		defer opCancel()
		value, err := req.op(opCtx)
		s.complete(req, value, err)
	}()
}

func (s *Scheduler) complete(req *request, value any, err error) {
	s.mu.Lock()
	if s.tracked[req.key] != req {
		// cancelled while executing; the late response is discardable
		s.mu.Unlock()
		return
	}
	delete(s.running, req.key)

	if err == nil {
		delete(s.tracked, req.key)
		s.updateGauges()
		s.mu.Unlock()
		req.resolve(value, nil)
		return
	}

	if types.Retryable(err) && req.attempts < s.cfg.MaxRetries {
		req.attempts++
		s.retrying = append(s.retrying, req)
		s.scheduleReplayLocked()
		s.updateGauges()
		s.mu.Unlock()
		s.metrics.retried()
		logger.Warn(s.ctx, "Request failed, queued for retry",
			"key", req.key, "attempt", req.attempts, "max_retries", s.cfg.MaxRetries, "error", err)
		return
	}

	// terminal: retries exhausted or non-retryable class
	s.failed[req.key] = err
	delete(s.tracked, req.key)
	s.updateGauges()
	s.mu.Unlock()
	s.metrics.failedTerminal()
	logger.ErrorWithErr(s.ctx, "Request failed terminally", err,
		"key", req.key, "attempts", req.attempts)
	req.resolve(nil, err)
}

// scheduleReplayLocked arms the replay timer once; when it fires the whole
// retry batch moves back onto the dispatch queue together.
func (s *Scheduler) scheduleReplayLocked() {
	if s.retryTimer != nil {
		return
	}
	s.retryTimer = time.AfterFunc(s.cfg.RetryDelay, s.replay)
}

func (s *Scheduler) replay() {
	s.mu.Lock()
	batch := s.retrying
	s.retrying = nil
	s.retryTimer = nil
	s.queue = append(s.queue, batch...)
	s.updateGauges()
	s.mu.Unlock()
	if len(batch) > 0 {
		s.signal()
	}
}

// removeLocked detaches req from whichever queue currently holds it.
func (s *Scheduler) removeLocked(req *request) {
	delete(s.tracked, req.key)
	delete(s.running, req.key)
	for i, r := range s.queue {
		if r == req {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	for i, r := range s.retrying {
		if r == req {
			s.retrying = append(s.retrying[:i], s.retrying[i+1:]...)
			break
		}
	}
}

func (s *Scheduler) updateGauges() {
	s.metrics.setQueues(len(s.queue), len(s.retrying), len(s.running), len(s.failed))
}
