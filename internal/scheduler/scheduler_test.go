package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"breakout-scanner/internal/types"
)

func testConfig() Config {
	return Config{
		MinInterval: 5 * time.Millisecond,
		RetryDelay:  10 * time.Millisecond,
		MaxRetries:  2,
	}
}

func TestSubmitResolvesWithOperationResult(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Stop()

	value, err := s.Submit(context.Background(), "AAPL", func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if value != 42 {
		t.Errorf("Expected 42, got %v", value)
	}
}

func TestSubmitRejectsDuplicateKey(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = s.Submit(context.Background(), "AAPL", func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	_, err := s.Submit(context.Background(), "AAPL", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, types.ErrDuplicateRequest) {
		t.Errorf("Expected duplicate rejection, got %v", err)
	}
	close(release)
}

func TestRetryableErrorsAreReplayed(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Stop()

	var attempts int32
	value, err := s.Submit(context.Background(), "AAPL", func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return nil, fmt.Errorf("connect: %w", types.ErrNetwork)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if value != "ok" {
		t.Errorf("Expected ok, got %v", value)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestRetriesExhaust(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Stop()

	var attempts int32
	_, err := s.Submit(context.Background(), "AAPL", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, fmt.Errorf("connect: %w", types.ErrTimeout)
	})
	if !errors.Is(err, types.ErrTimeout) {
		t.Fatalf("Expected timeout after exhaustion, got %v", err)
	}
	// initial attempt plus MaxRetries replays
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}

	if _, ok := s.FailedError("AAPL"); !ok {
		t.Error("Expected key recorded as failed")
	}

	// A fresh submit clears the failure mark and runs again.
	_, err = s.Submit(context.Background(), "AAPL", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Expected re-submit after failure to succeed, got %v", err)
	}
	if _, ok := s.FailedError("AAPL"); ok {
		t.Error("Expected failure mark cleared by re-submit")
	}
}

func TestNonRetryableErrorFailsImmediately(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Stop()

	var attempts int32
	_, err := s.Submit(context.Background(), "AAPL", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, fmt.Errorf("status 429: %w", types.ErrRateLimited)
	})
	if !errors.Is(err, types.ErrRateLimited) {
		t.Fatalf("Expected rate-limit error, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("Expected a single attempt for a non-retryable error, got %d", got)
	}
}

func TestCancelAllRejectsEverythingOutstanding(t *testing.T) {
	cfg := testConfig()
	cfg.MinInterval = 50 * time.Millisecond // keep most submissions queued
	s := New(cfg, nil)
	defer s.Stop()

	const n = 5
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		key := fmt.Sprintf("T%d", i)
		go func() {
			defer wg.Done()
			_, err := s.Submit(context.Background(), key, func(ctx context.Context) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
			errs <- err
		}()
	}

	// Wait until everything is tracked, then cancel in bulk.
	deadline := time.Now().Add(time.Second)
	for {
		st := s.Status()
		if st.Queued+st.InFlight == n || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.CancelAll()
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, types.ErrCancelled) {
			t.Errorf("Expected cancellation, got %v", err)
		}
	}

	st := s.Status()
	if st.Queued != 0 || st.Retrying != 0 || st.InFlight != 0 {
		t.Errorf("Expected empty queues after CancelAll, got %+v", st)
	}
}

func TestCallerContextCancelsSubmit(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		_, err := s.Submit(ctx, "AAPL", func(opCtx context.Context) (any, error) {
			close(started)
			<-opCtx.Done()
			return nil, opCtx.Err()
		})
		done <- err
	}()
	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, types.ErrCancelled) {
			t.Errorf("Expected cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit did not return after caller cancellation")
	}

	if s.Status().InFlight != 0 {
		t.Error("Expected cancelled request removed from in-flight set")
	}
}

func TestDispatchPacing(t *testing.T) {
	cfg := testConfig()
	cfg.MinInterval = 20 * time.Millisecond
	s := New(cfg, nil)
	defer s.Stop()

	var mu sync.Mutex
	var stamps []time.Time
	op := func(ctx context.Context) (any, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		key := fmt.Sprintf("T%d", i)
		go func() {
			defer wg.Done()
			_, _ = s.Submit(context.Background(), key, op)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("Expected 3 dispatches, got %d", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < 15*time.Millisecond {
			t.Errorf("Expected at least ~20ms between dispatches, got %v", gap)
		}
	}
}

func TestStatusSnapshot(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Stop()

	st := s.Status()
	if st.Queued != 0 || st.Retrying != 0 || st.InFlight != 0 || st.Failed != 0 {
		t.Errorf("Expected zeroed status on a fresh scheduler, got %+v", st)
	}
}
