package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/graph-coordinator/internal/core"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/observability/metrics"
)

// SweeperOptions groups dependencies for Sweeper.
type SweeperOptions struct {
	Store        core.ServiceStore // Required: registry store to evict from
	Interval     time.Duration     // Required: time between passes, must be positive
	TimeProvider data.TimeProvider // Optional: clock used for deadlines
	Logger       *slog.Logger      // Optional: structured logger
	Metrics      *metrics.Recorder // Optional: Prometheus recorder
}

// Sweeper periodically evicts expired service records.
//
// It runs one background goroutine driven by a ticker. Each pass holds the store lock only
// for the scan itself. Stop cancels the goroutine and waits for it, so no eviction happens
// after Stop returns.
type Sweeper struct {
	store    core.ServiceStore
	interval time.Duration
	clock    data.TimeProvider
	logger   *slog.Logger
	metrics  *metrics.Recorder

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	failures atomic.Int64
}

// NewSweeper constructs a Sweeper. It does not start it.
func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Store == nil {
		return nil, errors.New("ServiceStore is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("sweeper interval must be positive, got %s", opts.Interval)
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sweeper")
	}

	return &Sweeper{
		store:    opts.Store,
		interval: opts.Interval,
		clock:    data.OrRealTime(opts.TimeProvider),
		logger:   logger,
		metrics:  opts.Metrics,
	}, nil
}

// Start launches the background loop. The loop ends when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return errors.New("sweeper already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.run(loopCtx)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "sweeper started", "interval", s.interval)
	}
	return nil
}

// Stop cancels the loop and blocks until it has exited. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel, done := s.cancel, s.done
		s.mu.Unlock()

		if cancel == nil {
			return
		}
		cancel()
		<-done
	})
}

// Running reports whether the background loop is alive.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Failures returns how many passes have failed since start.
func (s *Sweeper) Failures() int64 {
	return s.failures.Load()
}

// Interval returns the configured pass interval.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

func (s *Sweeper) run(ctx context.Context) {
	defer func() {
		s.running.Store(false)
		close(s.done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("sweeper stopping", "reason", ctx.Err())
			}
			return
		case <-ticker.C:
			// SweepOnce logs and counts its own failures; the loop keeps going.
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single eviction pass at the current clock time.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.clock.Now()

	n, err := s.store.DeleteExpired(ctx, now)
	s.metrics.ObserveSweep(n, time.Since(start), suppressContextCancellation(err))

	if err != nil {
		if isContextCancellation(err) {
			if s.logger != nil {
				s.logger.Debug("sweep cancelled by context", "error", err)
			}
			return n, err
		}
		s.failures.Add(1)
		if s.logger != nil {
			s.logger.Error("sweep failed", "error", err)
		}
		return n, fmt.Errorf("sweep: %w", err)
	}

	if n > 0 && s.logger != nil {
		s.logger.Info("evicted expired services", "count", n, "at", now)
	}
	return n, nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
