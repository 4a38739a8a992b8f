package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/graph-coordinator/config"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
	apperrors "github.com/target/graph-coordinator/internal/errors"
	"github.com/target/graph-coordinator/internal/observability/metrics"
)

const (
	reapOpCancelPending  = "cancel_pending"
	reapOpDeleteTerminal = "delete_terminal"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Jobs         *JobService            // Required: job manager to reap
	Config       config.JobReaperConfig // Required: retention configuration
	TimeProvider data.TimeProvider      // Optional: clock used for age checks
	Logger       *slog.Logger           // Optional: structured logger
	Metrics      *metrics.Recorder      // Optional: Prometheus recorder
}

// ReaperService bounds the job table.
//
// Each pass:
// - Cancels jobs that have been pending longer than PendingMaxAge.
// - Deletes terminal jobs whose last update is older than TerminalMaxAge.
type ReaperService struct {
	jobs    *JobService
	config  config.JobReaperConfig
	clock   data.TimeProvider
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, fmt.Errorf("reaper interval must be positive, got %s", opts.Config.Interval)
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_reaper")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
			"terminal_max_age", opts.Config.TerminalMaxAge,
		)
	}

	return &ReaperService{
		jobs:    opts.Jobs,
		config:  opts.Config,
		clock:   data.OrRealTime(opts.TimeProvider),
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting job reaper", "interval", s.config.Interval)
	}

	// Spread replicas that start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial job reap")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter sleeps for a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "job reaper stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "job reap")
			}
		}
	}
}

// ReapResult counts what one pass changed.
type ReapResult struct {
	Cancelled int64
	Deleted   int64
}

// RunOnce performs a single reaper pass. A failing step does not stop the other.
func (s *ReaperService) RunOnce(ctx context.Context) (ReapResult, error) {
	start := time.Now()
	var (
		res                ReapResult
		errs               []error
		allContextCanceled = true
	)

	steps := []cleanupStep{
		{fn: s.cancelStalePendingJobs, label: "cancel stale pending jobs", op: reapOpCancelPending, count: &res.Cancelled},
		{fn: s.deleteOldTerminalJobs, label: "delete old terminal jobs", op: reapOpDeleteTerminal, count: &res.Deleted},
	}

	for _, step := range steps {
		count, err := step.fn(ctx)
		*step.count = count
		s.metrics.EmitReapOperation(metrics.ReapOperationMetric{
			Operation: step.op,
			Count:     count,
			Err:       suppressContextCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			allContextCanceled = allContextCanceled && isContextCancellation(err)
		}
	}

	var err error
	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled {
			err = context.Canceled
		} else {
			err = fmt.Errorf("job reap failed: %w", joined)
		}
	}
	s.metrics.ObserveReap(res.Cancelled+res.Deleted, time.Since(start), suppressContextCancellation(err))
	return res, err
}

type cleanupStep struct {
	fn    func(context.Context) (int64, error)
	label string
	op    string
	count *int64
}

// cancelStalePendingJobs cancels pending jobs created more than PendingMaxAge ago.
// Jobs that moved on since the listing are skipped.
func (s *ReaperService) cancelStalePendingJobs(ctx context.Context) (int64, error) {
	maxAge := s.config.PendingMaxAge
	if maxAge <= 0 {
		return 0, nil
	}

	jobs, err := s.jobs.List(ctx, model.JobListOptions{Status: model.JobStatusPending})
	if err != nil {
		return 0, err
	}

	cutoff := s.clock.Now().Add(-maxAge)
	reason := fmt.Sprintf("cancelled by reaper: pending longer than %s", maxAge)
	var total int64
	for _, job := range jobs {
		if job.CreatedAt.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if _, err := s.jobs.Cancel(ctx, job.ID, reason); err != nil {
			if apperrors.IsInvalidTransition(err) || apperrors.IsNotFound(err) {
				continue
			}
			return total, err
		}
		total++
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "cancelled stale pending jobs",
			"count", total,
			"max_age", maxAge,
		)
	}
	return total, nil
}

// deleteOldTerminalJobs deletes finished jobs last updated more than TerminalMaxAge ago.
func (s *ReaperService) deleteOldTerminalJobs(ctx context.Context) (int64, error) {
	maxAge := s.config.TerminalMaxAge
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := s.clock.Now().Add(-maxAge)
	var total int64
	for _, status := range model.AllJobStatuses {
		if !status.Terminal() {
			continue
		}
		jobs, err := s.jobs.List(ctx, model.JobListOptions{Status: status})
		if err != nil {
			return total, err
		}
		var statusCount int64
		for _, job := range jobs {
			if job.UpdatedAt.After(cutoff) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := s.jobs.Delete(ctx, job.ID); err != nil {
				if apperrors.IsNotFound(err) {
					continue
				}
				return total, err
			}
			statusCount++
		}
		total += statusCount

		if statusCount > 0 && s.logger != nil {
			s.logger.InfoContext(ctx, "deleted old terminal jobs",
				"status", status,
				"count", statusCount,
				"max_age", maxAge,
			)
		}
	}
	return total, nil
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}
