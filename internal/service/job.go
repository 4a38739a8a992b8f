package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/target/graph-coordinator/internal/core"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
	apperrors "github.com/target/graph-coordinator/internal/errors"
	"github.com/target/graph-coordinator/internal/observability/metrics"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Store        core.JobStore          // Required: job store
	TimeProvider data.TimeProvider      // Optional: clock source, defaults to real time
	Logger       *slog.Logger           // Optional: structured logger
	Metrics      *metrics.Recorder      // Optional: Prometheus recorder
	NewID        func() (string, error) // Optional: id generator, defaults to random UUIDs
}

// JobService tracks asynchronous jobs executed by graph engines.
//
// It owns the job lifecycle graph: pending -> running -> success | failed | cancelled, with
// pending -> cancelled as the only shortcut. Engines report progress through Transition.
type JobService struct {
	store   core.JobStore
	clock   data.TimeProvider
	logger  *slog.Logger
	metrics *metrics.Recorder
	newID   func() (string, error)
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}

	newID := opts.NewID
	if newID == nil {
		newID = newUUID
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized")
	}

	return &JobService{
		store:   opts.Store,
		clock:   data.OrRealTime(opts.TimeProvider),
		logger:  logger,
		metrics: opts.Metrics,
		newID:   newID,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Submit creates a new pending job with a fresh id.
func (s *JobService) Submit(ctx context.Context, req model.SubmitJobRequest) (*model.Job, error) {
	job, err := s.submit(ctx, req)
	s.emit("submit", err)
	return job, err
}

func (s *JobService) submit(ctx context.Context, req model.SubmitJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidArgument, "invalid job request")
	}

	id, err := s.newID()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate job id")
	}

	now := s.clock.Now()
	job := &model.Job{
		ID:        id,
		Status:    model.JobStatusPending,
		Detail:    req.Detail,
		Kind:      req.Kind,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, job); err != nil {
		if errors.Is(err, data.ErrJobExists) {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "job id %s collided", id)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job submitted", "id", id, "kind", req.Kind)
	}
	return job.Clone(), nil
}

// Transition moves a job along one edge of the lifecycle graph and records detail.
// An illegal edge leaves the job untouched, including UpdatedAt.
func (s *JobService) Transition(
	ctx context.Context,
	id string,
	status model.JobStatus,
	detail string,
) (*model.Job, error) {
	if !status.Valid() {
		err := apperrors.InvalidArgumentf("unknown job status %q", status)
		s.emit("invalid_status", err)
		return nil, err
	}

	var from model.JobStatus
	job, err := s.store.Update(ctx, id, func(j *model.Job) error {
		from = j.Status
		if !j.Status.CanTransitionTo(status) {
			return apperrors.InvalidTransitionf("cannot move job %s from %s to %s", id, j.Status, status)
		}
		j.Status = status
		j.Detail = detail
		j.UpdatedAt = s.clock.Now()
		return nil
	})
	err = mapJobStoreError(err, id)
	s.emit(string(status), err)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job transitioned",
			"id", id,
			"from", from,
			"to", status,
		)
	}
	return job, nil
}

// Cancel is Transition(id, cancelled, reason).
func (s *JobService) Cancel(ctx context.Context, id, reason string) (*model.Job, error) {
	return s.Transition(ctx, id, model.JobStatusCancelled, reason)
}

// Get returns a snapshot of the job.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, mapJobStoreError(err, id)
	}
	return job, nil
}

// List returns snapshots of jobs, newest first.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, apperrors.InvalidArgumentf("unknown job status %q", opts.Status)
	}
	if opts.Limit < 0 {
		return nil, apperrors.InvalidArgumentField("limit", "limit must not be negative")
	}
	jobs, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job that has reached a terminal state.
func (s *JobService) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id, func(j *model.Job) error {
		if !j.Status.Terminal() {
			return apperrors.JobNotTerminalf("job %s is %s; only finished jobs can be deleted", id, j.Status)
		}
		return nil
	})
	err = mapJobStoreError(err, id)
	s.emit("delete", err)
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job deleted", "id", id)
	}
	return nil
}

// Stats returns counts per status.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &st, nil
}

// Ping checks the job store is usable.
func (s *JobService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *JobService) emit(transition string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	s.metrics.EmitJobLifecycle(metrics.JobMetric{
		Transition: transition,
		Result:     result,
		Err:        err,
	})
}

func mapJobStoreError(err error, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, data.ErrJobNotFound) {
		return apperrors.NotFoundf("job %s not found", id)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("job %s: %w", id, err)
}
