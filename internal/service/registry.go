package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/target/graph-coordinator/internal/core"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
	apperrors "github.com/target/graph-coordinator/internal/errors"
	"github.com/target/graph-coordinator/internal/observability/metrics"
)

// RegistryServiceOptions groups dependencies for RegistryService.
type RegistryServiceOptions struct {
	Store         core.ServiceStore // Required: registry store
	DefaultTTL    time.Duration     // Required: TTL used when a client omits one
	SweepInterval time.Duration     // Required: eviction sweeper interval
	TimeProvider  data.TimeProvider // Optional: clock source, defaults to real time
	Logger        *slog.Logger      // Optional: structured logger
	Metrics       *metrics.Recorder // Optional: Prometheus recorder
	Evaluator     QueryEvaluator    // Optional: JMESPath evaluator for list queries
}

// RegistryService is the TTL-based service registry.
//
// Graph engines register named endpoints for a graph instance and keep them alive by
// re-registering or sending heartbeats. Lookups never return a record whose deadline has
// passed, even before the sweeper has evicted it.
type RegistryService struct {
	store      core.ServiceStore
	defaultTTL time.Duration
	clock      data.TimeProvider
	logger     *slog.Logger
	metrics    *metrics.Recorder
	evaluator  QueryEvaluator
	sweeper    *Sweeper
	closeOnce  sync.Once

	// sweepMu orders manual sweeps against Close; closed is guarded by it.
	sweepMu sync.RWMutex
	closed  bool
}

// ErrRegistryClosed is returned by Sweep once Close has run.
var ErrRegistryClosed = errors.New("service registry is closed")

// NewRegistryService constructs a RegistryService and starts its eviction sweeper.
// A sweeper that cannot be started is a construction error.
func NewRegistryService(opts RegistryServiceOptions) (*RegistryService, error) {
	if opts.Store == nil {
		return nil, errors.New("ServiceStore is required")
	}
	if opts.DefaultTTL <= 0 {
		return nil, fmt.Errorf("default ttl must be positive, got %s", opts.DefaultTTL)
	}

	clock := data.OrRealTime(opts.TimeProvider)
	evaluator := opts.Evaluator
	if evaluator == nil {
		evaluator = jmespathLibEvaluator{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "registry_service")
		logger.Debug("RegistryService initialized",
			"default_ttl", opts.DefaultTTL,
			"sweep_interval", opts.SweepInterval,
		)
	}

	sweeper, err := NewSweeper(SweeperOptions{
		Store:        opts.Store,
		Interval:     opts.SweepInterval,
		TimeProvider: clock,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create sweeper: %w", err)
	}
	if err := sweeper.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start sweeper: %w", err)
	}

	return &RegistryService{
		store:      opts.Store,
		defaultTTL: opts.DefaultTTL,
		clock:      clock,
		logger:     logger,
		metrics:    opts.Metrics,
		evaluator:  evaluator,
		sweeper:    sweeper,
	}, nil
}

// DefaultTTL returns the TTL applied when a client omits one.
func (s *RegistryService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Register inserts or refreshes a record with ExpiresAt = now + ttl. Re-registering an existing
// key is the renewal path and replaces endpoint and metadata.
func (s *RegistryService) Register(
	ctx context.Context,
	req model.RegisterServiceRequest,
) (*model.ServiceRecord, error) {
	rec, err := s.register(ctx, req)
	s.emit("register", err)
	return rec, err
}

func (s *RegistryService) register(
	ctx context.Context,
	req model.RegisterServiceRequest,
) (*model.ServiceRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	now := s.clock.Now()
	rec := &model.ServiceRecord{
		Key:          req.Key,
		Endpoint:     strings.TrimSpace(req.Endpoint),
		Metadata:     req.Metadata,
		RegisteredAt: now,
		ExpiresAt:    now.Add(req.TTL),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("register %s: %w", req.Key, err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "service registered",
			"key", req.Key.String(),
			"endpoint", rec.Endpoint,
			"expires_at", rec.ExpiresAt,
		)
	}
	return rec.Clone(), nil
}

// Renew extends a live record's deadline to now + ttl without touching its endpoint.
func (s *RegistryService) Renew(
	ctx context.Context,
	key model.ServiceKey,
	ttl time.Duration,
) (*model.ServiceRecord, error) {
	rec, err := s.renew(ctx, key, ttl)
	s.emit("renew", err)
	return rec, err
}

func (s *RegistryService) renew(
	ctx context.Context,
	key model.ServiceKey,
	ttl time.Duration,
) (*model.ServiceRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, invalidArgument(err)
	}
	if ttl <= 0 {
		return nil, apperrors.InvalidArgumentField("ttl", "ttl must be positive")
	}

	rec, err := s.store.Update(ctx, key, func(r *model.ServiceRecord) error {
		now := s.clock.Now()
		if r.Expired(now) {
			return data.ErrServiceNotFound
		}
		r.ExpiresAt = now.Add(ttl)
		return nil
	})
	if err != nil {
		return nil, mapServiceStoreError(err, key)
	}
	return rec, nil
}

// Get returns the live record for key.
func (s *RegistryService) Get(ctx context.Context, key model.ServiceKey) (*model.ServiceRecord, error) {
	rec, err := s.get(ctx, key)
	s.emit("get", err)
	return rec, err
}

func (s *RegistryService) get(ctx context.Context, key model.ServiceKey) (*model.ServiceRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, invalidArgument(err)
	}
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, mapServiceStoreError(err, key)
	}
	if rec.Expired(s.clock.Now()) {
		return nil, apperrors.NotFoundf("service %s not found", key)
	}
	return rec, nil
}

// List returns live records sorted by graph id then service name, narrowed by filter.
func (s *RegistryService) List(ctx context.Context, filter model.ServiceListFilter) ([]*model.ServiceRecord, error) {
	query := strings.TrimSpace(filter.Query)
	if query != "" {
		if err := s.evaluator.Validate(query); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidArgument, "invalid query")
		}
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	now := s.clock.Now()
	live := 0
	out := make([]*model.ServiceRecord, 0, len(all))
	for _, rec := range all {
		if rec.Expired(now) {
			continue
		}
		live++
		if filter.GraphID != "" && rec.Key.GraphID != filter.GraphID {
			continue
		}
		if query != "" {
			v, err := s.evaluator.Evaluate(query, rec.ToMap())
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidArgument, "evaluate query")
			}
			if !truthy(v) {
				continue
			}
		}
		out = append(out, rec)
	}
	s.metrics.SetLiveServices(live)

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.GraphID != b.GraphID {
			return a.GraphID < b.GraphID
		}
		return a.ServiceName < b.ServiceName
	})
	return out, nil
}

// LiveCount returns the number of records whose deadline has not passed.
func (s *RegistryService) LiveCount(ctx context.Context) (int, error) {
	recs, err := s.List(ctx, model.ServiceListFilter{})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Deregister removes a record. Removing an absent key is not an error.
func (s *RegistryService) Deregister(ctx context.Context, key model.ServiceKey) error {
	if err := key.Validate(); err != nil {
		err = invalidArgument(err)
		s.emit("deregister", err)
		return err
	}
	existed, err := s.store.Delete(ctx, key)
	if err != nil {
		err = fmt.Errorf("deregister %s: %w", key, err)
		s.emit("deregister", err)
		return err
	}

	s.emit("deregister", nil)
	if s.logger != nil {
		s.logger.DebugContext(ctx, "service deregistered", "key", key.String(), "existed", existed)
	}
	return nil
}

// Sweep runs one eviction pass immediately. It fails with ErrRegistryClosed after Close.
func (s *RegistryService) Sweep(ctx context.Context) (int, error) {
	s.sweepMu.RLock()
	defer s.sweepMu.RUnlock()
	if s.closed {
		return 0, ErrRegistryClosed
	}
	return s.sweeper.SweepOnce(ctx)
}

// SweeperRunning reports whether the background sweeper is alive.
func (s *RegistryService) SweeperRunning() bool {
	return s.sweeper.Running()
}

// Ping checks the registry store is reachable.
func (s *RegistryService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close stops the sweeper exactly once and waits for it, bounded by ctx.
func (s *RegistryService) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.sweepMu.Lock()
		s.closed = true
		s.sweepMu.Unlock()

		stopped := make(chan struct{})
		go func() {
			s.sweeper.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
			if s.logger != nil {
				s.logger.Info("registry closed")
			}
		case <-ctx.Done():
			err = fmt.Errorf("waiting for sweeper: %w", ctx.Err())
		}
	})
	return err
}

func (s *RegistryService) emit(op string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	s.metrics.EmitRegistryOp(metrics.RegistryMetric{Operation: op, Result: result, Err: err})
}

func invalidArgument(err error) error {
	var kpe *model.KeyPartError
	if errors.As(err, &kpe) {
		return apperrors.InvalidArgumentField(kpe.Field, kpe.Error())
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInvalidArgument, "invalid argument")
}

func mapServiceStoreError(err error, key model.ServiceKey) error {
	if errors.Is(err, data.ErrServiceNotFound) {
		return apperrors.NotFoundf("service %s not found", key)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("service %s: %w", key, err)
}
