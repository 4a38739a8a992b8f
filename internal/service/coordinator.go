package service

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
)

const defaultProbeTimeout = 2 * time.Second

// BuildInfo is the static version metadata stamped into the binary.
type BuildInfo struct {
	Name            string
	Version         string
	Commit          string
	BuildDate       string
	RegistryBackend string
}

// CoordinatorOptions groups dependencies for Coordinator.
type CoordinatorOptions struct {
	Jobs         *JobService       // Required: job manager
	Registry     *RegistryService  // Required: service registry
	Build        BuildInfo         // Optional: version metadata
	TimeProvider data.TimeProvider // Optional: clock source
	ProbeTimeout time.Duration     // Optional: per-component health probe timeout
	Logger       *slog.Logger      // Optional: structured logger
}

// Coordinator is the single entry point used by the HTTP layer. It forwards job and registry
// operations and reports the health of both subsystems.
type Coordinator struct {
	jobs         *JobService
	registry     *RegistryService
	info         model.DeploymentInfo
	clock        data.TimeProvider
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("RegistryService is required")
	}

	clock := data.OrRealTime(opts.TimeProvider)
	probe := opts.ProbeTimeout
	if probe <= 0 {
		probe = defaultProbeTimeout
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "coordinator")
	}

	name := opts.Build.Name
	if name == "" {
		name = "graph-coordinator"
	}

	return &Coordinator{
		jobs:     opts.Jobs,
		registry: opts.Registry,
		info: model.DeploymentInfo{
			Name:            name,
			Version:         valueOr(opts.Build.Version, "dev"),
			Commit:          valueOr(opts.Build.Commit, "unknown"),
			BuildDate:       valueOr(opts.Build.BuildDate, "unknown"),
			GoVersion:       runtime.Version(),
			RegistryBackend: valueOr(opts.Build.RegistryBackend, "memory"),
			StartedAt:       clock.Now(),
		},
		clock:        clock,
		probeTimeout: probe,
		logger:       logger,
	}, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// DeploymentInfo returns static build and runtime metadata.
func (c *Coordinator) DeploymentInfo() model.DeploymentInfo {
	return c.info
}

// DeploymentStatus probes both subsystems. The aggregate is running only when every
// component is initialized and reachable.
func (c *Coordinator) DeploymentStatus(ctx context.Context) model.DeploymentStatus {
	jobsStatus, stats := c.probeJobs(ctx)
	registryStatus, live := c.probeRegistry(ctx)

	st := model.DeploymentStatus{
		Status:       model.DeploymentRunning,
		Components:   []model.ComponentStatus{jobsStatus, registryStatus},
		Jobs:         stats,
		LiveServices: live,
		CheckedAt:    c.clock.Now(),
	}
	for _, comp := range st.Components {
		if !comp.Healthy() {
			st.Status = model.DeploymentDegraded
		}
	}
	if st.Status == model.DeploymentDegraded && c.logger != nil {
		c.logger.WarnContext(ctx, "deployment degraded",
			"job_manager_error", jobsStatus.Error,
			"service_registry_error", registryStatus.Error,
		)
	}
	return st
}

func (c *Coordinator) probeJobs(ctx context.Context) (model.ComponentStatus, model.JobStats) {
	comp := model.ComponentStatus{Name: model.ComponentJobManager, Initialized: true}

	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if err := c.jobs.Ping(pctx); err != nil {
		comp.Error = err.Error()
		return comp, model.JobStats{}
	}
	stats, err := c.jobs.Stats(pctx)
	if err != nil {
		comp.Error = err.Error()
		return comp, model.JobStats{}
	}
	comp.Reachable = true
	return comp, *stats
}

func (c *Coordinator) probeRegistry(ctx context.Context) (model.ComponentStatus, int) {
	comp := model.ComponentStatus{Name: model.ComponentServiceRegistry, Initialized: true}

	if !c.registry.SweeperRunning() {
		comp.Error = "sweeper not running"
		return comp, 0
	}

	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if err := c.registry.Ping(pctx); err != nil {
		comp.Error = err.Error()
		return comp, 0
	}
	live, err := c.registry.LiveCount(pctx)
	if err != nil {
		comp.Error = err.Error()
		return comp, 0
	}
	comp.Reachable = true
	return comp, live
}

// SubmitJob forwards to JobService.Submit.
func (c *Coordinator) SubmitJob(ctx context.Context, req model.SubmitJobRequest) (*model.Job, error) {
	return c.jobs.Submit(ctx, req)
}

// TransitionJob forwards to JobService.Transition.
func (c *Coordinator) TransitionJob(
	ctx context.Context,
	id string,
	status model.JobStatus,
	detail string,
) (*model.Job, error) {
	return c.jobs.Transition(ctx, id, status, detail)
}

// CancelJob forwards to JobService.Cancel.
func (c *Coordinator) CancelJob(ctx context.Context, id, reason string) (*model.Job, error) {
	return c.jobs.Cancel(ctx, id, reason)
}

// GetJob forwards to JobService.Get.
func (c *Coordinator) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return c.jobs.Get(ctx, id)
}

// ListJobs forwards to JobService.List.
func (c *Coordinator) ListJobs(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	return c.jobs.List(ctx, opts)
}

// DeleteJob forwards to JobService.Delete.
func (c *Coordinator) DeleteJob(ctx context.Context, id string) error {
	return c.jobs.Delete(ctx, id)
}

// JobStats forwards to JobService.Stats.
func (c *Coordinator) JobStats(ctx context.Context) (*model.JobStats, error) {
	return c.jobs.Stats(ctx)
}

// RegisterService forwards to RegistryService.Register.
func (c *Coordinator) RegisterService(
	ctx context.Context,
	req model.RegisterServiceRequest,
) (*model.ServiceRecord, error) {
	return c.registry.Register(ctx, req)
}

// RenewService forwards to RegistryService.Renew.
func (c *Coordinator) RenewService(
	ctx context.Context,
	key model.ServiceKey,
	ttl time.Duration,
) (*model.ServiceRecord, error) {
	return c.registry.Renew(ctx, key, ttl)
}

// GetService forwards to RegistryService.Get.
func (c *Coordinator) GetService(ctx context.Context, key model.ServiceKey) (*model.ServiceRecord, error) {
	return c.registry.Get(ctx, key)
}

// ListServices forwards to RegistryService.List.
func (c *Coordinator) ListServices(
	ctx context.Context,
	filter model.ServiceListFilter,
) ([]*model.ServiceRecord, error) {
	return c.registry.List(ctx, filter)
}

// DeregisterService forwards to RegistryService.Deregister.
func (c *Coordinator) DeregisterService(ctx context.Context, key model.ServiceKey) error {
	return c.registry.Deregister(ctx, key)
}

// SweepServices forwards to RegistryService.Sweep.
func (c *Coordinator) SweepServices(ctx context.Context) (int, error) {
	return c.registry.Sweep(ctx)
}

// DefaultServiceTTL returns the registry's default TTL.
func (c *Coordinator) DefaultServiceTTL() time.Duration {
	return c.registry.DefaultTTL()
}

// Close shuts down the registry sweeper.
func (c *Coordinator) Close(ctx context.Context) error {
	return c.registry.Close(ctx)
}
