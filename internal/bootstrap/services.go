package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/graph-coordinator/config"
	redisadapter "github.com/target/graph-coordinator/internal/adapters/redis"
	"github.com/target/graph-coordinator/internal/core"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/observability/metrics"
	"github.com/target/graph-coordinator/internal/service"
	"golang.org/x/sync/errgroup"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Coordinator *service.Coordinator
	Jobs        *service.JobService
	Registry    *service.RegistryService
	Reaper      *service.ReaperService // nil when job retention is disabled
	Metrics     *metrics.Recorder      // nil when metrics are disabled
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config       *config.AppConfig
	RedisClient  redis.UniversalClient // Required when the registry backend is redis
	Build        service.BuildInfo
	TimeProvider data.TimeProvider // Optional: clock source
	Logger       *slog.Logger
}

// NewServices builds the stores, job manager, registry (starting its sweeper) and coordinator.
// The caller must Close the coordinator on shutdown.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	cfg := deps.Config

	var rec *metrics.Recorder
	if cfg.Observability.Metrics.IsEnabled() {
		rec = metrics.NewRecorder(metrics.RecorderOptions{
			RuntimeCollectors: cfg.Observability.Metrics.RuntimeCollectors,
		})
	}

	store, err := buildServiceStore(deps)
	if err != nil {
		return ServiceContainer{}, err
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Store:        data.NewMemoryJobStore(),
		TimeProvider: deps.TimeProvider,
		Logger:       deps.Logger,
		Metrics:      rec,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job service: %w", err)
	}

	var reaper *service.ReaperService
	if cfg.JobReaper.Active() {
		reaper, err = service.NewReaperService(service.ReaperServiceOptions{
			Jobs:         jobs,
			Config:       cfg.JobReaper,
			TimeProvider: deps.TimeProvider,
			Logger:       deps.Logger,
			Metrics:      rec,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("create job reaper: %w", err)
		}
	}

	registry, err := service.NewRegistryService(service.RegistryServiceOptions{
		Store:         store,
		DefaultTTL:    cfg.Registry.TTL.Duration(),
		SweepInterval: cfg.Sweeper.Interval.Duration(),
		TimeProvider:  deps.TimeProvider,
		Logger:        deps.Logger,
		Metrics:       rec,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create service registry: %w", err)
	}

	build := deps.Build
	if build.Name == "" {
		build.Name = cfg.Deployment.Name
	}
	build.RegistryBackend = string(cfg.Registry.Backend)

	coord, err := service.NewCoordinator(service.CoordinatorOptions{
		Jobs:         jobs,
		Registry:     registry,
		Build:        build,
		TimeProvider: deps.TimeProvider,
		Logger:       deps.Logger,
	})
	if err != nil {
		// The sweeper is already running; stop it before reporting the failure.
		return ServiceContainer{}, errors.Join(
			fmt.Errorf("create coordinator: %w", err),
			registry.Close(context.Background()),
		)
	}

	return ServiceContainer{
		Coordinator: coord,
		Jobs:        jobs,
		Registry:    registry,
		Reaper:      reaper,
		Metrics:     rec,
	}, nil
}

// buildServiceStore selects the registry backend.
//
//nolint:ireturn // the backend is chosen at runtime from config.
func buildServiceStore(deps *ServiceDeps) (core.ServiceStore, error) {
	if !deps.Config.UsesRedis() {
		return data.NewMemoryServiceStore(), nil
	}
	if deps.RedisClient == nil {
		return nil, errors.New("redis registry backend requires a redis client")
	}
	store, err := redisadapter.NewServiceStore(redisadapter.ServiceStoreOptions{
		Client:       deps.RedisClient,
		Prefix:       deps.Config.Redis.KeyPrefix,
		TimeProvider: deps.TimeProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis service store: %w", err)
	}
	return store, nil
}

const defaultShutdownTimeout = 10 * time.Second

// ServiceOrchestrationConfig contains everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// Listener is optional; when nil the server listens on Config.HTTP.Addr.
	Listener net.Listener
}

// RunServicesWithShutdown serves HTTP and runs the job reaper until ctx is cancelled,
// SIGINT/SIGTERM arrives or either fails. Shutdown stops accepting requests first, then closes
// the coordinator, which stops the registry sweeper. Closing external clients is left to the caller.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services.Coordinator == nil {
		return errors.New("service orchestration config is incomplete")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := NewHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(logger, server, cfg.Listener)
	})
	if reaper := cfg.Services.Reaper; reaper != nil {
		g.Go(func() error {
			return reaper.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested", "reason", context.Cause(gctx))
		return gracefulStop(context.WithoutCancel(gctx), cfg, server, logger)
	})

	return g.Wait()
}

func serveHTTP(logger *slog.Logger, server *http.Server, ln net.Listener) error {
	var err error
	if ln != nil {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		err = server.Serve(ln)
	} else {
		logger.Info("starting HTTP server", "addr", server.Addr)
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func gracefulStop(ctx context.Context, cfg *ServiceOrchestrationConfig, server *http.Server, logger *slog.Logger) error {
	httpErr := ShutdownHTTPServer(ShutdownConfig{
		Context: ctx,
		Server:  server,
		Timeout: cfg.Config.HTTP.ShutdownTimeout,
		Logger:  logger,
	})

	timeout := cfg.Config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	closeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var closeErr error
	if err := cfg.Services.Coordinator.Close(closeCtx); err != nil {
		closeErr = fmt.Errorf("close coordinator: %w", err)
	} else {
		logger.Info("service registry stopped")
	}

	return errors.Join(httpErr, closeErr)
}
