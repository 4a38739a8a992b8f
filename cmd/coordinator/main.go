package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/target/graph-coordinator/config"
	"github.com/target/graph-coordinator/internal/bootstrap"
	"github.com/target/graph-coordinator/internal/service"
)

// Set via -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"     //nolint:gochecknoglobals // build metadata
	commit  = "unknown" //nolint:gochecknoglobals // build metadata
	date    = "unknown" //nolint:gochecknoglobals // build metadata
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	bootstrap.SetLogLevel(cfg.LogLevel)

	// Log startup info
	logStartupInfo(ctx, logger, &cfg)

	// Initialize infrastructure
	redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		// Deferred so Redis is closed only after the registry sweeper has stopped.
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	// Initialize and run services
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		RedisClient: redisClient,
		Build: service.BuildInfo{
			Name:      cfg.Deployment.Name,
			Version:   version,
			Commit:    commit,
			BuildDate: date,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting graph coordinator",
		"version", version,
		"commit", commit,
		"http_addr", cfg.HTTP.Addr,
		"registry_backend", cfg.Registry.Backend,
		"service_registry_ttl", cfg.Registry.TTL.String(),
		"sweeper_interval", cfg.Sweeper.Interval.String(),
		"job_reaper", cfg.JobReaper.Active(),
		"log_level", cfg.LogLevel,
	)
}

// initInfrastructure connects the Redis client when the registry uses the redis backend.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (redis.UniversalClient, error) {
	if !cfg.UsesRedis() {
		return nil, nil //nolint:nilnil // no client is needed for the memory backend
	}

	redisClient, err := bootstrap.ConnectRedis(ctx, bootstrap.RedisConnectConfig{
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return redisClient, nil
}
