package config

import "strings"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - http.go: HTTP server configuration
//   - registry.go: service registry TTL, backend and sweeper cadence
//   - redis.go: Redis connection settings for the redis registry backend
//   - reaper.go: job retention
//   - observability.go: metrics and deployment metadata
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP HTTPConfig

	// Service registry configuration
	Registry RegistryConfig
	Sweeper  SweeperConfig
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Job retention
	JobReaper JobReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
	Deployment    DeploymentConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}

	c.HTTP.Sanitize()
	c.Registry.Sanitize()
	// The sweeper cadence depends on the sanitized TTL.
	c.Sweeper.Sanitize(c.Registry.TTL.Duration())
	c.Redis.Sanitize()
	c.JobReaper.Sanitize()
	c.Observability.Sanitize()
	c.Deployment.Sanitize()
}

// UsesRedis reports whether the registry should be backed by Redis.
func (c *AppConfig) UsesRedis() bool {
	return c.Registry.Backend == RegistryBackendRedis
}
