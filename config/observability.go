package config

import "strings"

const defaultDeploymentName = "graph-coordinator"

// ObservabilityConfig groups configuration that controls metrics exposition.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls the Prometheus /metrics endpoint.
type ObservabilityMetricsConfig struct {
	Enabled bool `env:"OBSERVABILITY_METRICS_ENABLED" envDefault:"true"`
	// RuntimeCollectors adds Go runtime and process collectors to the registry.
	RuntimeCollectors bool `env:"OBSERVABILITY_METRICS_RUNTIME" envDefault:"true"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	if !c.Enabled {
		c.RuntimeCollectors = false
	}
}

// IsEnabled returns true when metrics exposition is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled
}

// DeploymentConfig names this coordinator deployment in /api/deployment/info.
type DeploymentConfig struct {
	Name string `env:"DEPLOYMENT_NAME" envDefault:"graph-coordinator"`
}

// Sanitize falls back to the default deployment name when blank.
func (c *DeploymentConfig) Sanitize() {
	if c.Name = strings.TrimSpace(c.Name); c.Name == "" {
		c.Name = defaultDeploymentName
	}
}
