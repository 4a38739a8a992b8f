package bootstrap

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/graph-coordinator/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: " INFO ", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "trace", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { SetLogLevel("info") })

	assert.Equal(t, slog.LevelDebug, SetLogLevel("debug"))
	assert.Equal(t, slog.LevelDebug, logLevel.Level())
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVICE_REGISTRY_TTL", "3")
	t.Setenv("SWEEPER_INTERVAL", "5")
	t.Setenv("SERVICE_REGISTRY_BACKEND", "consul")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9999")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Registry.TTL.Duration())
	// Interval at or above the TTL is clamped to half of it.
	assert.Equal(t, 1500*time.Millisecond, cfg.Sweeper.Interval.Duration())
	assert.Equal(t, config.RegistryBackendMemory, cfg.Registry.Backend)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("SWEEPER_INTERVAL", "often")

	_, err := LoadConfig()
	require.Error(t, err)
}
