package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultServiceTTL applies when SERVICE_REGISTRY_TTL is unset or non-positive.
	DefaultServiceTTL = 30 * time.Second
	// DefaultSweeperInterval applies when SWEEPER_INTERVAL is unset or non-positive.
	DefaultSweeperInterval = 10 * time.Second
)

// maxSeconds is the largest whole number of seconds a time.Duration can hold.
const maxSeconds = int64(math.MaxInt64 / int64(time.Second))

// Seconds is a duration read from the environment either as a bare number of seconds
// ("30", "2.5") or as a Go duration string ("1500ms", "1m").
type Seconds time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (s *Seconds) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*s = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > maxSeconds || n < -maxSeconds {
			return fmt.Errorf("duration %q is out of range", raw)
		}
		*s = Seconds(time.Duration(n) * time.Second)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		if math.Abs(f) > float64(maxSeconds) {
			return fmt.Errorf("duration %q is out of range", raw)
		}
		*s = Seconds(time.Duration(f * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: use seconds or a Go duration such as 1500ms", raw)
	}
	*s = Seconds(d)
	return nil
}

// Duration returns s as a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// String renders s the way time.Duration does.
func (s Seconds) String() string {
	return time.Duration(s).String()
}

// RegistryBackend selects where service records are stored.
type RegistryBackend string

const (
	// RegistryBackendMemory keeps records in process memory.
	RegistryBackendMemory RegistryBackend = "memory"
	// RegistryBackendRedis shares records between coordinator replicas through Redis.
	RegistryBackendRedis RegistryBackend = "redis"
)

// RegistryConfig contains service registry configuration.
type RegistryConfig struct {
	// TTL is the default lifetime of a registration when the caller omits one.
	TTL Seconds `env:"SERVICE_REGISTRY_TTL" envDefault:"30"`

	// Backend is memory or redis. Unknown values fall back to memory.
	Backend RegistryBackend `env:"SERVICE_REGISTRY_BACKEND" envDefault:"memory"`
}

// Sanitize applies guardrails to registry configuration values.
func (r *RegistryConfig) Sanitize() {
	if r.TTL <= 0 {
		r.TTL = Seconds(DefaultServiceTTL)
	}
	r.Backend = RegistryBackend(strings.ToLower(strings.TrimSpace(string(r.Backend))))
	switch r.Backend {
	case RegistryBackendMemory, RegistryBackendRedis:
	default:
		r.Backend = RegistryBackendMemory
	}
}

// SweeperConfig contains eviction sweeper configuration.
type SweeperConfig struct {
	// Interval is the sweeper tick interval.
	Interval Seconds `env:"SWEEPER_INTERVAL" envDefault:"10"`
}

// Sanitize applies guardrails to the sweeper interval. An interval at or above ttl is
// clamped to ttl/2 so expired records never linger for more than half a lifetime.
func (s *SweeperConfig) Sanitize(ttl time.Duration) {
	if s.Interval <= 0 {
		s.Interval = Seconds(DefaultSweeperInterval)
	}
	if ttl > 0 && s.Interval.Duration() >= ttl {
		half := ttl / 2
		if half <= 0 {
			half = ttl
		}
		s.Interval = Seconds(half)
	}
}
