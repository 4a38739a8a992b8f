package config

import (
	"strings"
	"time"
)

// RedisConfig contains Redis configuration. Only used when SERVICE_REGISTRY_BACKEND=redis.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// KeyPrefix namespaces registry keys. Keep a {hash tag} in it so cluster deployments
	// route every registry key to one slot.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"graphcoord:{registry}:"`

	// DialTimeout bounds the initial connection and ping.
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
}

// Sanitize trims connection settings and drops blank node entries.
func (r *RedisConfig) Sanitize() {
	r.URI = strings.TrimSpace(r.URI)
	r.KeyPrefix = strings.TrimSpace(r.KeyPrefix)
	r.SentinelNodes = compactNodes(r.SentinelNodes)
	r.ClusterNodes = compactNodes(r.ClusterNodes)
	if r.DB < 0 {
		r.DB = 0
	}
	if r.DialTimeout <= 0 {
		r.DialTimeout = 5 * time.Second
	}
}

func compactNodes(nodes []string) []string {
	out := nodes[:0]
	for _, n := range nodes {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
