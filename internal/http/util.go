package httpx

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/target/graph-coordinator/internal/domain/model"
	apperrors "github.com/target/graph-coordinator/internal/errors"
)

// maxListLimit caps list endpoints regardless of the requested limit.
const maxListLimit = 1000

// parseLimitQuery reads the optional "limit" query parameter.
// Missing means unbounded (0); values above maxListLimit are clamped.
func parseLimitQuery(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidArgumentField("limit", "limit must be a non-negative integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

// serviceKeyFromPath builds a ServiceKey from the {graph_id}/{service_name} path values.
func serviceKeyFromPath(r *http.Request) model.ServiceKey {
	return model.ServiceKey{
		GraphID:     r.PathValue("graph_id"),
		ServiceName: r.PathValue("service_name"),
	}
}

// maxTTLSeconds keeps ttl_seconds within time.Duration range.
const maxTTLSeconds = int64(math.MaxInt64 / int64(time.Second))

// ttlFromSeconds converts an optional ttl_seconds body field, falling back to def when absent.
func ttlFromSeconds(secs *int64, def time.Duration) (time.Duration, error) {
	if secs == nil {
		return def, nil
	}
	if *secs <= 0 {
		return 0, apperrors.InvalidArgumentField("ttl", "ttl_seconds must be positive")
	}
	if *secs > maxTTLSeconds {
		return 0, apperrors.InvalidArgumentField("ttl", "ttl_seconds is too large")
	}
	return time.Duration(*secs) * time.Second, nil
}

// normalizeStatus lower-cases a status supplied by a client. Unknown values pass through
// so the service layer can reject them as invalid_argument.
func normalizeStatus(raw string) model.JobStatus {
	return model.JobStatus(strings.ToLower(strings.TrimSpace(raw)))
}
