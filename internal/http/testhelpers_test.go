package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/graph-coordinator/internal/core"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/observability/metrics"
	"github.com/target/graph-coordinator/internal/service"
	"github.com/target/graph-coordinator/internal/testutil"
)

type testEnv struct {
	handler http.Handler
	clock   *data.FixedTimeProvider
	coord   *service.Coordinator
	metrics *metrics.Recorder
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, data.NewMemoryServiceStore())
}

func newTestEnvWithStore(t *testing.T, store core.ServiceStore) *testEnv {
	t.Helper()
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	rec := metrics.NewRecorder(metrics.RecorderOptions{})

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Store:        data.NewMemoryJobStore(),
		TimeProvider: clock,
		Metrics:      rec,
	})
	require.NoError(t, err)

	registry, err := service.NewRegistryService(service.RegistryServiceOptions{
		Store:         store,
		DefaultTTL:    30 * time.Second,
		SweepInterval: time.Hour,
		TimeProvider:  clock,
		Metrics:       rec,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	coord, err := service.NewCoordinator(service.CoordinatorOptions{
		Jobs:         jobs,
		Registry:     registry,
		Build:        service.BuildInfo{Version: "1.0.0", Commit: "deadbeef"},
		TimeProvider: clock,
	})
	require.NoError(t, err)

	return &testEnv{
		handler: NewRouter(RouterServices{Coordinator: coord, Metrics: rec, Logger: discardLogger()}),
		clock:   clock,
		coord:   coord,
		metrics: rec,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}
