package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/graph-coordinator/internal/observability/metrics"
	"github.com/target/graph-coordinator/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Coordinator *service.Coordinator
	// Metrics is optional; /metrics is only mounted when set.
	Metrics *metrics.Recorder
	// Logger is optional; request logging and panic recovery are skipped without it.
	Logger *slog.Logger
}

// NewRouter creates the coordinator's HTTP handler.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	registerJobRoutes(mux, &JobHandlers{Svc: services.Coordinator})
	registerServiceRoutes(mux, &ServiceHandlers{Svc: services.Coordinator})
	registerDeploymentRoutes(mux, &DeploymentHandlers{Svc: services.Coordinator})
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics.Handler())
	}

	if services.Logger == nil {
		return mux
	}
	return Chain(mux, Recover(services.Logger), Logging(services.Logger))
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/jobs", h.SubmitJob)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/stats", h.Stats)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /api/jobs/{id}/transition", h.TransitionJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", h.CancelJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.DeleteJob)
}

func registerServiceRoutes(mux *http.ServeMux, h *ServiceHandlers) {
	const svcPath = "/api/graphs/{graph_id}/services/{service_name}"
	mux.HandleFunc("PUT "+svcPath, h.Register)
	mux.HandleFunc("POST "+svcPath+"/heartbeat", h.Heartbeat)
	mux.HandleFunc("GET "+svcPath, h.Get)
	mux.HandleFunc("DELETE "+svcPath, h.Deregister)
	mux.HandleFunc("GET /api/graphs/{graph_id}/services", h.ListGraph)
	mux.HandleFunc("GET /api/services", h.List)
}

func registerDeploymentRoutes(mux *http.ServeMux, h *DeploymentHandlers) {
	mux.HandleFunc("GET /api/deployment/status", h.Status)
	mux.HandleFunc("GET /api/deployment/info", h.Info)
}
