package httpx

import (
	"net/http"
	"strings"

	"github.com/target/graph-coordinator/internal/domain/model"
	"github.com/target/graph-coordinator/internal/service"
)

// ServiceHandlers provides HTTP handlers for the service registry.
type ServiceHandlers struct {
	Svc *service.Coordinator
}

type registerBody struct {
	Endpoint   string            `json:"endpoint"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	TTLSeconds *int64            `json:"ttl_seconds,omitempty"`
}

type heartbeatBody struct {
	TTLSeconds *int64 `json:"ttl_seconds,omitempty"`
}

// Register handles PUT /api/graphs/{graph_id}/services/{service_name}.
// Omitting ttl_seconds uses the configured default TTL.
func (h *ServiceHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	ttl, err := ttlFromSeconds(body.TTLSeconds, h.Svc.DefaultServiceTTL())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	rec, err := h.Svc.RegisterService(r.Context(), model.RegisterServiceRequest{
		Key:      serviceKeyFromPath(r),
		Endpoint: body.Endpoint,
		Metadata: body.Metadata,
		TTL:      ttl,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Heartbeat handles POST /api/graphs/{graph_id}/services/{service_name}/heartbeat.
func (h *ServiceHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var body heartbeatBody
	if !DecodeOptionalJSON(w, r, &body) {
		return
	}
	ttl, err := ttlFromSeconds(body.TTLSeconds, h.Svc.DefaultServiceTTL())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	rec, err := h.Svc.RenewService(r.Context(), serviceKeyFromPath(r), ttl)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Get handles GET /api/graphs/{graph_id}/services/{service_name}.
func (h *ServiceHandlers) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Svc.GetService(r.Context(), serviceKeyFromPath(r))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Deregister handles DELETE /api/graphs/{graph_id}/services/{service_name}.
// Removing an absent record still answers 204.
func (h *ServiceHandlers) Deregister(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeregisterService(r.Context(), serviceKeyFromPath(r)); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGraph handles GET /api/graphs/{graph_id}/services.
func (h *ServiceHandlers) ListGraph(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.ServiceListFilter{
		GraphID: r.PathValue("graph_id"),
		Query:   strings.TrimSpace(r.URL.Query().Get("query")),
	})
}

// List handles GET /api/services?graph_id=&query=.
func (h *ServiceHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, model.ServiceListFilter{
		GraphID: strings.TrimSpace(q.Get("graph_id")),
		Query:   strings.TrimSpace(q.Get("query")),
	})
}

func (h *ServiceHandlers) list(w http.ResponseWriter, r *http.Request, filter model.ServiceListFilter) {
	recs, err := h.Svc.ListServices(r.Context(), filter)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if recs == nil {
		recs = []*model.ServiceRecord{}
	}
	WriteJSON(w, http.StatusOK, recs)
}
