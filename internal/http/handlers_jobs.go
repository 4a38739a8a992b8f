// Package httpx provides the JSON/HTTP surface of the graph coordinator.
package httpx

import (
	"net/http"
	"strings"

	"github.com/target/graph-coordinator/internal/domain/model"
	"github.com/target/graph-coordinator/internal/service"
)

// JobHandlers provides HTTP handlers for job lifecycle operations.
type JobHandlers struct {
	Svc *service.Coordinator
}

// transitionBody carries status as a plain string so unknown values surface as
// invalid_argument instead of invalid_json.
type transitionBody struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// SubmitJob handles POST /api/jobs. The body is optional.
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitJobRequest
	if !DecodeOptionalJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.SubmitJob(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+job.ID)
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /api/jobs?status=&limit=.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimitQuery(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	opts := model.JobListOptions{Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		opts.Status = normalizeStatus(raw)
	}

	jobs, err := h.Svc.ListJobs(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// Stats handles GET /api/jobs/stats.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.JobStats(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// TransitionJob handles POST /api/jobs/{id}/transition.
func (h *JobHandlers) TransitionJob(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if !DecodeJSON(w, r, &body) {
		return
	}

	job, err := h.Svc.TransitionJob(r.Context(), r.PathValue("id"), normalizeStatus(body.Status), body.Detail)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// CancelJob handles POST /api/jobs/{id}/cancel. The body is optional.
func (h *JobHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	var req model.CancelJobRequest
	if !DecodeOptionalJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.CancelJob(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DeleteJob handles DELETE /api/jobs/{id}. Only terminal jobs can be deleted.
func (h *JobHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteJob(r.Context(), r.PathValue("id")); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
