package httpx

import (
	"net/http"

	"github.com/target/graph-coordinator/internal/domain/model"
	"github.com/target/graph-coordinator/internal/service"
)

// DeploymentHandlers exposes coordinator status and build metadata.
type DeploymentHandlers struct {
	Svc *service.Coordinator
}

// Status handles GET /api/deployment/status. A degraded deployment answers 503 with the same body.
func (h *DeploymentHandlers) Status(w http.ResponseWriter, r *http.Request) {
	st := h.Svc.DeploymentStatus(r.Context())
	code := http.StatusOK
	if st.Status != model.DeploymentRunning {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, st)
}

// Info handles GET /api/deployment/info.
func (h *DeploymentHandlers) Info(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.Svc.DeploymentInfo())
}
