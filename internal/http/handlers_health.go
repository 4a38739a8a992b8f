package httpx

import (
	"net/http"
)

// healthHandler is the liveness probe. It never touches the stores; readiness is reported by
// /api/deployment/status.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
