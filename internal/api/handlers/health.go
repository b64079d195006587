package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mkallaste/podforge/internal/registry"
)

type HealthHandler struct {
	reg registry.Registry
}

func NewHealthHandler(reg registry.Registry) *HealthHandler {
	return &HealthHandler{reg: reg}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.reg != nil {
		if err := h.reg.Ping(r.Context()); err != nil {
			checks["registry"] = "unhealthy: " + err.Error()
		} else {
			checks["registry"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
