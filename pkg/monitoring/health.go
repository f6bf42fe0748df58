package monitoring

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthCheck is a named probe run by the health endpoint
type HealthCheck func() error

// HealthHandler reports service health, running any registered probes
type HealthHandler struct {
	service string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a health handler for the named service
func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{
		service: service,
		checks:  make(map[string]HealthCheck),
	}
}

// Register adds a named probe
func (h *HealthHandler) Register(name string, check HealthCheck) {
	h.checks[name] = check
}

// ServeHTTP implements http.Handler
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	result := map[string]interface{}{
		"service":   h.service,
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	probes := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(); err != nil {
			probes[name] = err.Error()
			result["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			probes[name] = "ok"
		}
	}
	if len(probes) > 0 {
		result["checks"] = probes
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}
