package httpd

import (
	"net/http"
	"time"
)

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			requestLogger(r, h.logger).Warn().Err(err).Msg("Database health check failed")
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "evaluation-service",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) GetEvaluationStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "Evaluation pool is not running")
		return
	}

	writeSuccess(w, h.stats.Stats())
}
