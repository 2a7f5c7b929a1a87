package http

import (
	"context"
	"net/http"
	"time"

	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

// HealthCheck checks one dependency. A nil error means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func HealthHandler(log *logger.Logger, checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, "")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				log.WithFields(ctx, logger.Fields{
					"dependency": c.Name,
					"action":     "health_check_failed",
				}).Warnf("health check failed: %v", err)
				body[c.Name] = "unavailable"
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[c.Name] = "ok"
		}

		log.Debugf("health check request")
		WriteJSON(w, status, body)
	}
}
