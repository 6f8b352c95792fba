package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type Check func(ctx context.Context) error

// Health answers 200 when every check passes and 503 otherwise.
func Health(logger *slog.Logger, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := "UP"
		details := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = "DOWN"
				details[name] = err.Error()
				logger.Warn("health check failed", "check", name, "error", err)
				continue
			}
			details[name] = "UP"
		}

		code := http.StatusOK
		if status != "UP" {
			code = http.StatusServiceUnavailable
		}
		WriteJSON(w, logger, code, map[string]any{"status": status, "details": details})
	}
}

// Info renders static build information.
func Info(logger *slog.Logger, name, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, logger, http.StatusOK, map[string]string{"name": name, "version": version})
	}
}
