package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

// health is a liveness probe.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the database is reachable.
func readiness(db *sql.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	}
}
