package handlers

import (
	"net/http"
	"time"
)

// NewHealthHandler reports liveness and the agent build.
func NewHealthHandler(version string, started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	}
}
