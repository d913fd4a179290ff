package httpserver

import (
	"net/http"

	"chatrelay/internal/presence"
)

// handleDebugOnline returns the live user id -> connection ids mapping.
// Operational surface only; not part of the messaging protocol.
func handleDebugOnline(registry *presence.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, registry.Snapshot())
	}
}
