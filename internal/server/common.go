package server

import (
	"encoding/json"
	"net/http"

	"github.com/pagelens/relay/internal/apierror"
)

// writeJSON encodes v as the response body. Every handler replies with a
// {success, ...} envelope; errors never escape as bare text.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError replies with the failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// statusFor maps a classified error to an HTTP status. Setup problems are
// the client's to fix; everything else is on our side of the wire.
func statusFor(err error) int {
	if apierror.IsKind(err, apierror.KindSetup) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// SetSSEHeaders sets standard headers for Server-Sent Events streaming.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}
