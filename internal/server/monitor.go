package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pagelens/relay/internal/monitor"
)

// TurnLogsHandler returns recent turn logs. Query params: limit (default
// 100) and since (minutes, 0 = no window).
func TurnLogsHandler(m *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
				limit = l
			}
		}
		since := 0
		if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
			if s, err := strconv.Atoi(sinceStr); err == nil && s > 0 {
				since = s
			}
		}

		logs := m.Recent(limit, since)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"logs":    logs,
			"count":   len(logs),
		})
	}
}

// TurnStatsHandler returns aggregated turn statistics.
func TurnStatsHandler(m *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"stats":   m.Stats(),
		})
	}
}

// ClearTurnLogsHandler wipes the turn log.
func ClearTurnLogsHandler(m *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Clear(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to clear logs: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// MonitorStatusHandler reports whether turn logging is currently on.
func MonitorStatusHandler(m *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"enabled": m.IsEnabled(),
		})
	}
}

// ToggleMonitorHandler enables or disables turn logging at runtime.
func ToggleMonitorHandler(m *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		m.SetEnabled(req.Enabled)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"enabled": m.IsEnabled(),
		})
	}
}
