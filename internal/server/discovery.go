package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/discovery"
)

// DiscoveryScanHandler scans for importable credentials and returns the
// findings with keys masked.
func DiscoveryScanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := discovery.ScanAll()

		masked := make([]discovery.Finding, len(result.Findings))
		for i, f := range result.Findings {
			masked[i] = f.Masked()
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"findings": masked,
			"errors":   result.Errors,
			"count":    len(masked),
		})
	}
}

type discoveryImportRequest struct {
	Providers []string `json:"providers"`
}

// DiscoveryImportHandler stores discovered credentials for the selected
// providers. The scan runs again server-side so the real keys never have
// to round-trip through the client; the first finding per provider wins
// (environment sources are scanned before files).
func DiscoveryImportHandler(creds *credstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req discoveryImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if len(req.Providers) == 0 {
			writeError(w, http.StatusBadRequest, "providers is required")
			return
		}

		selected := make(map[string]bool, len(req.Providers))
		for _, p := range req.Providers {
			selected[p] = true
		}

		result := discovery.ScanAll()
		imported := make([]string, 0, len(req.Providers))
		for _, f := range result.Findings {
			if !selected[f.Provider] {
				continue
			}
			if err := creds.Put(f.Provider, &credstore.Credentials{APIKey: f.APIKey}); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to store credentials: "+err.Error())
				return
			}
			log.Printf("🔑 Imported %s credentials from %s", f.Provider, f.Source)
			imported = append(imported, f.Provider)
			delete(selected, f.Provider)
		}

		if len(imported) == 0 {
			writeError(w, http.StatusNotFound, "No matching credentials found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"imported": imported,
			"count":    len(imported),
		})
	}
}
