package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pagelens/relay/internal/credstore"
)

type credentialRequest struct {
	Operation   string                 `json:"operation"`
	ProviderID  string                 `json:"providerId"`
	Credentials *credstore.Credentials `json:"credentials,omitempty"`
	ProviderIDs []string               `json:"providerIds,omitempty"`
}

// CredentialsHandler dispatches credential operations. The get operation
// returns stored credentials verbatim: the relay binds loopback and the
// extension settings page is the only caller. Keys still never reach the
// log; only masked forms do.
func CredentialsHandler(creds *credstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		if req.Operation != "checkMultiple" && req.ProviderID == "" {
			writeError(w, http.StatusBadRequest, "providerId is required")
			return
		}

		switch req.Operation {
		case "get":
			c, err := creds.Get(r.Context(), req.ProviderID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to read credentials: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success":     true,
				"credentials": c,
			})

		case "store":
			if err := creds.Put(req.ProviderID, req.Credentials); err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

		case "remove":
			if err := creds.Delete(req.ProviderID); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to remove credentials: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

		case "validate":
			valid, err := creds.Validate(r.Context(), req.ProviderID, req.Credentials)
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			log.Printf("🔑 Validation for %s: valid=%v", req.ProviderID, valid)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"valid":   valid,
			})

		case "checkMultiple":
			if len(req.ProviderIDs) == 0 {
				writeError(w, http.StatusBadRequest, "providerIds is required")
				return
			}
			configured, err := creds.ExistsMultiple(req.ProviderIDs)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to check credentials: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success":    true,
				"configured": configured,
			})

		default:
			writeError(w, http.StatusBadRequest, "Unknown operation: "+req.Operation)
		}
	}
}
