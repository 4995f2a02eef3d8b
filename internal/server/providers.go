package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/params"
)

// ProvidersHandler lists provider display metadata for the extension UI.
func ProvidersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := catalog.Providers()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"providers": providers,
			"count":     len(providers),
		})
	}
}

// ModelsHandler returns the model descriptors for one provider.
func ModelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "providerId")
		models, err := catalog.Models(providerID)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"providerId": providerID,
			"models":     models,
		})
	}
}

// GetParamsHandler reads the stored parameter overrides for a provider.
// The optional "model" query selects the per-model layer as well.
func GetParamsHandler(resolver *params.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "providerId")
		modelID := r.URL.Query().Get("model")

		perModel, platform, err := resolver.GetOverrides(providerID, modelID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read overrides: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"providerId": providerID,
			"modelId":    modelID,
			"perModel":   perModel,
			"platform":   platform,
		})
	}
}

type putParamsRequest struct {
	ModelID   string           `json:"modelId"`
	Overrides params.Overrides `json:"overrides"`
}

// PutParamsHandler stores parameter overrides. An empty modelId targets
// the provider-level entry.
func PutParamsHandler(resolver *params.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "providerId")

		var req putParamsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if _, err := catalog.GetProviderAPI(providerID); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if err := resolver.SaveOverrides(providerID, req.ModelID, req.Overrides); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save overrides: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

type putModelRequest struct {
	ModelID string `json:"modelId"`
	Source  string `json:"source"`
	TabID   int64  `json:"tabId"`
}

// PutModelPreferenceHandler saves the user's model choice. Sidebar
// choices apply provider-wide; popup choices are scoped to the tab.
func PutModelPreferenceHandler(resolver *params.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "providerId")

		var req putModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if req.ModelID == "" {
			writeError(w, http.StatusBadRequest, "modelId is required")
			return
		}
		if req.Source != "sidebar" && req.TabID == 0 {
			writeError(w, http.StatusBadRequest, "tabId is required for popup preferences")
			return
		}
		if _, err := catalog.GetModelDescriptor(providerID, req.ModelID); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if err := resolver.SaveModelPreference(providerID, req.ModelID, req.Source, req.TabID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save model preference: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}
