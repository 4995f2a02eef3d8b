// Package server is the HTTP surface of the relay. It exposes the turn
// lifecycle, the provider catalog, credential operations, settings, and
// the diagnostic endpoints to the browser extension over loopback.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/logging"
	"github.com/pagelens/relay/internal/monitor"
	"github.com/pagelens/relay/internal/params"
	"github.com/pagelens/relay/internal/relay"
	"github.com/pagelens/relay/internal/store"
	"github.com/pagelens/relay/internal/version"
)

// Deps carries the wired components the HTTP surface dispatches to.
type Deps struct {
	Store       *store.Store
	Credentials *credstore.Store
	Resolver    *params.Resolver
	Coordinator *relay.Coordinator
	Monitor     *monitor.Monitor
	Broadcaster *relay.Broadcaster
}

// NewRouter builds the chi router with all relay routes mounted.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.RequestID)

	r.Route("/v1", func(r chi.Router) {
		// Turn lifecycle
		r.Post("/turns", ProcessTurnHandler(d.Coordinator))
		r.Get("/turns/last", LastTurnHandler(d.Store))
		r.Get("/turns/{streamId}", GetTurnHandler(d.Store))
		r.Post("/turns/{streamId}/cancel", CancelTurnHandler(d.Coordinator))

		// Catalog and settings
		r.Get("/providers", ProvidersHandler())
		r.Get("/providers/{providerId}/models", ModelsHandler())
		r.Get("/providers/{providerId}/params", GetParamsHandler(d.Resolver))
		r.Put("/providers/{providerId}/params", PutParamsHandler(d.Resolver))
		r.Put("/providers/{providerId}/model", PutModelPreferenceHandler(d.Resolver))

		// Credentials
		r.Post("/credentials", CredentialsHandler(d.Credentials))

		// Eventing and diagnostics
		r.Get("/events", EventsHandler(d.Broadcaster))
		r.Get("/version", VersionHandler())

		r.Get("/monitor/requests", TurnLogsHandler(d.Monitor))
		r.Get("/monitor/stats", TurnStatsHandler(d.Monitor))
		r.Post("/monitor/clear", ClearTurnLogsHandler(d.Monitor))
		r.Get("/monitor/enabled", MonitorStatusHandler(d.Monitor))
		r.Post("/monitor/enabled", ToggleMonitorHandler(d.Monitor))

		r.Get("/discovery/scan", DiscoveryScanHandler())
		r.Post("/discovery/import", DiscoveryImportHandler(d.Credentials))
	})

	return r
}

// VersionHandler reports build information.
func VersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"version":   version.Version,
			"commit":    version.Commit,
			"buildTime": version.BuildTime,
		})
	}
}
