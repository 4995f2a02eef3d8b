package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/config"
	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/monitor"
	"github.com/pagelens/relay/internal/params"
	"github.com/pagelens/relay/internal/relay"
	"github.com/pagelens/relay/internal/server"
	"github.com/pagelens/relay/internal/store"
	"github.com/pagelens/relay/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to the relay config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := catalog.Init(cfg.Catalog.API, cfg.Catalog.Display); err != nil {
		log.Fatalf("Failed to load provider catalog: %v", err)
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	creds := credstore.New(st.DB())
	resolver := params.NewResolver(st)
	mon := monitor.New(st.DB(), cfg.Monitor.Limit, cfg.Monitor.Enabled)
	broadcaster := relay.NewBroadcaster()
	coordinator := relay.NewCoordinator(st, creds, resolver, mon, broadcaster)
	creds.SetValidator(coordinator)

	router := server.NewRouter(server.Deps{
		Store:       st,
		Credentials: creds,
		Resolver:    resolver,
		Coordinator: coordinator,
		Monitor:     mon,
		Broadcaster: broadcaster,
	})

	log.Printf("🚀 PageLens relay %s starting on http://%s", version.Version, cfg.Server.Addr)
	log.Printf("🔌 Turn API: http://%s/v1/turns", cfg.Server.Addr)
	log.Printf("🔌 Provider catalog: %d providers", len(catalog.ProviderIDs()))
	log.Printf("📊 Monitor enabled: %v", cfg.Monitor.Enabled)

	if err := http.ListenAndServe(cfg.Server.Addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
