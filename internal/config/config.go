// Package config loads the relay service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level service configuration. Provider endpoints and
// model descriptors live in the catalog, not here; this covers only the
// process-level knobs.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Catalog CatalogConfig `koanf:"catalog"`
	Monitor MonitorConfig `koanf:"monitor"`
}

// ServerConfig holds HTTP listener settings. The relay binds loopback by
// default; it serves a single local browser extension, not the network.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// StorageConfig locates the sqlite database file.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// CatalogConfig points at optional YAML overrides for the compiled-in
// provider catalog.
type CatalogConfig struct {
	API     string `koanf:"api"`
	Display string `koanf:"display"`
}

// MonitorConfig controls per-turn request logging.
type MonitorConfig struct {
	Enabled bool `koanf:"enabled"`
	Limit   int  `koanf:"limit"`
}

const (
	defaultAddr         = "127.0.0.1:8793"
	defaultStoragePath  = "relay.db"
	defaultMonitorLimit = 200
)

// Load reads configuration from an optional YAML file, layers RELAY_*
// environment variable overrides on top, and fills in defaults.
// An empty path skips the file layer entirely.
func Load(path string) (*Config, error) {
	// Pick up a .env file if one is present.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// RELAY_SERVER_ADDR -> server.addr
	if err := k.Load(env.Provider("RELAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "RELAY_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath
	}
	if cfg.Monitor.Limit <= 0 {
		cfg.Monitor.Limit = defaultMonitorLimit
	}
	// Monitoring is on unless explicitly switched off.
	if !k.Exists("monitor.enabled") {
		cfg.Monitor.Enabled = true
	}

	return &cfg, nil
}
