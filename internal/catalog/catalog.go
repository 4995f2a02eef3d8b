// Package catalog holds the static provider configuration: endpoints and
// model descriptors (the API config) plus presentation metadata for the
// extension UI (the display config). Both ship with compiled-in defaults
// and can be overridden per provider from YAML files.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pagelens/relay/internal/apierror"
)

const (
	// Token parameter field names as the providers spell them.
	TokenParamMaxTokens           = "max_tokens"
	TokenParamMaxCompletionTokens = "max_completion_tokens"
	TokenParamMaxOutputTokens     = "maxOutputTokens"

	// Parameter styles. Reasoning models take max_completion_tokens and
	// reject temperature/top_p.
	StyleStandard  = "standard"
	StyleReasoning = "reasoning"
)

// knownProviders is the closed set of providers the relay can talk to.
// Config files can reshape their model tables but cannot invent an
// adapter, so unknown ids are dropped at load time.
var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
	"mistral":   true,
	"deepseek":  true,
	"grok":      true,
}

// ModelDescriptor describes one selectable model of a provider.
// The capability flags are tri-state: nil means the provider default
// applies (temperature and system prompt default to supported, topP to
// unsupported).
type ModelDescriptor struct {
	ID                   string `yaml:"id" json:"id"`
	DisplayName          string `yaml:"display_name" json:"displayName"`
	MaxTokens            int    `yaml:"max_tokens" json:"maxTokens"`
	ContextWindow        int    `yaml:"context_window" json:"contextWindow"`
	TokenParameter       string `yaml:"token_parameter" json:"tokenParameter"`
	ParameterStyle       string `yaml:"parameter_style" json:"parameterStyle"`
	SupportsTemperature  *bool  `yaml:"supports_temperature" json:"supportsTemperature,omitempty"`
	SupportsTopP         *bool  `yaml:"supports_top_p" json:"supportsTopP,omitempty"`
	SupportsSystemPrompt *bool  `yaml:"supports_system_prompt" json:"supportsSystemPrompt,omitempty"`
}

// TemperatureSupported is true unless the descriptor says false.
func (d ModelDescriptor) TemperatureSupported() bool {
	return d.SupportsTemperature == nil || *d.SupportsTemperature
}

// TopPSupported is true only when the descriptor says true.
func (d ModelDescriptor) TopPSupported() bool {
	return d.SupportsTopP != nil && *d.SupportsTopP
}

// SystemPromptSupported is true unless the descriptor says false.
func (d ModelDescriptor) SystemPromptSupported() bool {
	return d.SupportsSystemPrompt == nil || *d.SupportsSystemPrompt
}

// ProviderAPI is the wire-level configuration for one provider.
type ProviderAPI struct {
	ID           string            `yaml:"id" json:"id"`
	Endpoint     string            `yaml:"endpoint" json:"endpoint"`
	DefaultModel string            `yaml:"default_model" json:"defaultModel"`
	Models       []ModelDescriptor `yaml:"models" json:"models"`
}

// ProviderDisplay is presentation metadata consumed by the extension UI.
// The gateway itself only ever reads ProviderAPI.
type ProviderDisplay struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"displayName"`
	Icon        string `yaml:"icon" json:"icon"`
	ConsoleURL  string `yaml:"console_url" json:"consoleUrl"`
	Order       int    `yaml:"order" json:"order"`
}

type apiFileConfig struct {
	Providers []ProviderAPI `yaml:"providers"`
}

type displayFileConfig struct {
	Providers []ProviderDisplay `yaml:"providers"`
}

var (
	stateMu     sync.RWMutex
	initialized bool
	apiByID     map[string]ProviderAPI
	displayByID map[string]ProviderDisplay
	providerIDs []string
)

// Init loads the catalog, starting from compiled-in defaults and merging
// per-provider overrides from the given YAML files. Empty paths fall back
// to RELAY_CATALOG_API / RELAY_CATALOG_DISPLAY and then a list
// of candidate locations. A missing file is not an error.
func Init(apiPath, displayPath string) error {
	api, display, err := loadAll(apiPath, displayPath)

	stateMu.Lock()
	defer stateMu.Unlock()

	apiByID = api
	displayByID = display
	providerIDs = providerIDs[:0]
	for id := range api {
		providerIDs = append(providerIDs, id)
	}
	sort.Slice(providerIDs, func(i, j int) bool {
		return displayByID[providerIDs[i]].Order < displayByID[providerIDs[j]].Order
	})
	initialized = true
	return err
}

func ensureInitialized() {
	stateMu.RLock()
	ok := initialized
	stateMu.RUnlock()
	if ok {
		return
	}
	_ = Init("", "")
}

// ResetForTest resets in-memory state so tests can force reload.
func ResetForTest() {
	stateMu.Lock()
	defer stateMu.Unlock()
	initialized = false
	apiByID = nil
	displayByID = nil
	providerIDs = nil
}

// ProviderIDs returns the known provider ids in display order.
func ProviderIDs() []string {
	ensureInitialized()

	stateMu.RLock()
	defer stateMu.RUnlock()
	return append([]string(nil), providerIDs...)
}

// Providers returns display metadata for all providers in display order.
func Providers() []ProviderDisplay {
	ensureInitialized()

	stateMu.RLock()
	defer stateMu.RUnlock()

	result := make([]ProviderDisplay, 0, len(providerIDs))
	for _, id := range providerIDs {
		if d, ok := displayByID[id]; ok {
			result = append(result, d)
		}
	}
	return result
}

// GetProviderAPI returns the wire configuration for a provider.
// Unknown providers are a setup failure.
func GetProviderAPI(id string) (ProviderAPI, error) {
	ensureInitialized()

	stateMu.RLock()
	defer stateMu.RUnlock()

	entry, ok := apiByID[normalizeID(id)]
	if !ok {
		return ProviderAPI{}, apierror.Newf(apierror.KindSetup, "unknown provider: %s", id)
	}
	entry.Models = append([]ModelDescriptor(nil), entry.Models...)
	return entry, nil
}

// Models returns the model descriptors for a provider.
func Models(providerID string) ([]ModelDescriptor, error) {
	api, err := GetProviderAPI(providerID)
	if err != nil {
		return nil, err
	}
	return api.Models, nil
}

// GetModelDescriptor returns the descriptor for (providerId, modelId).
// A missing model is a setup failure.
func GetModelDescriptor(providerID, modelID string) (ModelDescriptor, error) {
	api, err := GetProviderAPI(providerID)
	if err != nil {
		return ModelDescriptor{}, err
	}
	for _, m := range api.Models {
		if m.ID == modelID {
			return m, nil
		}
	}
	return ModelDescriptor{}, apierror.Newf(apierror.KindSetup,
		"no model descriptor for %s/%s", normalizeID(providerID), modelID)
}

// DefaultModel returns the provider's default model id.
func DefaultModel(providerID string) (string, error) {
	api, err := GetProviderAPI(providerID)
	if err != nil {
		return "", err
	}
	return api.DefaultModel, nil
}

func loadAll(apiPath, displayPath string) (map[string]ProviderAPI, map[string]ProviderDisplay, error) {
	api := make(map[string]ProviderAPI)
	for _, p := range defaultAPIConfig() {
		api[p.ID] = p
	}
	display := make(map[string]ProviderDisplay)
	for _, d := range defaultDisplayConfig() {
		display[d.ID] = d
	}

	var loadErr error
	apiOverrides, err := loadAPIFile(apiPath)
	if err != nil {
		loadErr = err
	}
	for _, p := range apiOverrides {
		normalized, ok := normalizeAPI(p)
		if !ok {
			continue
		}
		api[normalized.ID] = normalized
	}

	displayOverrides, err := loadDisplayFile(displayPath)
	if err != nil && loadErr == nil {
		loadErr = err
	}
	for _, d := range displayOverrides {
		id := normalizeID(d.ID)
		if !knownProviders[id] {
			continue
		}
		d.ID = id
		if existing, ok := display[id]; ok && d.Order == 0 {
			d.Order = existing.Order
		}
		display[id] = d
	}

	return api, display, loadErr
}

func loadAPIFile(path string) ([]ProviderAPI, error) {
	data, err := readConfigFile(path, "RELAY_CATALOG_API", "catalog.yaml")
	if err != nil || data == nil {
		return nil, err
	}
	var cfg apiFileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse catalog api config: %w", err)
	}
	return cfg.Providers, nil
}

func loadDisplayFile(path string) ([]ProviderDisplay, error) {
	data, err := readConfigFile(path, "RELAY_CATALOG_DISPLAY", "display.yaml")
	if err != nil || data == nil {
		return nil, err
	}
	var cfg displayFileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse catalog display config: %w", err)
	}
	return cfg.Providers, nil
}

// readConfigFile resolves and reads an override file. Returns nil data
// when no file is configured or present anywhere.
func readConfigFile(explicit, envName, baseName string) ([]byte, error) {
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(envName))
	}
	if explicit != "" {
		data, err := os.ReadFile(explicit)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %q: %w", explicit, err)
		}
		return data, nil
	}

	candidates := []string{
		filepath.Join("config", baseName),
		filepath.Join("/etc/relay", baseName),
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, ".config", "relay", baseName),
			filepath.Join(homeDir, ".relay", baseName),
		)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return os.ReadFile(path)
		}
	}
	return nil, nil
}

func normalizeAPI(p ProviderAPI) (ProviderAPI, bool) {
	p.ID = normalizeID(p.ID)
	if !knownProviders[p.ID] {
		return ProviderAPI{}, false
	}
	if strings.TrimSpace(p.Endpoint) == "" {
		return ProviderAPI{}, false
	}
	p.Endpoint = strings.TrimSpace(p.Endpoint)

	models := make([]ModelDescriptor, 0, len(p.Models))
	for _, m := range p.Models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			continue
		}
		if m.DisplayName == "" {
			m.DisplayName = m.ID
		}
		if m.TokenParameter == "" {
			m.TokenParameter = TokenParamMaxTokens
		}
		if m.ParameterStyle == "" {
			m.ParameterStyle = StyleStandard
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return ProviderAPI{}, false
	}
	p.Models = models

	if !hasModel(models, p.DefaultModel) {
		p.DefaultModel = models[0].ID
	}
	return p, true
}

func hasModel(models []ModelDescriptor, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func boolPtr(v bool) *bool {
	return &v
}
