// Package params resolves the effective request parameters for a turn:
// catalog descriptor defaults layered under user overrides, with
// capability gating so unsupported knobs never reach the wire.
package params

import (
	"log"

	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/store"
)

// Message is one prior exchange in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Resolved is the parameter set handed to a provider adapter. Pointer
// fields are omitted from the wire request when nil.
type Resolved struct {
	Model                     string
	MaxTokens                 int
	ContextWindow             int
	TokenParameter            string
	ParameterStyle            string
	Temperature               *float64
	TopP                      *float64
	SystemPrompt              string
	ModelSupportsSystemPrompt bool
	History                   []Message
}

// Overrides are the user-tunable settings stored per model
// (params:<provider>:<model>) or per provider (params:<provider>).
// HasSystemPrompt is only meaningful at the provider level.
type Overrides struct {
	MaxTokens          *int     `json:"maxTokens,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	TopP               *float64 `json:"topP,omitempty"`
	SystemPrompt       *string  `json:"systemPrompt,omitempty"`
	IncludeTemperature *bool    `json:"includeTemperature,omitempty"`
	IncludeTopP        *bool    `json:"includeTopP,omitempty"`
	HasSystemPrompt    *bool    `json:"hasSystemPrompt,omitempty"`
}

// Resolver layers user settings over catalog descriptors.
type Resolver struct {
	store *store.Store
}

// NewResolver creates a resolver backed by the settings store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve builds the effective parameters for (providerId, modelId).
// Precedence: per-model user > platform user > descriptor.
func (r *Resolver) Resolve(providerID, modelID string, history []Message) (*Resolved, error) {
	descriptor, err := catalog.GetModelDescriptor(providerID, modelID)
	if err != nil {
		return nil, err
	}

	platform, err := r.loadOverrides(store.ParamsKey(providerID, ""))
	if err != nil {
		return nil, err
	}
	perModel, err := r.loadOverrides(store.ParamsKey(providerID, modelID))
	if err != nil {
		return nil, err
	}
	merged := mergeOverrides(platform, perModel)

	resolved := &Resolved{
		Model:          descriptor.ID,
		MaxTokens:      descriptor.MaxTokens,
		ContextWindow:  descriptor.ContextWindow,
		TokenParameter: descriptor.TokenParameter,
		ParameterStyle: descriptor.ParameterStyle,
		History:        history,
	}
	if merged.MaxTokens != nil && *merged.MaxTokens > 0 {
		resolved.MaxTokens = *merged.MaxTokens
	}
	if resolved.MaxTokens <= 0 {
		resolved.MaxTokens = 4096
	}

	// Temperature rides along only when the descriptor allows it, the
	// include flag (default on) is set, and the user actually chose one.
	if descriptor.TemperatureSupported() && boolOr(merged.IncludeTemperature, true) && merged.Temperature != nil {
		resolved.Temperature = merged.Temperature
	}

	// TopP requires explicit descriptor support and an explicit opt-in.
	if descriptor.TopPSupported() && boolOr(merged.IncludeTopP, false) && merged.TopP != nil {
		resolved.TopP = merged.TopP
	}

	// Effective system-prompt support combines the platform flag with the
	// descriptor capability.
	effectiveSystem := boolOr(platform.HasSystemPrompt, true) && descriptor.SystemPromptSupported()
	resolved.ModelSupportsSystemPrompt = effectiveSystem

	if merged.SystemPrompt != nil && *merged.SystemPrompt != "" {
		if effectiveSystem {
			resolved.SystemPrompt = *merged.SystemPrompt
		} else {
			log.Printf("⚠️ Dropping system prompt for %s/%s: model does not support it", providerID, modelID)
		}
	}

	return resolved, nil
}

// ResolveModel returns the preferred model for (tabId, providerId),
// falling back to the sidebar-wide preference when the turn comes from
// the sidebar. Empty means no preference; the caller falls back to the
// provider's default model.
func (r *Resolver) ResolveModel(providerID string, tabID int64, source string) (string, error) {
	if tabID != 0 {
		model, ok, err := r.store.GetSetting(store.TabModelKey(tabID, providerID))
		if err != nil {
			return "", err
		}
		if ok && model != "" {
			return model, nil
		}
	}
	if source == "sidebar" {
		model, ok, err := r.store.GetSetting(store.SidebarModelKey(providerID))
		if err != nil {
			return "", err
		}
		if ok && model != "" {
			return model, nil
		}
	}
	return "", nil
}

// SaveModelPreference records the user's model choice. Sidebar turns
// share one preference per provider; popup turns are scoped to the tab.
func (r *Resolver) SaveModelPreference(providerID, modelID, source string, tabID int64) error {
	if source == "sidebar" {
		return r.store.PutSetting(store.SidebarModelKey(providerID), modelID)
	}
	return r.store.PutSetting(store.TabModelKey(tabID, providerID), modelID)
}

// SaveOverrides persists user parameter overrides. Empty modelID targets
// the provider-level entry.
func (r *Resolver) SaveOverrides(providerID, modelID string, o Overrides) error {
	return r.store.PutJSON(store.ParamsKey(providerID, modelID), o)
}

// GetOverrides returns the stored per-model and provider-level overrides.
func (r *Resolver) GetOverrides(providerID, modelID string) (perModel, platform Overrides, err error) {
	platform, err = r.loadOverrides(store.ParamsKey(providerID, ""))
	if err != nil {
		return
	}
	if modelID != "" {
		perModel, err = r.loadOverrides(store.ParamsKey(providerID, modelID))
	}
	return
}

func (r *Resolver) loadOverrides(key string) (Overrides, error) {
	var o Overrides
	if _, err := r.store.GetJSON(key, &o); err != nil {
		return Overrides{}, err
	}
	return o, nil
}

// mergeOverrides layers the per-model entry over the platform entry.
func mergeOverrides(platform, perModel Overrides) Overrides {
	merged := platform
	if perModel.MaxTokens != nil {
		merged.MaxTokens = perModel.MaxTokens
	}
	if perModel.Temperature != nil {
		merged.Temperature = perModel.Temperature
	}
	if perModel.TopP != nil {
		merged.TopP = perModel.TopP
	}
	if perModel.SystemPrompt != nil {
		merged.SystemPrompt = perModel.SystemPrompt
	}
	if perModel.IncludeTemperature != nil {
		merged.IncludeTemperature = perModel.IncludeTemperature
	}
	if perModel.IncludeTopP != nil {
		merged.IncludeTopP = perModel.IncludeTopP
	}
	if perModel.HasSystemPrompt != nil {
		merged.HasSystemPrompt = perModel.HasSystemPrompt
	}
	return merged
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
