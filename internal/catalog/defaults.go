package catalog

// Compiled-in catalog. Override files replace entries per provider; the
// provider set itself is fixed by the adapters the relay ships with.

func defaultAPIConfig() []ProviderAPI {
	return []ProviderAPI{
		{
			ID:           "openai",
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			DefaultModel: "gpt-4o-mini",
			Models: []ModelDescriptor{
				{
					ID:             "gpt-4o",
					DisplayName:    "GPT-4o",
					MaxTokens:      4096,
					ContextWindow:  128000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "gpt-4o-mini",
					DisplayName:    "GPT-4o mini",
					MaxTokens:      4096,
					ContextWindow:  128000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:                   "o3-mini",
					DisplayName:          "o3-mini",
					MaxTokens:            8192,
					ContextWindow:        200000,
					TokenParameter:       TokenParamMaxCompletionTokens,
					ParameterStyle:       StyleReasoning,
					SupportsTemperature:  boolPtr(false),
					SupportsTopP:         boolPtr(false),
					SupportsSystemPrompt: boolPtr(false),
				},
				{
					ID:                   "o1-mini",
					DisplayName:          "o1-mini",
					MaxTokens:            8192,
					ContextWindow:        128000,
					TokenParameter:       TokenParamMaxCompletionTokens,
					ParameterStyle:       StyleReasoning,
					SupportsTemperature:  boolPtr(false),
					SupportsTopP:         boolPtr(false),
					SupportsSystemPrompt: boolPtr(false),
				},
			},
		},
		{
			ID:           "anthropic",
			Endpoint:     "https://api.anthropic.com/v1/messages",
			DefaultModel: "claude-3-5-sonnet-latest",
			Models: []ModelDescriptor{
				{
					ID:             "claude-3-5-sonnet-latest",
					DisplayName:    "Claude 3.5 Sonnet",
					MaxTokens:      8192,
					ContextWindow:  200000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "claude-3-5-haiku-latest",
					DisplayName:    "Claude 3.5 Haiku",
					MaxTokens:      8192,
					ContextWindow:  200000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "claude-3-opus-latest",
					DisplayName:    "Claude 3 Opus",
					MaxTokens:      4096,
					ContextWindow:  200000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
			},
		},
		{
			ID:           "gemini",
			Endpoint:     "https://generativelanguage.googleapis.com",
			DefaultModel: "gemini-1.5-flash",
			Models: []ModelDescriptor{
				{
					ID:             "gemini-1.5-pro",
					DisplayName:    "Gemini 1.5 Pro",
					MaxTokens:      8192,
					ContextWindow:  2097152,
					TokenParameter: TokenParamMaxOutputTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "gemini-1.5-flash",
					DisplayName:    "Gemini 1.5 Flash",
					MaxTokens:      8192,
					ContextWindow:  1048576,
					TokenParameter: TokenParamMaxOutputTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "gemini-2.0-flash",
					DisplayName:    "Gemini 2.0 Flash",
					MaxTokens:      8192,
					ContextWindow:  1048576,
					TokenParameter: TokenParamMaxOutputTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "gemini-2.0-pro-exp-02-05",
					DisplayName:    "Gemini 2.0 Pro Experimental",
					MaxTokens:      8192,
					ContextWindow:  2097152,
					TokenParameter: TokenParamMaxOutputTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:                   "gemma-3-27b-it",
					DisplayName:          "Gemma 3 27B",
					MaxTokens:            8192,
					ContextWindow:        131072,
					TokenParameter:       TokenParamMaxOutputTokens,
					ParameterStyle:       StyleStandard,
					SupportsSystemPrompt: boolPtr(false),
				},
			},
		},
		{
			ID:           "mistral",
			Endpoint:     "https://api.mistral.ai/v1/chat/completions",
			DefaultModel: "mistral-small-latest",
			Models: []ModelDescriptor{
				{
					ID:             "mistral-large-latest",
					DisplayName:    "Mistral Large",
					MaxTokens:      8192,
					ContextWindow:  128000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "mistral-small-latest",
					DisplayName:    "Mistral Small",
					MaxTokens:      8192,
					ContextWindow:  32000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "codestral-latest",
					DisplayName:    "Codestral",
					MaxTokens:      8192,
					ContextWindow:  256000,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
			},
		},
		{
			ID:           "deepseek",
			Endpoint:     "https://api.deepseek.com/v1/chat/completions",
			DefaultModel: "deepseek-chat",
			Models: []ModelDescriptor{
				{
					ID:             "deepseek-chat",
					DisplayName:    "DeepSeek-V3",
					MaxTokens:      8192,
					ContextWindow:  65536,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					// deepseek-reasoner takes max_tokens but silently
					// ignores sampling parameters, so gate them off.
					ID:                  "deepseek-reasoner",
					DisplayName:         "DeepSeek-R1",
					MaxTokens:           8192,
					ContextWindow:       65536,
					TokenParameter:      TokenParamMaxTokens,
					ParameterStyle:      StyleStandard,
					SupportsTemperature: boolPtr(false),
					SupportsTopP:        boolPtr(false),
				},
			},
		},
		{
			ID:           "grok",
			Endpoint:     "https://api.x.ai/v1/chat/completions",
			DefaultModel: "grok-2-latest",
			Models: []ModelDescriptor{
				{
					ID:             "grok-2-latest",
					DisplayName:    "Grok 2",
					MaxTokens:      8192,
					ContextWindow:  131072,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "grok-2-1212",
					DisplayName:    "Grok 2 (1212)",
					MaxTokens:      8192,
					ContextWindow:  131072,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
				{
					ID:             "grok-beta",
					DisplayName:    "Grok Beta",
					MaxTokens:      8192,
					ContextWindow:  131072,
					TokenParameter: TokenParamMaxTokens,
					ParameterStyle: StyleStandard,
					SupportsTopP:   boolPtr(true),
				},
			},
		},
	}
}

func defaultDisplayConfig() []ProviderDisplay {
	return []ProviderDisplay{
		{ID: "openai", DisplayName: "OpenAI", Icon: "openai", ConsoleURL: "https://platform.openai.com/api-keys", Order: 1},
		{ID: "anthropic", DisplayName: "Anthropic", Icon: "anthropic", ConsoleURL: "https://console.anthropic.com/settings/keys", Order: 2},
		{ID: "gemini", DisplayName: "Google Gemini", Icon: "gemini", ConsoleURL: "https://aistudio.google.com/app/apikey", Order: 3},
		{ID: "mistral", DisplayName: "Mistral", Icon: "mistral", ConsoleURL: "https://console.mistral.ai/api-keys", Order: 4},
		{ID: "deepseek", DisplayName: "DeepSeek", Icon: "deepseek", ConsoleURL: "https://platform.deepseek.com/api_keys", Order: 5},
		{ID: "grok", DisplayName: "xAI Grok", Icon: "grok", ConsoleURL: "https://console.x.ai", Order: 6},
	}
}
