package provider

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pagelens/relay/internal/apierror"
	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/params"
)

// openAICompat serves openai, grok and mistral. The three share the
// chat/completions wire format bit for bit: Bearer auth, a flat messages
// array, `data: ` framed SSE with the `[DONE]` sentinel.
type openAICompat struct {
	api catalog.ProviderAPI
}

func newOpenAICompat(api catalog.ProviderAPI) *openAICompat {
	return &openAICompat{api: api}
}

func (a *openAICompat) Provider() string {
	return a.api.ID
}

// chatMessage is one wire message for the OpenAI-compatible providers.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *openAICompat) BuildRequest(prompt string, p *params.Resolved, creds *credstore.Credentials) (*Request, error) {
	messages := openAIMessages(p.History, p.SystemPrompt, prompt)
	return buildOpenAIStyleRequest(a.api.Endpoint, messages, p, creds, true)
}

func (a *openAICompat) BuildValidationRequest(creds *credstore.Credentials) (*Request, error) {
	return buildOpenAIValidation(a.api, creds)
}

func (a *openAICompat) ParseLine(line string) Event {
	return parseOpenAILine(line)
}

func (a *openAICompat) ResetStreamState() {}

// openAIMessages assembles [system?] ++ history ++ current user turn.
func openAIMessages(history []params.Message, systemPrompt, prompt string) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	return append(messages, chatMessage{Role: "user", Content: prompt})
}

// buildOpenAIStyleRequest serializes the shared chat/completions body.
// The token-cap field name is model-dependent (max_tokens vs
// max_completion_tokens); reasoning models additionally reject the
// sampling knobs, so those never reach the wire for them.
func buildOpenAIStyleRequest(endpoint string, messages []chatMessage, p *params.Resolved, creds *credstore.Credentials, stream bool) (*Request, error) {
	if creds == nil || creds.APIKey == "" {
		return nil, apierror.New(apierror.KindSetup, "missing API key")
	}

	body := map[string]interface{}{
		"model":    p.Model,
		"stream":   stream,
		"messages": messages,
	}

	tokenParam := p.TokenParameter
	if p.ParameterStyle == catalog.StyleReasoning {
		tokenParam = catalog.TokenParamMaxCompletionTokens
	}
	if tokenParam == "" {
		tokenParam = catalog.TokenParamMaxTokens
	}
	body[tokenParam] = p.MaxTokens

	if p.ParameterStyle != catalog.StyleReasoning {
		if p.Temperature != nil {
			body["temperature"] = *p.Temperature
		}
		if p.TopP != nil {
			body["top_p"] = *p.TopP
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindSetup, "failed to encode request body", err)
	}

	return &Request{
		URL:    endpoint,
		Method: http.MethodPost,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + creds.APIKey,
		},
		Body: payload,
	}, nil
}

// buildOpenAIValidation probes with the provider's default model, one tiny
// user message and a one-token cap.
func buildOpenAIValidation(api catalog.ProviderAPI, creds *credstore.Credentials) (*Request, error) {
	probe := &params.Resolved{
		Model:          api.DefaultModel,
		MaxTokens:      1,
		TokenParameter: catalog.TokenParamMaxTokens,
		ParameterStyle: catalog.StyleStandard,
	}
	for _, m := range api.Models {
		if m.ID == api.DefaultModel {
			probe.TokenParameter = m.TokenParameter
			probe.ParameterStyle = m.ParameterStyle
			break
		}
	}
	messages := []chatMessage{{Role: "user", Content: "Hi"}}
	return buildOpenAIStyleRequest(api.Endpoint, messages, probe, creds, false)
}

// openAIChunk is the slice of a chat/completions SSE payload the relay
// cares about.
type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

const doneSentinel = "data: [DONE]"

// parseOpenAILine classifies one SSE line of the chat/completions stream.
// Finish-reason markers and empty deltas are recognized but useless.
func parseOpenAILine(line string) Event {
	if line == doneSentinel {
		return doneEvent()
	}
	if !strings.HasPrefix(line, "data: ") {
		return ignoreEvent()
	}

	var chunk openAIChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
		return errorEvent("Error parsing stream data: " + err.Error())
	}
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
		return contentEvent(chunk.Choices[0].Delta.Content)
	}
	return ignoreEvent()
}
