package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pagelens/relay/internal/apierror"
	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/params"
)

const anthropicVersion = "2023-06-01"

// anthropic speaks the Messages API: content-block messages, the system
// prompt as a top-level field, and named SSE events alongside data lines.
type anthropic struct {
	api catalog.ProviderAPI
}

func newAnthropic(api catalog.ProviderAPI) *anthropic {
	return &anthropic{api: api}
}

func (a *anthropic) Provider() string {
	return a.api.ID
}

type anthropicTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string               `json:"role"`
	Content []anthropicTextBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	System      string             `json:"system,omitempty"`
}

func (a *anthropic) BuildRequest(prompt string, p *params.Resolved, creds *credstore.Credentials) (*Request, error) {
	if creds == nil || creds.APIKey == "" {
		return nil, apierror.New(apierror.KindSetup, "missing API key")
	}

	messages := make([]anthropicMessage, 0, len(p.History)+1)
	for _, m := range p.History {
		messages = append(messages, anthropicMessage{
			Role:    m.Role,
			Content: []anthropicTextBlock{{Type: "text", Text: m.Content}},
		})
	}
	messages = append(messages, anthropicMessage{
		Role:    "user",
		Content: []anthropicTextBlock{{Type: "text", Text: prompt}},
	})

	body := anthropicRequest{
		Model:       p.Model,
		MaxTokens:   p.MaxTokens,
		Stream:      true,
		Messages:    messages,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		System:      p.SystemPrompt,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindSetup, "failed to encode request body", err)
	}

	return &Request{
		URL:     a.api.Endpoint,
		Method:  http.MethodPost,
		Headers: anthropicHeaders(creds.APIKey),
		Body:    payload,
	}, nil
}

func (a *anthropic) BuildValidationRequest(creds *credstore.Credentials) (*Request, error) {
	if creds == nil || creds.APIKey == "" {
		return nil, apierror.New(apierror.KindSetup, "missing API key")
	}
	body := anthropicRequest{
		Model:     a.api.DefaultModel,
		MaxTokens: 1,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicTextBlock{{Type: "text", Text: "Hi"}},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindSetup, "failed to encode request body", err)
	}
	return &Request{
		URL:     a.api.Endpoint,
		Method:  http.MethodPost,
		Headers: anthropicHeaders(creds.APIKey),
		Body:    payload,
	}, nil
}

// anthropicHeaders carries the direct-browser-access opt-in: the upstream
// rejects requests from extension origins without it.
func anthropicHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
		"anthropic-dangerous-direct-browser-access": "true",
	}
}

// anthropicStreamEvent is the slice of a data-line payload the relay
// reads. The type field discriminates; irrelevant fields stay zero.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseLine handles the two Anthropic line kinds. Named events only
// matter for message_stop; the payloads on data lines carry their own
// type discriminator.
func (a *anthropic) ParseLine(line string) Event {
	if strings.HasPrefix(line, "event: ") {
		if strings.TrimPrefix(line, "event: ") == "message_stop" {
			return doneEvent()
		}
		return ignoreEvent()
	}
	if !strings.HasPrefix(line, "data: ") {
		return ignoreEvent()
	}

	var event anthropicStreamEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
		return errorEvent("Error parsing stream data: " + err.Error())
	}

	switch event.Type {
	case "content_block_delta":
		if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			return contentEvent(event.Delta.Text)
		}
		return ignoreEvent()
	case "error":
		return errorEvent(fmt.Sprintf("Stream error: %s - %s", event.Error.Type, event.Error.Message))
	default:
		// message_start, content_block_start/stop, message_delta, ping.
		return ignoreEvent()
	}
}

func (a *anthropic) ResetStreamState() {}
