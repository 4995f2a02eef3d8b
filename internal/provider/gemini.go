package provider

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/pagelens/relay/internal/apierror"
	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/params"
	"github.com/pagelens/relay/internal/util"
)

// gemini speaks the generativelanguage API. Auth rides in the URL query
// (or a Bearer header for managed OAuth credentials), the API version
// depends on the model id, and the system prompt travels as a top-level
// systemInstruction rather than a message.
type gemini struct {
	api catalog.ProviderAPI

	// Per-stream diagnostics, cleared by ResetStreamState. One adapter
	// instance serves one turn, so these never mix streams.
	lineCount int
	charCount int
}

func newGemini(api catalog.ProviderAPI) *gemini {
	return &gemini{api: api}
}

func (g *gemini) Provider() string {
	return g.api.ID
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
}

type geminiInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SystemInstruction *geminiInstruction     `json:"systemInstruction,omitempty"`
}

// streamURL builds the templated endpoint. Experimental models only
// exist on the v1beta surface; everything else uses v1. Key auth rides
// in the query string, OAuth credentials keep the query clean and send
// a Bearer header instead.
func (g *gemini) streamURL(model string, creds *credstore.Credentials, validation bool) string {
	version := "v1"
	if strings.Contains(model, "-exp-") {
		version = "v1beta"
	}
	method := ":streamGenerateContent"
	if validation {
		method = ":generateContent"
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s%s", strings.TrimRight(g.api.Endpoint, "/"), version, model, method)

	query := url.Values{}
	if !validation {
		query.Set("alt", "sse")
	}
	if !creds.UsesOAuth() {
		query.Set("key", creds.APIKey)
	}
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}

func (g *gemini) headers(creds *credstore.Credentials) map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if creds.UsesOAuth() {
		headers["Authorization"] = "Bearer " + creds.AccessToken
	}
	return headers
}

func (g *gemini) BuildRequest(prompt string, p *params.Resolved, creds *credstore.Credentials) (*Request, error) {
	if creds == nil || (creds.APIKey == "" && !creds.UsesOAuth()) {
		return nil, apierror.New(apierror.KindSetup, "missing API key")
	}

	contents := make([]geminiContent, 0, len(p.History)+1)
	for _, m := range p.History {
		role := m.Role
		switch role {
		case "assistant":
			role = "model"
		case "user":
		default:
			log.Printf("⚠️ Gemini: skipping history message with unsupported role %q", m.Role)
			continue
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: prompt}}})

	body := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: p.MaxTokens,
			Temperature:     p.Temperature,
			TopP:            p.TopP,
		},
	}
	if p.SystemPrompt != "" {
		if p.ModelSupportsSystemPrompt {
			body.SystemInstruction = &geminiInstruction{Parts: []geminiPart{{Text: p.SystemPrompt}}}
		} else {
			log.Printf("⚠️ Gemini: dropping system prompt, %s does not support systemInstruction", p.Model)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindSetup, "failed to encode request body", err)
	}

	return &Request{
		URL:     g.streamURL(p.Model, creds, false),
		Method:  http.MethodPost,
		Headers: g.headers(creds),
		Body:    payload,
	}, nil
}

func (g *gemini) BuildValidationRequest(creds *credstore.Credentials) (*Request, error) {
	if creds == nil || (creds.APIKey == "" && !creds.UsesOAuth()) {
		return nil, apierror.New(apierror.KindSetup, "missing API key")
	}
	body := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: "Hi"}}}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: 1},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindSetup, "failed to encode request body", err)
	}
	return &Request{
		URL:     g.streamURL(g.api.DefaultModel, creds, true),
		Method:  http.MethodPost,
		Headers: g.headers(creds),
		Body:    payload,
	}, nil
}

// geminiChunk is the slice of one SSE payload the relay reads.
type geminiChunk struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseLine classifies one SSE line. Gemini can pack several parts into
// a single event; those surface as a multi-fragment event so ordering
// survives. In-band errors arrive as a top-level error object.
func (g *gemini) ParseLine(line string) Event {
	if line == doneSentinel {
		return doneEvent()
	}
	if !strings.HasPrefix(line, "data: ") {
		return ignoreEvent()
	}
	g.lineCount++

	var chunk geminiChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
		return errorEvent("Error parsing stream data: " + err.Error())
	}

	if chunk.Error != nil {
		return errorEvent(chunk.Error.Message)
	}
	if len(chunk.Candidates) == 0 {
		return ignoreEvent()
	}

	candidate := chunk.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason != "" {
			if util.IsVerbose() {
				log.Printf("ℹ️ [VERBOSE] Gemini stream finished: %s (%d data lines, %d chars)",
					candidate.FinishReason, g.lineCount, g.charCount)
			}
			return ignoreEvent()
		}
		return ignoreEvent()
	}

	if len(candidate.Content.Parts) == 1 {
		text := candidate.Content.Parts[0].Text
		g.charCount += len(text)
		return contentEvent(text)
	}

	texts := make([]string, 0, len(candidate.Content.Parts))
	for _, part := range candidate.Content.Parts {
		g.charCount += len(part.Text)
		texts = append(texts, part.Text)
	}
	return contentMultiEvent(texts)
}

// ResetStreamState clears the per-stream counters before the read loop
// starts.
func (g *gemini) ResetStreamState() {
	g.lineCount = 0
	g.charCount = 0
}
