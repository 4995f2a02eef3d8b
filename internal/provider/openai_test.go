package provider

import (
	"net/http"
	"strings"
	"testing"

	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/params"
)

func TestOpenAIBuildRequest(t *testing.T) {
	a := testAdapter(t, "openai")

	p := resolvedFor(t, "openai")
	p.Model = "gpt-4o"
	p.SystemPrompt = "You are a summarizer."
	p.Temperature = fptr(0.7)
	p.History = []params.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	req, err := a.BuildRequest("current question", p, keyCreds("sk-test-key"))
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	if req.URL != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("URL = %s", req.URL)
	}
	if req.Method != http.MethodPost {
		t.Errorf("Method = %s", req.Method)
	}
	if got := req.Headers["Authorization"]; got != "Bearer sk-test-key" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Headers["Content-Type"]; got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	body := decodeBody(t, req)
	if body["model"] != "gpt-4o" {
		t.Errorf("model = %v", body["model"])
	}
	if body["stream"] != true {
		t.Errorf("stream = %v, want true", body["stream"])
	}
	if body["max_tokens"] != float64(4096) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
	if body["temperature"] != 0.7 {
		t.Errorf("temperature = %v", body["temperature"])
	}
	if _, ok := body["top_p"]; ok {
		t.Error("top_p present without a user value")
	}

	messages := body["messages"].([]interface{})
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(messages) != len(wantRoles) {
		t.Fatalf("len(messages) = %d, want %d", len(messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		m := messages[i].(map[string]interface{})
		if m["role"] != role {
			t.Errorf("messages[%d].role = %v, want %s", i, m["role"], role)
		}
	}
	last := messages[3].(map[string]interface{})
	if last["content"] != "current question" {
		t.Errorf("trailing user content = %v", last["content"])
	}
}

func TestOpenAIReasoningStyle(t *testing.T) {
	a := testAdapter(t, "openai")

	p := resolvedFor(t, "openai")
	p.Model = "o3-mini"
	p.MaxTokens = 8192
	p.TokenParameter = catalog.TokenParamMaxCompletionTokens
	p.ParameterStyle = catalog.StyleReasoning
	p.Temperature = fptr(0.7)
	p.TopP = fptr(0.9)

	req, err := a.BuildRequest("question", p, keyCreds("sk-test-key"))
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	body := decodeBody(t, req)
	if body["max_completion_tokens"] != float64(8192) {
		t.Errorf("max_completion_tokens = %v", body["max_completion_tokens"])
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens present for a reasoning model")
	}
	if _, ok := body["temperature"]; ok {
		t.Error("temperature present for a reasoning model")
	}
	if _, ok := body["top_p"]; ok {
		t.Error("top_p present for a reasoning model")
	}
}

// The style wins over a descriptor that still names the old field.
func TestOpenAIReasoningStyleOverridesTokenParameter(t *testing.T) {
	a := testAdapter(t, "openai")

	p := resolvedFor(t, "openai")
	p.TokenParameter = catalog.TokenParamMaxTokens
	p.ParameterStyle = catalog.StyleReasoning

	req, err := a.BuildRequest("question", p, keyCreds("sk-test-key"))
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	body := decodeBody(t, req)
	if _, ok := body["max_completion_tokens"]; !ok {
		t.Error("reasoning style should force max_completion_tokens")
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens present despite reasoning style")
	}
}

func TestOpenAIValidationRequest(t *testing.T) {
	a := testAdapter(t, "openai")

	req, err := a.BuildValidationRequest(keyCreds("sk-test-key"))
	if err != nil {
		t.Fatalf("BuildValidationRequest: %v", err)
	}

	body := decodeBody(t, req)
	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want provider default", body["model"])
	}
	if body["stream"] != false {
		t.Errorf("stream = %v, want false", body["stream"])
	}
	if body["max_tokens"] != float64(1) {
		t.Errorf("max_tokens = %v, want 1", body["max_tokens"])
	}
	messages := body["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(messages))
	}
	m := messages[0].(map[string]interface{})
	if m["role"] != "user" || m["content"] != "Hi" {
		t.Errorf("probe message = %v", m)
	}
}

func TestGrokAndMistralShareWireFormat(t *testing.T) {
	for _, tt := range []struct {
		providerID string
		endpoint   string
	}{
		{"grok", "https://api.x.ai/v1/chat/completions"},
		{"mistral", "https://api.mistral.ai/v1/chat/completions"},
	} {
		a := testAdapter(t, tt.providerID)
		req, err := a.BuildRequest("hi", resolvedFor(t, tt.providerID), keyCreds("test-key"))
		if err != nil {
			t.Fatalf("%s BuildRequest: %v", tt.providerID, err)
		}
		if req.URL != tt.endpoint {
			t.Errorf("%s URL = %s", tt.providerID, req.URL)
		}
		if got := req.Headers["Authorization"]; got != "Bearer test-key" {
			t.Errorf("%s Authorization = %q", tt.providerID, got)
		}
	}
}

func TestParseOpenAILine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "content delta",
			line: `data: {"choices":[{"delta":{"content":"Hello"}}]}`,
			want: Event{Kind: EventContent, Text: "Hello"},
		},
		{
			name: "done sentinel",
			line: "data: [DONE]",
			want: Event{Kind: EventDone},
		},
		{
			name: "finish reason only",
			line: `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			want: Event{Kind: EventIgnore},
		},
		{
			name: "empty delta",
			line: `data: {"choices":[{"delta":{"content":""}}]}`,
			want: Event{Kind: EventIgnore},
		},
		{
			name: "no choices",
			line: `data: {"choices":[]}`,
			want: Event{Kind: EventIgnore},
		},
		{
			name: "comment line",
			line: ": keep-alive",
			want: Event{Kind: EventIgnore},
		},
		{
			name: "named event line",
			line: "event: ping",
			want: Event{Kind: EventIgnore},
		},
	}

	a := testAdapter(t, "openai")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.ParseLine(tt.line)
			if got.Kind != tt.want.Kind || got.Text != tt.want.Text {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseOpenAILineMalformed(t *testing.T) {
	a := testAdapter(t, "openai")
	got := a.ParseLine(`data: {"choices":`)
	if got.Kind != EventError {
		t.Fatalf("Kind = %s, want error", got.Kind)
	}
	if !strings.HasPrefix(got.Message, "Error parsing stream data: ") {
		t.Errorf("Message = %q", got.Message)
	}
}
