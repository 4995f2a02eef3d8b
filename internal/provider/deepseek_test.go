package provider

import (
	"reflect"
	"testing"

	"github.com/pagelens/relay/internal/params"
)

func TestMergedDeepSeekMessages(t *testing.T) {
	tests := []struct {
		name         string
		history      []params.Message
		systemPrompt string
		prompt       string
		want         []chatMessage
	}{
		{
			name: "consecutive user turns merge",
			history: []params.Message{
				{Role: "user", Content: "A"},
				{Role: "user", Content: "B"},
				{Role: "assistant", Content: "C"},
			},
			prompt: "D",
			want: []chatMessage{
				{Role: "user", Content: "A\n\nB"},
				{Role: "assistant", Content: "C"},
				{Role: "user", Content: "D"},
			},
		},
		{
			name: "prompt folds into trailing user message",
			history: []params.Message{
				{Role: "assistant", Content: "answer"},
				{Role: "user", Content: "followup"},
			},
			prompt: "and this",
			want: []chatMessage{
				{Role: "assistant", Content: "answer"},
				{Role: "user", Content: "followup\n\nand this"},
			},
		},
		{
			name: "prompt appends after assistant",
			history: []params.Message{
				{Role: "user", Content: "q"},
				{Role: "assistant", Content: "a"},
			},
			prompt: "next",
			want: []chatMessage{
				{Role: "user", Content: "q"},
				{Role: "assistant", Content: "a"},
				{Role: "user", Content: "next"},
			},
		},
		{
			name:         "system prompt leads and never merges",
			history:      []params.Message{{Role: "user", Content: "q"}},
			systemPrompt: "be brief",
			prompt:       "next",
			want: []chatMessage{
				{Role: "system", Content: "be brief"},
				{Role: "user", Content: "q\n\nnext"},
			},
		},
		{
			name: "unsupported roles dropped before merging",
			history: []params.Message{
				{Role: "user", Content: "q1"},
				{Role: "tool", Content: "tool output"},
				{Role: "user", Content: "q2"},
			},
			prompt: "q3",
			want: []chatMessage{
				{Role: "user", Content: "q1\n\nq2\n\nq3"},
			},
		},
		{
			name:    "empty history",
			history: nil,
			prompt:  "first",
			want: []chatMessage{
				{Role: "user", Content: "first"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergedDeepSeekMessages(tt.history, tt.systemPrompt, tt.prompt)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("messages = %+v\nwant       %+v", got, tt.want)
			}
		})
	}
}

func TestDeepSeekBuildRequest(t *testing.T) {
	a := testAdapter(t, "deepseek")

	p := resolvedFor(t, "deepseek")
	p.History = []params.Message{
		{Role: "user", Content: "A"},
		{Role: "user", Content: "B"},
	}

	req, err := a.BuildRequest("C", p, keyCreds("test-key"))
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.URL != "https://api.deepseek.com/v1/chat/completions" {
		t.Errorf("URL = %s", req.URL)
	}

	body := decodeBody(t, req)
	if body["model"] != "deepseek-chat" {
		t.Errorf("model = %v", body["model"])
	}
	messages := body["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1 after merging", len(messages))
	}
	m := messages[0].(map[string]interface{})
	if m["content"] != "A\n\nB\n\nC" {
		t.Errorf("merged content = %q", m["content"])
	}
}

// The stream side is plain chat/completions.
func TestDeepSeekParsesOpenAIStream(t *testing.T) {
	a := testAdapter(t, "deepseek")
	got := a.ParseLine(`data: {"choices":[{"delta":{"content":"hi"}}]}`)
	if got.Kind != EventContent || got.Text != "hi" {
		t.Errorf("ParseLine = %+v", got)
	}
	if got := a.ParseLine("data: [DONE]"); got.Kind != EventDone {
		t.Errorf("sentinel Kind = %s", got.Kind)
	}
}
