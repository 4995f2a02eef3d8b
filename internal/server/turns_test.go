package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/relay"
)

func putTestKey(t *testing.T, deps Deps, providerID string) {
	t.Helper()
	if err := deps.Credentials.Put(providerID, &credstore.Credentials{APIKey: "sk-test-key"}); err != nil {
		t.Fatalf("put creds: %v", err)
	}
}

func TestProcessTurnStreamsSSE(t *testing.T) {
	upstream := sseUpstream(t, []string{
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		`data: {"choices":[{"delta":{"content":" there"}}]}`,
		`data: [DONE]`,
	})
	pointOpenAIAt(t, upstream.URL)
	router, deps := newTestRouter(t)
	putTestKey(t, deps, "openai")

	body := `{"tabId":7,"url":"https://example.com","providerId":"openai","source":"popup","customPrompt":"Hello"}`
	rec := postJSON(t, router, "/v1/turns", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	frames := parseSSE(t, rec.Body.String())
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d: %+v", len(frames), frames)
	}

	if frames[0].event != "start" {
		t.Fatalf("first frame event = %q", frames[0].event)
	}
	var start struct {
		Success     bool   `json:"success"`
		StreamID    string `json:"streamId"`
		ContentType string `json:"contentType"`
	}
	if err := json.Unmarshal([]byte(frames[0].data), &start); err != nil {
		t.Fatalf("decode start frame: %v", err)
	}
	if !start.Success || !strings.HasPrefix(start.StreamID, "stream_") || start.ContentType != "none" {
		t.Errorf("start frame = %+v", start)
	}

	var chunks []relay.Chunk
	for _, f := range frames[1:] {
		var c relay.Chunk
		if err := json.Unmarshal([]byte(f.data), &c); err != nil {
			t.Fatalf("decode chunk %q: %v", f.data, err)
		}
		chunks = append(chunks, c)
	}
	if chunks[0].Chunk != "Hi" || chunks[0].Done {
		t.Errorf("chunk[0] = %+v", chunks[0])
	}
	if chunks[1].Chunk != " there" || chunks[1].Done {
		t.Errorf("chunk[1] = %+v", chunks[1])
	}
	terminal := chunks[2]
	if !terminal.Done || terminal.FullContent != "Hi there" || terminal.Model != "gpt-4o-mini" {
		t.Errorf("terminal = %+v", terminal)
	}
	if terminal.Error != "" || terminal.Cancelled {
		t.Errorf("terminal carries failure state: %+v", terminal)
	}
}

func TestProcessTurnAttachedContent(t *testing.T) {
	upstream := sseUpstream(t, []string{
		`data: {"choices":[{"delta":{"content":"Summary"}}]}`,
		`data: [DONE]`,
	})
	pointOpenAIAt(t, upstream.URL)
	router, deps := newTestRouter(t)
	putTestKey(t, deps, "openai")

	body := `{"providerId":"openai","source":"sidebar","customPrompt":"Summarize","formattedContent":"Page text"}`
	rec := postJSON(t, router, "/v1/turns", body)

	frames := parseSSE(t, rec.Body.String())
	if len(frames) == 0 || frames[0].event != "start" {
		t.Fatalf("frames = %+v", frames)
	}
	if !strings.Contains(frames[0].data, `"contentType":"text"`) {
		t.Errorf("start frame = %s", frames[0].data)
	}
}

func TestProcessTurnInvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/v1/turns", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope["success"] != false {
		t.Errorf("success = %v", envelope["success"])
	}
	if !strings.Contains(envelope["error"].(string), "Invalid request body") {
		t.Errorf("error = %v", envelope["error"])
	}
}

func TestProcessTurnSetupErrors(t *testing.T) {
	router, deps := newTestRouter(t)
	putTestKey(t, deps, "openai")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing provider", `{"customPrompt":"Hello"}`, "providerId is required"},
		{"missing prompt", `{"providerId":"openai"}`, "customPrompt is required"},
		{"unknown provider", `{"providerId":"cohere","customPrompt":"Hello"}`, "unknown provider"},
		{"no credentials", `{"providerId":"anthropic","customPrompt":"Hello"}`, "No API key configured for anthropic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/v1/turns", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
			}
			envelope := decodeEnvelope(t, rec)
			if envelope["success"] != false {
				t.Errorf("success = %v", envelope["success"])
			}
			if !strings.Contains(envelope["error"].(string), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", envelope["error"], tt.wantErr)
			}
		})
	}
}

func TestCancelTurnRoute(t *testing.T) {
	blocked := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n"))
		flusher.Flush()
		close(blocked)
		<-r.Context().Done()
	}))
	t.Cleanup(upstream.Close)
	pointOpenAIAt(t, upstream.URL)
	router, deps := newTestRouter(t)
	putTestKey(t, deps, "openai")

	var mu sync.Mutex
	var chunks []relay.Chunk
	streamID, err := deps.Coordinator.Process(context.Background(), &relay.TurnRequest{
		ProviderID:   "openai",
		Source:       "popup",
		CustomPrompt: "Hello",
	}, func(c relay.Chunk) {
		mu.Lock()
		defer mu.Unlock()
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	<-blocked

	rec := postJSON(t, router, "/v1/turns/"+streamID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if decodeEnvelope(t, rec)["success"] != true {
		t.Fatalf("cancel envelope = %s", rec.Body.String())
	}

	waitFor(t, "terminal chunk", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(chunks) > 0 && chunks[len(chunks)-1].Done
	})
	mu.Lock()
	terminal := chunks[len(chunks)-1]
	mu.Unlock()
	if !terminal.Cancelled || terminal.Error != "" {
		t.Errorf("terminal = %+v", terminal)
	}

	// The handle is gone once the turn finished.
	rec = postJSON(t, router, "/v1/turns/"+streamID+"/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope["error"] != "Stream not found or already completed/cancelled" {
		t.Errorf("error = %v", envelope["error"])
	}
}

func TestCancelUnknownTurnRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/v1/turns/stream_0_zzzzzz/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if envelope["success"] != false {
		t.Errorf("success = %v", envelope["success"])
	}
	if envelope["error"] != "Stream not found or already completed/cancelled" {
		t.Errorf("error = %v", envelope["error"])
	}
}

func TestTurnRecordRoutes(t *testing.T) {
	upstream := sseUpstream(t, []string{
		`data: {"choices":[{"delta":{"content":"Recorded"}}]}`,
		`data: [DONE]`,
	})
	pointOpenAIAt(t, upstream.URL)
	router, deps := newTestRouter(t)
	putTestKey(t, deps, "openai")

	// Nothing recorded yet.
	rec := getJSON(t, router, "/v1/turns/last")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any turn, got %d", rec.Code)
	}

	body := `{"providerId":"openai","source":"popup","customPrompt":"Hello"}`
	streamRec := postJSON(t, router, "/v1/turns", body)
	frames := parseSSE(t, streamRec.Body.String())
	if len(frames) < 2 || frames[0].event != "start" {
		t.Fatalf("frames = %+v", frames)
	}
	var start struct {
		StreamID string `json:"streamId"`
	}
	if err := json.Unmarshal([]byte(frames[0].data), &start); err != nil {
		t.Fatalf("decode start frame: %v", err)
	}

	rec = getJSON(t, router, "/v1/turns/"+start.StreamID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	record := envelope["record"].(map[string]interface{})
	if record["status"] != "completed" || record["content"] != "Recorded" {
		t.Errorf("record = %+v", record)
	}

	rec = getJSON(t, router, "/v1/turns/last")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from last, got %d", rec.Code)
	}
	envelope = decodeEnvelope(t, rec)
	record = envelope["record"].(map[string]interface{})
	if record["streamId"] != start.StreamID {
		t.Errorf("last record streamId = %v, want %s", record["streamId"], start.StreamID)
	}

	rec = getJSON(t, router, "/v1/turns/stream_0_zzzzzz")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown record, got %d", rec.Code)
	}
}
