// Package relay drives streaming turns end to end: it resolves the model
// and parameters, fetches credentials, dispatches the provider request,
// consumes the SSE body line by line, and lands exactly one terminal
// callback plus a persisted stream record per turn.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pagelens/relay/internal/apierror"
	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/monitor"
	"github.com/pagelens/relay/internal/params"
	"github.com/pagelens/relay/internal/provider"
	"github.com/pagelens/relay/internal/store"
	"github.com/pagelens/relay/internal/store/models"
	"github.com/pagelens/relay/internal/util"
)

// ErrStreamNotFound reports a cancel for a stream that is unknown or has
// already terminated. The message is part of the API contract.
var ErrStreamNotFound = errors.New("Stream not found or already completed/cancelled")

// maxErrorBody caps how much of a non-OK response body the extractor
// sees.
const maxErrorBody = 64 * 1024

// TurnRequest is one inbound streaming request from the extension.
type TurnRequest struct {
	TabID                 int64            `json:"tabId"`
	URL                   string           `json:"url"`
	ProviderID            string           `json:"providerId"`
	ModelID               string           `json:"modelId"`
	Source                string           `json:"source"`
	CustomPrompt          string           `json:"customPrompt"`
	ConversationHistory   []params.Message `json:"conversationHistory"`
	FormattedContent      string           `json:"formattedContent"`
	SkipInitialExtraction bool             `json:"skipInitialExtraction"`
}

// ContentType reports what rode along with the instruction: "text" when
// the extension attached extracted page content, "none" otherwise.
func (r *TurnRequest) ContentType() string {
	if r.FormattedContent != "" {
		return "text"
	}
	return "none"
}

// Chunk is one onChunk invocation. Mid-stream chunks carry text with
// done:false; the terminal chunk carries done:true and exactly one of
// fullContent, cancelled:true, or error.
type Chunk struct {
	Chunk       string `json:"chunk"`
	Done        bool   `json:"done"`
	Model       string `json:"model,omitempty"`
	FullContent string `json:"fullContent,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ChunkFunc consumes one turn's callbacks. Within a turn, calls arrive
// in provider byte order and the terminal callback is strictly last.
type ChunkFunc func(Chunk)

// Coordinator owns the moving parts a turn needs and the process-wide
// streamId → cancel table.
type Coordinator struct {
	store       *store.Store
	creds       *credstore.Store
	resolver    *params.Resolver
	monitor     *monitor.Monitor
	broadcaster *Broadcaster

	// No client-level timeout. A streaming response legitimately stays
	// open for minutes; lifetimes are bound per turn via its context.
	client *http.Client

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewCoordinator(s *store.Store, creds *credstore.Store, resolver *params.Resolver, mon *monitor.Monitor, b *Broadcaster) *Coordinator {
	return &Coordinator{
		store:       s,
		creds:       creds,
		resolver:    resolver,
		monitor:     mon,
		broadcaster: b,
		client:      &http.Client{},
		cancels:     make(map[string]context.CancelFunc),
	}
}

const streamIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewStreamID mints a turn identifier: epoch millis plus a short random
// suffix to keep same-millisecond turns distinct.
func NewStreamID() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = streamIDAlphabet[rand.Intn(len(streamIDAlphabet))]
	}
	return fmt.Sprintf("stream_%d_%s", time.Now().UnixMilli(), suffix)
}

// turn is the per-stream state. One goroutine owns it for its whole
// life, so none of this needs locking.
type turn struct {
	id      string
	ctx     context.Context
	req     *TurnRequest
	adapter provider.Adapter
	params  *params.Resolved
	creds   *credstore.Credentials
	onChunk ChunkFunc
	started time.Time

	fullContent strings.Builder
	chunkCount  int
	doneSeen    bool
	finished    bool
}

// Process starts one streaming turn. The synchronous part does
// everything the caller must be able to rely on before the first chunk:
// model and parameter resolution, credential fetch, the persisted
// streaming record, and cancel-handle registration. The HTTP call and
// the read loop run detached from ctx, which only scopes the setup I/O;
// a turn outlives its initiating HTTP request and is stopped through
// Cancel, not through consumer disconnect.
func (c *Coordinator) Process(ctx context.Context, req *TurnRequest, onChunk ChunkFunc) (string, error) {
	if req.ProviderID == "" {
		return "", apierror.New(apierror.KindSetup, "providerId is required")
	}
	if req.CustomPrompt == "" {
		return "", apierror.New(apierror.KindSetup, "customPrompt is required")
	}

	api, err := catalog.GetProviderAPI(req.ProviderID)
	if err != nil {
		return "", err
	}
	providerID := api.ID

	// Model: explicit choice > stored preference > provider default.
	modelID := req.ModelID
	if modelID == "" {
		modelID, err = c.resolver.ResolveModel(providerID, req.TabID, req.Source)
		if err != nil {
			return "", err
		}
	}
	if modelID == "" {
		modelID = api.DefaultModel
	}

	resolved, err := c.resolver.Resolve(providerID, modelID, req.ConversationHistory)
	if err != nil {
		return "", err
	}

	adapter, err := provider.New(providerID)
	if err != nil {
		return "", err
	}

	creds, err := c.creds.Get(ctx, providerID)
	if err != nil {
		return "", err
	}
	if creds == nil {
		return "", apierror.Newf(apierror.KindSetup, "No API key configured for %s", providerID)
	}

	streamID := NewStreamID()
	if err := c.store.PutStreamRecord(&models.StreamRecord{
		StreamID:  streamID,
		Status:    models.StreamStatusStreaming,
		Provider:  providerID,
		Model:     resolved.Model,
		Content:   "",
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		return "", err
	}

	turnCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancels[streamID] = cancel
	c.mu.Unlock()

	t := &turn{
		id:      streamID,
		ctx:     turnCtx,
		req:     req,
		adapter: adapter,
		params:  resolved,
		creds:   creds,
		onChunk: onChunk,
		started: time.Now(),
	}

	log.Printf("🚀 Turn %s: %s/%s (source: %s, content: %s)",
		streamID, providerID, resolved.Model, req.Source, req.ContentType())
	go c.run(t)

	return streamID, nil
}

// Cancel aborts an in-flight turn. The turn observes the context cancel
// on its next read and terminates with a cancelled callback; a missing
// entry means the turn already finished (or never existed).
func (c *Coordinator) Cancel(streamID string) error {
	c.mu.Lock()
	cancel, ok := c.cancels[streamID]
	c.mu.Unlock()
	if !ok {
		return ErrStreamNotFound
	}
	log.Printf("🛑 Cancelling stream %s", streamID)
	cancel()
	return nil
}

// ValidateCredentials implements credstore.Validator: execute the
// provider's minimal probe and report whether the upstream accepted it.
// Non-OK statuses are a clean false; only transport faults are errors.
func (c *Coordinator) ValidateCredentials(ctx context.Context, providerID string, creds *credstore.Credentials) (bool, error) {
	adapter, err := provider.New(providerID)
	if err != nil {
		return false, err
	}
	probe, err := adapter.BuildValidationRequest(creds)
	if err != nil {
		return false, err
	}

	request, err := http.NewRequestWithContext(ctx, probe.Method, probe.URL, bytes.NewReader(probe.Body))
	if err != nil {
		return false, apierror.Wrap(apierror.KindSetup, "failed to build validation request", err)
	}
	for k, v := range probe.Headers {
		request.Header.Set(k, v)
	}

	resp, err := c.client.Do(request)
	if err != nil {
		return false, apierror.Wrap(apierror.KindTransport, sanitizeTransportError(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Printf("✅ Credentials for %s validated", providerID)
		return true, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	log.Printf("⚠️ Credential validation for %s failed: %s", providerID,
		apierror.ExtractMessage(resp.StatusCode, http.StatusText(resp.StatusCode), body))
	return false, nil
}

// run executes the streaming half of a turn on its own goroutine.
func (c *Coordinator) run(t *turn) {
	prompt := ComposeStructuredPrompt(t.req.CustomPrompt, t.req.FormattedContent)

	req, err := t.adapter.BuildRequest(prompt, t.params, t.creds)
	if err != nil {
		c.finishError(t, "API Request Setup Error: "+err.Error())
		return
	}

	httpReq, err := http.NewRequestWithContext(t.ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		c.finishError(t, "API Request Setup Error: "+err.Error())
		return
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if util.IsVerbose() {
		log.Printf("📤 [VERBOSE] Turn %s: %s %s body=%s",
			t.id, req.Method, sanitizeURL(req.URL), util.TruncateBytes(req.Body))
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if t.ctx.Err() != nil {
			c.finishCancelled(t)
			return
		}
		c.finishError(t, "Request failed: "+sanitizeTransportError(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := apierror.ExtractMessage(resp.StatusCode, http.StatusText(resp.StatusCode), body)
		log.Printf("❌ Turn %s: %s", t.id, msg)
		c.finishError(t, msg)
		return
	}

	t.adapter.ResetStreamState()
	c.consume(t, resp.Body)
}

// consume reads the SSE body as raw bytes, splits on newline, and
// dispatches each trimmed non-empty line. Lines never split multi-byte
// UTF-8 sequences, so byte-level framing is safe. At EOF a trailing
// partial line gets exactly one parse.
func (c *Coordinator) consume(t *turn, body io.Reader) {
	buf := make([]byte, 4096)
	var pending []byte

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimSpace(string(pending[:idx]))
				pending = pending[idx+1:]
				if line == "" {
					continue
				}
				if c.dispatch(t, line) {
					return
				}
			}
		}
		if readErr == nil {
			continue
		}
		if readErr == io.EOF {
			if line := strings.TrimSpace(string(pending)); line != "" {
				if c.dispatch(t, line) {
					return
				}
			}
			c.finishSuccess(t)
			return
		}
		if t.ctx.Err() != nil || errors.Is(readErr, context.Canceled) {
			c.finishCancelled(t)
			return
		}
		c.finishError(t, "Error reading stream: "+sanitizeTransportError(readErr))
		return
	}
}

// dispatch routes one parsed stream event. Returns true when the turn
// terminated and reading must stop.
func (c *Coordinator) dispatch(t *turn, line string) bool {
	event := t.adapter.ParseLine(line)
	switch event.Kind {
	case provider.EventContent:
		c.emitContent(t, event.Text)
	case provider.EventContentMulti:
		for _, text := range event.Texts {
			c.emitContent(t, text)
		}
	case provider.EventDone:
		// Observation only. Some providers send usage frames after the
		// sentinel, so the loop keeps reading to EOF.
		t.doneSeen = true
	case provider.EventError:
		c.finishError(t, event.Message)
		return true
	case provider.EventIgnore:
	}
	return false
}

// emitContent appends non-empty text to the turn's buffer and forwards
// it. Empty fragments are suppressed entirely.
func (c *Coordinator) emitContent(t *turn, text string) {
	if text == "" {
		return
	}
	t.fullContent.WriteString(text)
	t.chunkCount++
	t.onChunk(Chunk{Chunk: text, Done: false, Model: t.params.Model})
}

func (c *Coordinator) finishSuccess(t *turn) {
	if !t.doneSeen && util.IsVerbose() {
		log.Printf("ℹ️ [VERBOSE] Turn %s: EOF without a done event", t.id)
	}
	c.finish(t, "", false)
}

func (c *Coordinator) finishCancelled(t *turn) {
	c.finish(t, "", true)
}

func (c *Coordinator) finishError(t *turn, msg string) {
	c.finish(t, msg, false)
}

// finish is the single terminal path of a turn: deregister the cancel
// handle, persist the record, update the process-wide error field,
// record monitoring, broadcast, and emit the one done callback, in that
// order, exactly once.
func (c *Coordinator) finish(t *turn, errMsg string, cancelled bool) {
	if t.finished {
		return
	}
	t.finished = true

	c.mu.Lock()
	if cancel, ok := c.cancels[t.id]; ok {
		delete(c.cancels, t.id)
		defer cancel()
	}
	c.mu.Unlock()

	full := t.fullContent.String()

	// A user cancel persists as completed-with-partial-content and no
	// error: from the UI's standpoint it is success the user cut short.
	status := models.StreamStatusCompleted
	if errMsg != "" {
		status = models.StreamStatusError
	}

	if err := c.store.PutStreamRecord(&models.StreamRecord{
		StreamID:  t.id,
		Status:    status,
		Provider:  t.adapter.Provider(),
		Model:     t.params.Model,
		Content:   full,
		Error:     errMsg,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		log.Printf("⚠️ Turn %s: failed to persist terminal record: %v", t.id, err)
	}

	if errMsg != "" {
		if err := c.store.PutSetting(store.KeyLastError, errMsg); err != nil {
			log.Printf("⚠️ Turn %s: failed to record last error: %v", t.id, err)
		}
	} else {
		if err := c.store.DeleteSetting(store.KeyLastError); err != nil {
			log.Printf("⚠️ Turn %s: failed to clear last error: %v", t.id, err)
		}
	}

	// The monitor keeps the cancelled distinction the stream record
	// deliberately drops.
	logStatus := status
	if cancelled {
		logStatus = models.TurnStatusCancelled
	}
	c.monitor.Record(models.TurnLog{
		StreamID:   t.id,
		Provider:   t.adapter.Provider(),
		Model:      t.params.Model,
		Source:     t.req.Source,
		Status:     logStatus,
		Duration:   time.Since(t.started).Milliseconds(),
		ChunkCount: t.chunkCount,
		Chars:      len(full),
		Error:      errMsg,
		Prompt:     t.req.CustomPrompt,
	})

	c.broadcaster.Publish(Notice{
		Type:     NoticeResponseReady,
		StreamID: t.id,
		Status:   logStatus,
		Provider: t.adapter.Provider(),
		Model:    t.params.Model,
	})

	switch {
	case cancelled:
		log.Printf("🛑 Turn %s cancelled after %d chunks (%d chars kept)", t.id, t.chunkCount, len(full))
		t.onChunk(Chunk{Done: true, Model: t.params.Model, FullContent: full, Cancelled: true})
	case errMsg != "":
		t.onChunk(Chunk{Done: true, Model: t.params.Model, Error: errMsg})
	default:
		log.Printf("✅ Turn %s completed: %d chunks, %d chars", t.id, t.chunkCount, len(full))
		t.onChunk(Chunk{Done: true, Model: t.params.Model, FullContent: full})
	}
}

// sanitizeTransportError strips URLs out of client errors. The gemini
// key rides in the query string, so raw *url.Error text must never reach
// a user-visible message.
func sanitizeTransportError(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err.Error()
	}
	return err.Error()
}

// sanitizeURL drops the query for logging, same reason.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	u.RawQuery = ""
	return u.String()
}
