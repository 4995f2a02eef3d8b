// Package provider implements the per-provider wire adapters: request
// construction, stream-line parsing, and the credential validation probe.
// The coordinator drives adapters through the Adapter interface and stays
// provider-agnostic; everything protocol-specific lives here.
package provider

import (
	"github.com/pagelens/relay/internal/apierror"
	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/params"
)

// EventKind discriminates the parse result of one stream line.
type EventKind string

const (
	// EventContent carries one text fragment.
	EventContent EventKind = "content"
	// EventContentMulti carries several fragments from one line (Gemini
	// can pack multiple parts into a single SSE event).
	EventContentMulti EventKind = "content_multi"
	// EventDone is the provider's end-of-message signal. The byte stream
	// may still carry trailing lines after it.
	EventDone EventKind = "done"
	// EventIgnore marks recognized-but-useless lines: pings, role
	// markers, finish-reason markers, empty deltas.
	EventIgnore EventKind = "ignore"
	// EventError is an in-band provider error or an unparseable line.
	EventError EventKind = "error"
)

// Event is the typed result of parsing one framed stream line. Only the
// fields of the active kind are meaningful.
type Event struct {
	Kind    EventKind
	Text    string   // EventContent
	Texts   []string // EventContentMulti
	Message string   // EventError
}

// Request is a fully built upstream HTTP request, ready to execute.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// Adapter is the uniform contract each provider variant implements.
// Adapters are cheap to construct and hold no credentials; one instance
// serves one turn, so per-stream parse state never leaks across turns.
type Adapter interface {
	// Provider returns the catalog id this adapter speaks for.
	Provider() string

	// BuildRequest assembles the streaming call for one turn. prompt is
	// the already-composed structured prompt.
	BuildRequest(prompt string, p *params.Resolved, creds *credstore.Credentials) (*Request, error)

	// BuildValidationRequest assembles the minimal legal request used to
	// probe whether credentials are accepted.
	BuildValidationRequest(creds *credstore.Credentials) (*Request, error)

	// ParseLine classifies one trimmed, non-empty stream line.
	ParseLine(line string) Event

	// ResetStreamState clears per-stream parse state before the read
	// loop starts. A no-op for every provider except gemini.
	ResetStreamState()
}

// New returns a fresh adapter for a provider id. Unknown ids are a setup
// failure; the provider set is closed by the catalog.
func New(providerID string) (Adapter, error) {
	api, err := catalog.GetProviderAPI(providerID)
	if err != nil {
		return nil, err
	}
	switch api.ID {
	case "openai", "grok", "mistral":
		return newOpenAICompat(api), nil
	case "deepseek":
		return newDeepSeek(api), nil
	case "anthropic":
		return newAnthropic(api), nil
	case "gemini":
		return newGemini(api), nil
	}
	return nil, apierror.Newf(apierror.KindSetup, "no adapter for provider: %s", api.ID)
}

func contentEvent(text string) Event {
	return Event{Kind: EventContent, Text: text}
}

func contentMultiEvent(texts []string) Event {
	return Event{Kind: EventContentMulti, Texts: texts}
}

func doneEvent() Event {
	return Event{Kind: EventDone}
}

func ignoreEvent() Event {
	return Event{Kind: EventIgnore}
}

func errorEvent(message string) Event {
	return Event{Kind: EventError, Message: message}
}
