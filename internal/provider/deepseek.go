package provider

import (
	"log"

	"github.com/pagelens/relay/internal/catalog"
	"github.com/pagelens/relay/internal/credstore"
	"github.com/pagelens/relay/internal/params"
)

// deepSeek speaks the OpenAI-compatible wire format but its API rejects
// two consecutive messages with the same role, so history assembly merges
// same-role neighbours before anything goes out.
type deepSeek struct {
	api catalog.ProviderAPI
}

func newDeepSeek(api catalog.ProviderAPI) *deepSeek {
	return &deepSeek{api: api}
}

func (a *deepSeek) Provider() string {
	return a.api.ID
}

func (a *deepSeek) BuildRequest(prompt string, p *params.Resolved, creds *credstore.Credentials) (*Request, error) {
	messages := mergedDeepSeekMessages(p.History, p.SystemPrompt, prompt)
	return buildOpenAIStyleRequest(a.api.Endpoint, messages, p, creds, true)
}

func (a *deepSeek) BuildValidationRequest(creds *credstore.Credentials) (*Request, error) {
	return buildOpenAIValidation(a.api, creds)
}

func (a *deepSeek) ParseLine(line string) Event {
	return parseOpenAILine(line)
}

func (a *deepSeek) ResetStreamState() {}

// mergedDeepSeekMessages assembles the alternating messages list. Only
// user and assistant history entries pass through; same-role neighbours
// are joined with a blank line, and the current turn folds into a
// trailing user message instead of following one.
func mergedDeepSeekMessages(history []params.Message, systemPrompt, prompt string) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}

	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			log.Printf("⚠️ DeepSeek: skipping history message with unsupported role %q", m.Role)
			continue
		}
		if n := len(messages); n > 0 && messages[n-1].Role == m.Role {
			messages[n-1].Content += "\n\n" + m.Content
			continue
		}
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	if n := len(messages); n > 0 && messages[n-1].Role == "user" {
		messages[n-1].Content += "\n\n" + prompt
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: prompt})
	}

	// The merge above is complete; adjacency here means a bug upstream.
	for i := 1; i < len(messages); i++ {
		if messages[i].Role == messages[i-1].Role {
			log.Printf("❌ DeepSeek: consecutive %q messages survived the merge at index %d", messages[i].Role, i)
		}
	}
	return messages
}
