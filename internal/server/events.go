package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pagelens/relay/internal/relay"
)

// EventsHandler streams turn-completion notices as Server-Sent Events. A
// popup that reopens mid-turn subscribes here to learn when the response
// is ready instead of polling the stream record.
func EventsHandler(b *relay.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "Streaming not supported")
			return
		}

		notices, cancel := b.Subscribe()
		defer cancel()

		SetSSEHeaders(w)
		flusher.Flush()

		for {
			select {
			case n, ok := <-notices:
				if !ok {
					return
				}
				payload, _ := json.Marshal(n)
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, payload)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
