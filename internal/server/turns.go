package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pagelens/relay/internal/logging"
	"github.com/pagelens/relay/internal/relay"
	"github.com/pagelens/relay/internal/store"
	"github.com/pagelens/relay/internal/util"
)

// ProcessTurnHandler starts a turn and relays its chunks to the client as
// Server-Sent Events: one "start" event carrying {success, streamId,
// contentType}, then one data event per chunk, the terminal chunk last.
func ProcessTurnHandler(coordinator *relay.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqBytes, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		if util.IsVerbose() {
			log.Printf("📥 [VERBOSE] [%s] /v1/turns Raw request:\n%s",
				logging.GetRequestID(r.Context()), util.TruncateBytes(reqBytes))
		}

		var req relay.TurnRequest
		if err := json.Unmarshal(reqBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "Streaming not supported")
			return
		}

		// The turn goroutine calls onChunk synchronously; hand chunks to
		// the handler goroutine over a channel so writes stay ordered.
		chunks := make(chan relay.Chunk, 16)
		streamID, err := coordinator.Process(r.Context(), &req, func(c relay.Chunk) {
			chunks <- c
		})
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		SetSSEHeaders(w)
		start, _ := json.Marshal(map[string]interface{}{
			"success":     true,
			"streamId":    streamID,
			"contentType": req.ContentType(),
		})
		fmt.Fprintf(w, "event: start\ndata: %s\n\n", start)
		flusher.Flush()

		clientGone := r.Context().Done()
		for {
			select {
			case c := <-chunks:
				payload, _ := json.Marshal(c)
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
				if c.Done {
					return
				}
			case <-clientGone:
				// The extension went away mid-stream. Cancel the turn but
				// keep draining until its terminal chunk arrives so the
				// turn goroutine never blocks on a dead channel.
				log.Printf("⚠️ Client disconnected before stream %s finished, cancelling", streamID)
				_ = coordinator.Cancel(streamID)
				clientGone = nil
			}
		}
	}
}

// CancelTurnHandler signals a running turn's cancel handle.
func CancelTurnHandler(coordinator *relay.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamID := chi.URLParam(r, "streamId")
		if err := coordinator.Cancel(streamID); err != nil {
			status := http.StatusNotFound
			if !errors.Is(err, relay.ErrStreamNotFound) {
				status = http.StatusInternalServerError
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// LastTurnHandler returns the most recent stream record. A popup that
// reopens after the stream finished recovers the response here.
func LastTurnHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := st.LastStreamRecord()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read stream record: "+err.Error())
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "No stream record found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"record":  rec,
		})
	}
}

// GetTurnHandler returns one stream record by id.
func GetTurnHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamID := chi.URLParam(r, "streamId")
		rec, err := st.GetStreamRecord(streamID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read stream record: "+err.Error())
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "No stream record found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"record":  rec,
		})
	}
}
