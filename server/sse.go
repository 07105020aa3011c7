package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

const (
	eventStreamType   = "text/event-stream"
	heartbeatInterval = 15 * time.Second
)

type tokenEvent struct {
	Token string `json:"token"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// sseWriter writes server-sent events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", eventStreamType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) event(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) streamAnswer(w http.ResponseWriter, r *http.Request, scope core.Scope, question string) {
	stream, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	answer, err := s.notebook.Ask(r.Context(), scope, question, func(token string) error {
		return stream.event("token", tokenEvent{Token: token})
	})
	if err != nil {
		s.logger.Warn("streamed answer failed", "documentId", scope.DocumentId, "err", err)
		_ = stream.event("error", errorEvent{Error: err.Error()})
		return
	}
	_ = stream.event("answer", newAnswerReply(answer))
}

// streamEvents relays ingestion progress until the client disconnects.
// A ?document= filter limits events to one document.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	var filter core.ID
	if doc := r.URL.Query().Get("document"); doc != "" {
		id, err := strconv.ParseUint(doc, 10, 64)
		if err != nil {
			http.Error(w, "invalid document id", http.StatusBadRequest)
			return
		}
		filter = core.ID(id)
	}

	stream, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.notebook.Subscribe()
	defer unsubscribe()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		case event, open := <-events:
			if !open {
				return
			}
			if filter != 0 && event.DocumentId != filter {
				continue
			}
			if err := stream.event("progress", newProgressReply(event)); err != nil {
				return
			}
		}
	}
}
