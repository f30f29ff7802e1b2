package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Atmalviya/news-rag-be/internal/store"
)

// sseWriter frames Server-Sent Events over an http.ResponseWriter, flushing
// after every event so tokens reach the client as they are emitted.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &sseWriter{w: w, flusher: flusher}, nil
}

// data writes an unnamed data-only event.
func (s *sseWriter) data(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// event writes a named event.
func (s *sseWriter) event(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// sseSink adapts sseWriter to the chat stream contract.
type sseSink struct {
	w *sseWriter
}

func (s sseSink) Chunk(token string) error {
	return s.w.data(map[string]string{"chunk": token})
}

func (s sseSink) Sources(articles []store.CitedArticle) error {
	return s.w.event("sources", map[string]any{"sources": articles})
}

func (s sseSink) Complete() error {
	return s.w.event("complete", map[string]bool{"success": true})
}
