package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/document"
)

const keepAliveInterval = 15 * time.Second

type ProgressHandler struct {
	tracker *document.Tracker
}

func NewProgressHandler(t *document.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: t}
}

// Stream sends the session's events as Server-Sent Events until the
// session finishes or the client goes away.
func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		writeError(w, apperr.Validation("Invalid progress ID", nil))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperr.Internal("streaming unsupported", nil))
		return
	}

	events, cancel := h.tracker.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, map[string]string{"type": "connected", "id": id})
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
