package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/service"
)

const sseKeepalive = 15 * time.Second

// Events streams job progress as server-sent events. The stream ends once a
// terminal status is delivered or the client disconnects.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	job, err := h.store.Get(jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		respondError(w, r, http.StatusInternalServerError, "internal_error", "could not read job")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.events.Subscribe(jobID)
	defer h.events.Unsubscribe(jobID, ch)

	// Snapshot first so late subscribers see current state immediately.
	writeSSE(w, service.Event{
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
	})
	flusher.Flush()
	if job.Status.IsTerminal() {
		return
	}

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
			if ev.Status.IsTerminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev service.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
