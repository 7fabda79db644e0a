package http

import (
	"net/http"
	"os/exec"
	"time"

	"github.com/mlevkov/clipdock/internal/domain"
)

// Health returns a minimal liveness summary.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthLive always succeeds while the process is serving.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

// HealthReady verifies the external tools are reachable on PATH.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	missing := []string{}
	for _, tool := range []string{"yt-dlp", "ffmpeg"} {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "not ready",
			"missing": missing,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthDetailed adds job counts and storage stats to the summary.
func (h *Handlers) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	counts := map[domain.JobStatus]int{}
	for _, job := range h.store.List() {
		counts[job.Status]++
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     h.version,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"jobs":        counts,
		"storage":     h.sweeper.Stats(),
		"freed_bytes": h.sweeper.FreedBytes(),
	})
}
