package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mlevkov/clipdock/internal/adapter/http/validation"
	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/infrastructure/logger"
	"github.com/mlevkov/clipdock/internal/platform"
	"github.com/mlevkov/clipdock/internal/port"
	"github.com/mlevkov/clipdock/internal/service"
)

// Handlers carries the wired services behind the JSON API.
type Handlers struct {
	store         port.JobStore
	extractor     port.MetadataExtractor
	runner        *service.Runner
	auth          *service.AuthService
	sweeper       *service.Sweeper
	events        *service.EventBus
	downloadsRoot string
	version       string
}

func NewHandlers(
	store port.JobStore,
	extractor port.MetadataExtractor,
	runner *service.Runner,
	auth *service.AuthService,
	sweeper *service.Sweeper,
	events *service.EventBus,
	downloadsRoot, version string,
) *Handlers {
	return &Handlers{
		store:         store,
		extractor:     extractor,
		runner:        runner,
		auth:          auth,
		sweeper:       sweeper,
		events:        events,
		downloadsRoot: downloadsRoot,
		version:       version,
	}
}

type extractRequest struct {
	URL string `json:"url"`
}

// Extract runs the metadata extractor for a URL without producing files.
func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	if req.URL == "" {
		respondError(w, r, http.StatusBadRequest, "validation_error", "url is required")
		return
	}
	if !platform.Validate(req.URL) {
		respondError(w, r, http.StatusBadRequest, "validation_error", "unsupported or malformed URL")
		return
	}

	meta, err := h.extractor.Extract(r.Context(), platform.Normalize(req.URL))
	if err != nil {
		logger.Error.Printf("extract %s: %v", logger.SanitizeForLog(req.URL), err)
		respondFailure(w, r, err)
		return
	}
	respondData(w, http.StatusOK, meta)
}

type downloadRequest struct {
	URL             string `json:"url"`
	Quality         string `json:"quality"`
	RemoveWatermark bool   `json:"remove_watermark"`
	Format          string `json:"format"`
}

type downloadResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	StatusURL     string `json:"status_url"`
	EstimatedTime string `json:"estimated_time"`
}

// Download validates the request, registers a queued job and hands it to the
// runner. The response is 202: the work happens asynchronously.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	if req.URL == "" {
		respondError(w, r, http.StatusBadRequest, "validation_error", "url is required")
		return
	}

	desc := platform.Detect(req.URL)
	if desc == nil {
		respondError(w, r, http.StatusBadRequest, "validation_error", "unsupported or malformed URL")
		return
	}

	quality := domain.Quality(req.Quality)
	if req.Quality == "" {
		quality = domain.QualityBest
	}
	if !domain.ValidQuality(quality) {
		respondError(w, r, http.StatusBadRequest, "validation_error", fmt.Sprintf("unknown quality %q", req.Quality))
		return
	}

	format := domain.Format(req.Format)
	if req.Format == "" {
		format = domain.FormatMP4
	}
	if !domain.ValidFormat(format) {
		respondError(w, r, http.StatusBadRequest, "validation_error", fmt.Sprintf("unknown format %q", req.Format))
		return
	}

	if req.RemoveWatermark && !desc.SupportsWatermarkRemoval {
		respondError(w, r, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("%s does not support watermark removal", desc.Name))
		return
	}

	job := domain.NewJob(platform.Normalize(req.URL), desc.Name, quality, req.RemoveWatermark, format)
	if err := h.store.Put(job); err != nil {
		respondError(w, r, http.StatusInternalServerError, "internal_error", "could not register job")
		return
	}

	h.runner.Enqueue(service.DefaultQueue, &service.WorkItem{Request: port.ProcessRequest{
		JobID:           job.ID,
		URL:             job.URL,
		Quality:         job.Quality,
		RemoveWatermark: job.RemoveWatermark,
		Format:          job.Format,
	}})

	logger.Info.Printf("job %s: queued %s download (%s, %s)", job.ID, desc.Name, quality, format)
	respondData(w, http.StatusAccepted, downloadResponse{
		JobID:         job.ID,
		Status:        string(domain.JobStatusQueued),
		StatusURL:     "/api/video/status/" + job.ID,
		EstimatedTime: "1-5 minutes",
	})
}

// Status returns the current job record.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.Get(r.PathValue("jobId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		respondError(w, r, http.StatusInternalServerError, "internal_error", "could not read job")
		return
	}
	respondData(w, http.StatusOK, job)
}

// CancelOrDelete cancels a job still in flight, or removes the record (and
// its artifact) once terminal.
func (h *Handlers) CancelOrDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")
	job, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		respondError(w, r, http.StatusInternalServerError, "internal_error", "could not read job")
		return
	}

	if !job.Status.IsTerminal() {
		// Non-preemptive: a running external process finishes, but its result
		// lands on a cancelled record and is dropped.
		if err := h.store.Update(id, func(j *domain.Job) { j.MarkCancelled() }); err != nil {
			respondError(w, r, http.StatusInternalServerError, "internal_error", "could not cancel job")
			return
		}
		if h.events != nil {
			h.events.Publish(id, service.Event{Status: domain.JobStatusCancelled, Progress: job.Progress, Message: "cancelled"})
		}
		logger.Info.Printf("job %s: cancelled", id)
		respondData(w, http.StatusOK, map[string]string{"job_id": id, "status": string(domain.JobStatusCancelled)})
		return
	}

	if err := h.store.Delete(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		respondError(w, r, http.StatusInternalServerError, "internal_error", "could not delete job")
		return
	}
	logger.Info.Printf("job %s: deleted", id)
	respondData(w, http.StatusOK, map[string]string{"job_id": id, "status": "deleted"})
}

type platformInfo struct {
	Name                     string         `json:"name"`
	Domains                  []string       `json:"domains"`
	MaxQuality               domain.Quality `json:"max_quality"`
	SupportsWatermarkRemoval bool           `json:"supports_watermark_removal"`
	SupportsAudioDownload    bool           `json:"supports_audio_download"`
}

// Platforms lists the supported platforms and their capabilities.
func (h *Handlers) Platforms(w http.ResponseWriter, r *http.Request) {
	descs := platform.Descriptors()
	out := make([]platformInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, platformInfo{
			Name:                     d.Name,
			Domains:                  d.Domains,
			MaxQuality:               d.MaxQuality,
			SupportsWatermarkRemoval: d.SupportsWatermarkRemoval,
			SupportsAudioDownload:    d.SupportsAudioDownload,
		})
	}
	respondData(w, http.StatusOK, out)
}

// ServeDownload streams a completed artifact from the downloads root.
func (h *Handlers) ServeDownload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))
	if name == "." || name == "/" || name == "" {
		respondError(w, r, http.StatusBadRequest, "validation_error", "invalid file name")
		return
	}
	path := filepath.Join(h.downloadsRoot, name)
	w.Header().Set("Content-Disposition", validation.ContentDisposition(name, false))
	http.ServeFile(w, r, path)
}

// Docs returns a machine-readable summary of the API surface.
func (h *Handlers) Docs(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]any{
		"name":    "clipdock",
		"version": h.version,
		"endpoints": []map[string]string{
			{"method": "POST", "path": "/api/video/extract", "description": "Extract video metadata without downloading"},
			{"method": "POST", "path": "/api/video/download", "description": "Queue a download job"},
			{"method": "GET", "path": "/api/video/status/{jobId}", "description": "Poll job status and progress"},
			{"method": "DELETE", "path": "/api/video/job/{jobId}", "description": "Cancel a running job or delete a finished one"},
			{"method": "GET", "path": "/api/video/events/{jobId}", "description": "Stream job progress over SSE"},
			{"method": "GET", "path": "/api/video/platforms", "description": "List supported platforms"},
			{"method": "GET", "path": "/downloads/{name}", "description": "Fetch a completed artifact"},
			{"method": "GET", "path": "/health", "description": "Liveness summary"},
		},
		"authentication": "X-API-Key header or api_key query parameter",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login issues an admin token for valid credentials.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	respondData(w, http.StatusOK, map[string]string{"token": token, "expires_in": "168h"})
}

// AdminStats reports job counts, storage stats and bytes reclaimed.
func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	counts := map[domain.JobStatus]int{}
	for _, job := range h.store.List() {
		counts[job.Status]++
	}
	respondData(w, http.StatusOK, map[string]any{
		"jobs":        counts,
		"storage":     h.sweeper.Stats(),
		"freed_bytes": h.sweeper.FreedBytes(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// AdminPurgeJobs deletes every terminal job record immediately.
func (h *Handlers) AdminPurgeJobs(w http.ResponseWriter, r *http.Request) {
	purged := 0
	for _, job := range h.store.List() {
		if job.Status.IsTerminal() {
			if err := h.store.Delete(job.ID); err == nil {
				purged++
			}
		}
	}
	logger.Info.Printf("admin purge removed %d jobs", purged)
	respondData(w, http.StatusOK, map[string]int{"purged": purged})
}
