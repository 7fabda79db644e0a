package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition out of the status is
// allowed (deletion excepted).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type Quality string

const (
	Quality360p     Quality = "360p"
	Quality720p     Quality = "720p"
	Quality1080p    Quality = "1080p"
	Quality4K       Quality = "4K"
	QualityOriginal Quality = "original"
	QualityBest     Quality = "best"
)

type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatAVI  Format = "avi"
)

func ValidQuality(q Quality) bool {
	switch q {
	case Quality360p, Quality720p, Quality1080p, QualityOriginal, QualityBest:
		return true
	}
	return false
}

func ValidFormat(f Format) bool {
	switch f {
	case FormatMP4, FormatWebM, FormatAVI:
		return true
	}
	return false
}

// JobResult is attached to a job once processing succeeds.
type JobResult struct {
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size"`
	DownloadURL string `json:"download_url"`
}

// Job is the mutable record tracked for one download request. It is owned by
// the job store; the runner mutates it during execution, status polling reads
// it.
type Job struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Platform        string     `json:"platform"`
	Quality         Quality    `json:"quality"`
	RemoveWatermark bool       `json:"remove_watermark"`
	Format          Format     `json:"format"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	Message         string     `json:"message,omitempty"`
	Error           string     `json:"error,omitempty"`
	Result          *JobResult `json:"result,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func NewJob(url, platform string, quality Quality, removeWatermark bool, format Format) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:              uuid.NewString(),
		URL:             url,
		Platform:        platform,
		Quality:         quality,
		RemoveWatermark: removeWatermark,
		Format:          format,
		Status:          JobStatusQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Progress = 5
	j.Message = "processing started"
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) SetProgress(pct int, message string) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.Progress = pct
	j.Message = message
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(result *JobResult) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Message = "completed"
	j.Result = result
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.Message = "failed"
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkCancelled() {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.Message = "cancelled"
	j.UpdatedAt = now
	j.CompletedAt = &now
}
