package port

import (
	"context"

	"github.com/mlevkov/clipdock/internal/domain"
)

// ProgressFunc receives percentage/message updates during processing.
type ProgressFunc func(pct int, message string)

// ProcessRequest carries one job's processing parameters.
type ProcessRequest struct {
	JobID           string
	URL             string
	Quality         domain.Quality
	RemoveWatermark bool
	Format          domain.Format
}

// MediaProcessor runs the two-stage fetch/transform pipeline for one job.
type MediaProcessor interface {
	Process(ctx context.Context, req ProcessRequest, onProgress ProgressFunc) (*domain.JobResult, error)
}

// MediaFetcher is the fetch stage: download the source media into scratchDir
// at the requested quality and return the produced file path. Progress is
// reported as the raw 0-100 percentage of the external tool.
type MediaFetcher interface {
	Fetch(ctx context.Context, url, scratchDir string, quality domain.Quality, onProgress func(pct int)) (string, error)
}

// TranscodeOptions selects the transform stage behavior.
type TranscodeOptions struct {
	Format          domain.Format
	RemoveWatermark bool
}

// Transcoder is the transform stage: re-encode inputPath into outputPath,
// optionally blanking the fixed watermark regions. Progress is the raw 0-100
// percentage of the encode.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, opts TranscodeOptions, onProgress func(pct int)) error
}
