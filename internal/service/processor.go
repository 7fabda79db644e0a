package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/infrastructure/logger"
	"github.com/mlevkov/clipdock/internal/port"
)

// Progress bands: fetch owns 0-50, transform owns 50-95, the final 5 cover
// relocation and bookkeeping.
const (
	fetchBandEnd     = 50
	transformBandEnd = 95
)

// Processor runs the two-stage fetch/transform pipeline inside a per-job
// scratch directory that is removed unconditionally when the job settles.
type Processor struct {
	fetcher       port.MediaFetcher
	transcoder    port.Transcoder
	scratchRoot   string
	downloadsRoot string
}

func NewProcessor(fetcher port.MediaFetcher, transcoder port.Transcoder, scratchRoot, downloadsRoot string) *Processor {
	return &Processor{
		fetcher:       fetcher,
		transcoder:    transcoder,
		scratchRoot:   scratchRoot,
		downloadsRoot: downloadsRoot,
	}
}

func (p *Processor) Process(ctx context.Context, req port.ProcessRequest, onProgress port.ProgressFunc) (*domain.JobResult, error) {
	scratchDir := filepath.Join(p.scratchRoot, req.JobID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		// Scratch removal failures never escalate the job outcome.
		if err := os.RemoveAll(scratchDir); err != nil {
			logger.Warn.Printf("job %s: failed to remove scratch dir: %v", req.JobID, err)
		}
	}()

	report := func(pct int, msg string) {
		if onProgress != nil {
			onProgress(pct, msg)
		}
	}

	fetchedPath, err := p.fetcher.Fetch(ctx, req.URL, scratchDir, req.Quality, func(pct int) {
		report(pct*fetchBandEnd/100, "downloading")
	})
	if err != nil {
		return nil, fmt.Errorf("fetch stage: %w", err)
	}
	report(fetchBandEnd, "download complete")

	if err := os.MkdirAll(p.downloadsRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create downloads dir: %w", err)
	}

	outputName := req.JobID + "." + string(req.Format)
	outputPath := filepath.Join(p.downloadsRoot, outputName)

	if needsTransform(fetchedPath, req) {
		err := p.transcoder.Transcode(ctx, fetchedPath, outputPath, port.TranscodeOptions{
			Format:          req.Format,
			RemoveWatermark: req.RemoveWatermark,
		}, func(pct int) {
			report(fetchBandEnd+pct*(transformBandEnd-fetchBandEnd)/100, "transcoding")
		})
		if err != nil {
			return nil, fmt.Errorf("transform stage: %w", err)
		}
	} else {
		if err := relocate(fetchedPath, outputPath); err != nil {
			return nil, fmt.Errorf("relocate output: %w", err)
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stat output: %w", err)
	}

	report(100, "completed")

	return &domain.JobResult{
		FilePath:    outputPath,
		FileSize:    info.Size(),
		DownloadURL: "/downloads/" + outputName,
	}, nil
}

// needsTransform reports whether the transform stage runs: watermark removal
// was requested or the fetched container differs from the target format.
func needsTransform(fetchedPath string, req port.ProcessRequest) bool {
	if req.RemoveWatermark {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(fetchedPath), ".")
	return !strings.EqualFold(ext, string(req.Format))
}

// relocate moves the fetched file to the output path, copying when the
// scratch and downloads roots live on different filesystems.
func relocate(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

var _ port.MediaProcessor = (*Processor)(nil)
