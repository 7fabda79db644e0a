// Package ytdlp invokes the yt-dlp binary to extract structured video
// metadata. The dependency surface is the process boundary only: exit code,
// stdout JSON, stderr text.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/platform"
	"github.com/mlevkov/clipdock/internal/port"
)

const (
	extractTimeout = 30 * time.Second
	maxOutputBytes = 10 << 20 // 10MB stdout cap
)

type Extractor struct {
	binaryPath string
}

func NewExtractor(binaryPath string) *Extractor {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &Extractor{binaryPath: binaryPath}
}

// videoInfo mirrors the subset of yt-dlp --dump-json output we consume.
type videoInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	UploadDate  string  `json:"upload_date"`
	ViewCount   int64   `json:"view_count"`
	Thumbnail   string  `json:"thumbnail"`
	Formats     []struct {
		Height         int    `json:"height"`
		Filesize       int64  `json:"filesize"`
		FilesizeApprox int64  `json:"filesize_approx"`
		ACodec         string `json:"acodec"`
	} `json:"formats"`
}

func (e *Extractor) Extract(ctx context.Context, url string) (*domain.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binaryPath,
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		url,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ytdlp: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ytdlp: start: %w", err)
	}

	out, readErr := io.ReadAll(io.LimitReader(stdout, maxOutputBytes+1))
	waitErr := cmd.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &domain.ProcessFailure{Kind: domain.FailureTimeout, Message: "metadata extraction timed out"}
	}
	if waitErr != nil {
		return nil, domain.ClassifyToolFailure(stderr.String(), domain.FailureExtraction)
	}
	if readErr != nil {
		return nil, fmt.Errorf("ytdlp: read output: %w", readErr)
	}
	if len(out) > maxOutputBytes {
		return nil, &domain.ProcessFailure{Kind: domain.FailureExtraction, Message: "metadata output exceeds 10MB"}
	}

	return parseInfo(out, url)
}

func parseInfo(data []byte, url string) (*domain.Metadata, error) {
	var info videoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &domain.ProcessFailure{Kind: domain.FailureExtraction, Message: "malformed metadata output"}
	}

	title := info.Title
	if title == "" {
		title = "Unknown Title"
	}

	platformName := "Unknown"
	if d := platform.Detect(url); d != nil {
		platformName = d.Name
	}

	tiers := make([]domain.Quality, 0, 4)
	seen := make(map[domain.Quality]bool)
	sizes := make(map[domain.Quality]int64)
	hasAudio := false

	for _, f := range info.Formats {
		if f.ACodec != "" && f.ACodec != "none" {
			hasAudio = true
		}
		if f.Height <= 0 {
			continue
		}
		tier := domain.TierForHeight(f.Height)
		if !seen[tier] {
			seen[tier] = true
			tiers = append(tiers, tier)
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		if size > sizes[tier] {
			sizes[tier] = size
		}
	}
	domain.SortTiers(tiers)

	return &domain.Metadata{
		ID:             info.ID,
		Title:          title,
		Description:    info.Description,
		Duration:       info.Duration,
		Uploader:       info.Uploader,
		UploadDate:     info.UploadDate,
		ViewCount:      info.ViewCount,
		Thumbnail:      info.Thumbnail,
		Platform:       platformName,
		URL:            url,
		Qualities:      tiers,
		EstimatedSizes: sizes,
		HasAudio:       hasAudio,
	}, nil
}

var _ port.MetadataExtractor = (*Extractor)(nil)
