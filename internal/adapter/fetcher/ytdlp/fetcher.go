// Package ytdlp implements the fetch stage: it downloads the source media
// into a job's scratch directory via the yt-dlp binary, streaming progress
// parsed from the tool's line output.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/port"
)

// outputStem is the fixed output template stem inside the scratch directory.
// yt-dlp substitutes the real container extension.
const outputStem = "source"

var (
	percentRe = regexp.MustCompile(`\[download\]\s+(\d{1,3}(?:\.\d+)?)%`)
	destRe    = regexp.MustCompile(`\[download\]\s+Destination:\s+(.+)$`)
	mergeRe   = regexp.MustCompile(`Merging formats into "(.+)"`)
)

type Fetcher struct {
	binaryPath string
}

func NewFetcher(binaryPath string) *Fetcher {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &Fetcher{binaryPath: binaryPath}
}

// FormatSelector maps a requested quality onto a yt-dlp format selector.
// Total and deterministic: anything outside the three bounded tiers selects
// unconstrained best.
func FormatSelector(q domain.Quality) string {
	switch q {
	case domain.Quality360p:
		return "best[height<=360]"
	case domain.Quality720p:
		return "best[height<=720]"
	case domain.Quality1080p:
		return "best[height<=1080]"
	default:
		return "best"
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url, scratchDir string, quality domain.Quality, onProgress func(pct int)) (string, error) {
	template := filepath.Join(scratchDir, outputStem+".%(ext)s")

	cmd := exec.CommandContext(ctx, f.binaryPath,
		"-f", FormatSelector(quality),
		"-o", template,
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"--no-colors",
		url,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("fetch: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("fetch: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("fetch: start: %w", err)
	}

	var (
		mu       sync.Mutex
		destPath string
		tail     tailBuffer
	)
	consume := func(r io.Reader) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			tail.add(line)
			if p, ok := parseDestination(line); ok {
				destPath = p
			}
			mu.Unlock()
			if pct, ok := parsePercent(line); ok && onProgress != nil {
				onProgress(pct)
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); consume(stdout) }()
	go func() { defer wg.Done(); consume(stderr) }()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		output := tail.String()
		mu.Unlock()
		return "", domain.ClassifyToolFailure(output, domain.FailureExtraction)
	}

	mu.Lock()
	path := destPath
	mu.Unlock()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	// Destination marker absent or stale (e.g. post-merge rename): fall back
	// to scanning the scratch directory for the expected stem.
	return findByStem(scratchDir)
}

// parsePercent extracts a download percentage from a progress line.
func parsePercent(line string) (int, bool) {
	m := percentRe.FindStringSubmatch(line)
	if len(m) != 2 {
		return 0, false
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	pct := int(val)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// parseDestination extracts the produced file path from a destination or
// merge marker line.
func parseDestination(line string) (string, bool) {
	if m := mergeRe.FindStringSubmatch(line); len(m) == 2 {
		return m[1], true
	}
	if m := destRe.FindStringSubmatch(line); len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func findByStem(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("fetch: scan scratch dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == outputStem {
			return filepath.Join(dir, name), nil
		}
	}
	return "", &domain.ProcessFailure{Kind: domain.FailureExtraction, Message: "fetch produced no output file"}
}

// tailBuffer keeps the last lines of tool output for failure classification
// without retaining the full stream.
type tailBuffer struct {
	lines []string
}

const tailLimit = 40

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > tailLimit {
		t.lines = t.lines[len(t.lines)-tailLimit:]
	}
}

func (t *tailBuffer) String() string {
	var b bytes.Buffer
	for _, l := range t.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

var _ port.MediaFetcher = (*Fetcher)(nil)
