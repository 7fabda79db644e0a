// Package ffmpeg implements the transform stage: re-encoding to the target
// container and blanking the fixed watermark regions via a delogo filter
// chain. Progress is derived from ffmpeg's stderr timing output.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/port"
)

// Watermark regions: 100×50 boxes inset 10px at the top-left and bottom-left
// corners of the frame.
const watermarkFilter = "delogo=x=10:y=10:w=100:h=50,delogo=x=10:y=ih-60:w=100:h=50"

var (
	durationRe = regexp.MustCompile(`Duration:\s+(\d+):(\d+):(\d+(?:\.\d+)?)`)
	timeRe     = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

type Transcoder struct {
	binaryPath string
}

func NewTranscoder(binaryPath string) *Transcoder {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Transcoder{binaryPath: binaryPath}
}

func (t *Transcoder) Transcode(ctx context.Context, inputPath, outputPath string, opts port.TranscodeOptions, onProgress func(pct int)) error {
	args := buildArgs(inputPath, outputPath, opts)

	cmd := exec.CommandContext(ctx, t.binaryPath, args...)

	// ffmpeg writes both the Duration header and the time= progress lines
	// to stderr.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("transcode: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transcode: start: %w", err)
	}

	tail := watchProgress(stderr, onProgress)

	if err := cmd.Wait(); err != nil {
		return domain.ClassifyToolFailure(tail, domain.FailureExtraction)
	}
	return nil
}

func buildArgs(inputPath, outputPath string, opts port.TranscodeOptions) []string {
	args := []string{"-i", inputPath}

	if opts.RemoveWatermark {
		args = append(args, "-vf", watermarkFilter)
	}

	if opts.Format == domain.FormatWebM {
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-c:a", "libopus",
			"-b:a", "128k",
		)
	} else {
		args = append(args,
			"-c:v", "libx264",
			"-crf", "23",
			"-preset", "medium",
			"-c:a", "aac",
			"-b:a", "128k",
		)
	}

	return append(args, "-y", outputPath)
}

// watchProgress scans ffmpeg stderr, mapping elapsed/total time onto 0-100
// percent. Returns the output tail for failure classification.
func watchProgress(r io.Reader, onProgress func(pct int)) string {
	var (
		total float64
		tail  []string
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail = append(tail, line)
		if len(tail) > 40 {
			tail = tail[len(tail)-40:]
		}

		if total == 0 {
			if secs, ok := parseClock(durationRe, line); ok {
				total = secs
			}
		}
		if secs, ok := parseClock(timeRe, line); ok && total > 0 && onProgress != nil {
			pct := int(secs / total * 100)
			if pct > 100 {
				pct = 100
			}
			onProgress(pct)
		}
	}

	var out string
	for _, l := range tail {
		out += l + "\n"
	}
	return out
}

// parseClock extracts HH:MM:SS.ss from a line using re and returns seconds.
func parseClock(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if len(m) != 4 {
		return 0, false
	}
	hours, _ := strconv.ParseFloat(m[1], 64)
	mins, _ := strconv.ParseFloat(m[2], 64)
	secs, _ := strconv.ParseFloat(m[3], 64)
	return hours*3600 + mins*60 + secs, true
}

var _ port.Transcoder = (*Transcoder)(nil)
