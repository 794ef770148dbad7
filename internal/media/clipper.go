package media

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/examproctor/backend/pkg/logger"
)

// Clipper extracts bounded time windows out of a recorded session video.
type Clipper struct {
	ffmpegPath  string
	ffprobePath string
}

func NewClipper(ffmpegPath, ffprobePath string) *Clipper {
	return &Clipper{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Duration probes the container duration in seconds.
func (c *Clipper) Duration(path string) (float64, error) {
	out, err := exec.Command(c.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("failed to probe video duration: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse video duration: %w", err)
	}
	return duration, nil
}

// Extract copies the [start, start+length] window of src into dst without
// re-encoding.
func (c *Clipper) Extract(src, dst string, start, length float64) error {
	err := exec.Command(c.ffmpegPath,
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", src,
		"-t", fmt.Sprintf("%.3f", length),
		"-c", "copy",
		dst,
	).Run()
	if err != nil {
		return fmt.Errorf("failed to extract clip: %w", err)
	}

	logger.Debug("Clip extracted",
		zap.String("dst", dst),
		zap.Float64("start", start),
		zap.Float64("length", length),
	)
	return nil
}
