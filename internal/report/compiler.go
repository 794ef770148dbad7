package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/media"
	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/pkg/logger"
)

// Clip is one extracted highlight around a flagged event.
type Clip struct {
	Event  proctor.Event `json:"event"`
	Path   string        `json:"path"`
	Start  float64       `json:"start"`
	Length float64       `json:"length"`
}

// Report is the post-session summary.
type Report struct {
	SessionID         string          `json:"session_id"`
	NoFlaggedEvents   bool            `json:"no_flagged_events"`
	Events            []proctor.Event `json:"events"`
	Clips             []Clip          `json:"clips,omitempty"`
	LoudSoundDetected bool            `json:"loud_sound_detected"`
	Narrative         string          `json:"narrative,omitempty"`
}

// Narrator is the optional summary generator; nil means no narrative.
type Narrator interface {
	Narrate(ctx context.Context, events []proctor.Event, loudSoundDetected bool) (string, error)
}

// Compiler builds the report and, when a usable video exists, extracts one
// independent clip per flagged event. Overlapping windows produce duplicated
// footage on purpose: adjacent events each get their own file.
type Compiler struct {
	clipper  *media.Clipper
	narrator Narrator
	outDir   string
	leadSec  float64
	tailSec  float64
}

func NewCompiler(clipper *media.Clipper, narrator Narrator, outDir string, leadSec, tailSec float64) *Compiler {
	return &Compiler{
		clipper:  clipper,
		narrator: narrator,
		outDir:   outDir,
		leadSec:  leadSec,
		tailSec:  tailSec,
	}
}

// ClipWindow derives the highlight window around an event timestamp, clamped
// to [0, duration]. The returned length can be zero when the event sits at
// the very end of the recording.
func ClipWindow(timestamp, leadSec, tailSec, duration float64) (start, length float64) {
	start = timestamp - leadSec
	if start < 0 {
		start = 0
	}
	end := timestamp + tailSec
	if end > duration {
		end = duration
	}
	if end < start {
		end = start
	}
	return start, end - start
}

// Compile never fails: missing or empty video means the report carries the
// event list alone.
func (c *Compiler) Compile(ctx context.Context, sessionID string, events []proctor.Event, videoPath string, loudSoundDetected bool) *Report {
	report := &Report{
		SessionID:         sessionID,
		NoFlaggedEvents:   len(events) == 0,
		Events:            events,
		LoudSoundDetected: loudSoundDetected,
	}

	if len(events) > 0 && c.usableVideo(videoPath) {
		report.Clips = c.extractClips(sessionID, events, videoPath)
	}

	if c.narrator != nil && (len(events) > 0 || loudSoundDetected) {
		narrative, err := c.narrator.Narrate(ctx, events, loudSoundDetected)
		if err != nil {
			logger.Warn("Failed to generate report narrative", zap.Error(err))
		} else {
			report.Narrative = narrative
		}
	}

	logger.Info("Report compiled",
		zap.String("session_id", sessionID),
		zap.Int("events", len(events)),
		zap.Int("clips", len(report.Clips)),
	)

	return report
}

func (c *Compiler) usableVideo(videoPath string) bool {
	if c.clipper == nil || videoPath == "" {
		return false
	}
	info, err := os.Stat(videoPath)
	if err != nil || info.Size() == 0 {
		logger.Warn("Session video missing or empty, skipping clip extraction",
			zap.String("video_path", videoPath),
		)
		return false
	}
	return true
}

func (c *Compiler) extractClips(sessionID string, events []proctor.Event, videoPath string) []Clip {
	duration, err := c.clipper.Duration(videoPath)
	if err != nil {
		logger.Warn("Failed to probe session video, skipping clip extraction", zap.Error(err))
		return nil
	}

	clips := make([]Clip, 0, len(events))
	for _, event := range events {
		start, length := ClipWindow(event.Timestamp, c.leadSec, c.tailSec, duration)
		if length <= 0 {
			continue
		}

		name := fmt.Sprintf("%s_%s_%d.mp4", sessionID, reasonSlug(event.Reason), int(event.Timestamp))
		dst := filepath.Join(c.outDir, name)
		if err := c.clipper.Extract(videoPath, dst, start, length); err != nil {
			logger.Warn("Failed to extract clip",
				zap.Error(err),
				zap.Float64("timestamp", event.Timestamp),
			)
			continue
		}

		clips = append(clips, Clip{
			Event:  event,
			Path:   dst,
			Start:  start,
			Length: length,
		})
	}
	return clips
}

func reasonSlug(reason proctor.Reason) string {
	return strings.ReplaceAll(strings.ToLower(string(reason)), " ", "_")
}
