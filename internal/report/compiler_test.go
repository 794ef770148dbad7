package report

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stdout"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeNarrator struct {
	narrative string
	err       error
	calls     int
}

func (n *fakeNarrator) Narrate(ctx context.Context, events []proctor.Event, loudSoundDetected bool) (string, error) {
	n.calls++
	return n.narrative, n.err
}

func TestClipWindow(t *testing.T) {
	tests := []struct {
		name       string
		timestamp  float64
		duration   float64
		wantStart  float64
		wantLength float64
	}{
		{"early event clamps start to zero", 5, 120, 0, 25},
		{"mid-session event keeps full window", 40, 120, 30, 30},
		{"late event clamps end to duration", 115, 120, 105, 15},
		{"event at very end keeps only the lead", 120, 120, 110, 10},
		{"short recording clamps both sides", 5, 8, 0, 8},
		{"timestamp past duration collapses", 50, 30, 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, length := ClipWindow(tt.timestamp, 10, 20, tt.duration)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantLength, length)
		})
	}
}

func TestCompile_NoFlaggedEvents(t *testing.T) {
	c := NewCompiler(nil, nil, t.TempDir(), 10, 20)

	report := c.Compile(context.Background(), "sess-1", nil, "", false)

	assert.True(t, report.NoFlaggedEvents)
	assert.Empty(t, report.Events)
	assert.Empty(t, report.Clips)
	assert.False(t, report.LoudSoundDetected)
}

func TestCompile_MissingVideoSkipsClips(t *testing.T) {
	c := NewCompiler(nil, nil, t.TempDir(), 10, 20)
	events := []proctor.Event{
		{Reason: proctor.ReasonNoFace, Timestamp: 3.5},
		{Reason: proctor.ReasonUnrecognized, Timestamp: 12},
	}

	report := c.Compile(context.Background(), "sess-2", events, "/nonexistent/video.mp4", false)

	assert.False(t, report.NoFlaggedEvents)
	assert.Equal(t, events, report.Events)
	assert.Empty(t, report.Clips, "clip extraction must soft-fail without a video")
}

func TestCompile_EmptyVideoFileSkipsClips(t *testing.T) {
	dir := t.TempDir()
	videoPath := dir + "/session.mp4"
	require.NoError(t, os.WriteFile(videoPath, nil, 0644))

	c := NewCompiler(nil, nil, dir, 10, 20)
	events := []proctor.Event{{Reason: proctor.ReasonNoFace, Timestamp: 1}}

	report := c.Compile(context.Background(), "sess-3", events, videoPath, false)

	assert.Empty(t, report.Clips)
	assert.Equal(t, events, report.Events)
}

func TestCompile_NarratorFailureIsSoft(t *testing.T) {
	narrator := &fakeNarrator{err: errors.New("model unavailable")}
	c := NewCompiler(nil, narrator, t.TempDir(), 10, 20)
	events := []proctor.Event{{Reason: proctor.ReasonOutOfFocus, Timestamp: 7}}

	report := c.Compile(context.Background(), "sess-4", events, "", false)

	assert.Equal(t, 1, narrator.calls)
	assert.Empty(t, report.Narrative)
	assert.Equal(t, events, report.Events)
}

func TestCompile_NarratorRunsForLoudSoundAlone(t *testing.T) {
	narrator := &fakeNarrator{narrative: "A loud sound was picked up mid-session."}
	c := NewCompiler(nil, narrator, t.TempDir(), 10, 20)

	report := c.Compile(context.Background(), "sess-5", nil, "", true)

	assert.Equal(t, 1, narrator.calls)
	assert.True(t, report.LoudSoundDetected)
	assert.True(t, report.NoFlaggedEvents)
	assert.Equal(t, narrator.narrative, report.Narrative)
}

func TestCompile_NarratorSkippedForCleanSession(t *testing.T) {
	narrator := &fakeNarrator{narrative: "unused"}
	c := NewCompiler(nil, narrator, t.TempDir(), 10, 20)

	report := c.Compile(context.Background(), "sess-6", nil, "", false)

	assert.Zero(t, narrator.calls)
	assert.Empty(t, report.Narrative)
}

func TestReasonSlug(t *testing.T) {
	assert.Equal(t, "no_face_detected", reasonSlug(proctor.ReasonNoFace))
	assert.Equal(t, "face_out_of_focus", reasonSlug(proctor.ReasonOutOfFocus))
	assert.Equal(t, "unrecognized_face", reasonSlug(proctor.ReasonUnrecognized))
}
