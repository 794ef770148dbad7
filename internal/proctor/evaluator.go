package proctor

import (
	"context"
	"fmt"
	"image"

	"github.com/examproctor/backend/internal/face"
)

// Verdict classifies one frame.
type Verdict int

const (
	VerdictNoFace Verdict = iota
	VerdictOutOfFocus
	VerdictRecognized
	VerdictUnrecognized
)

func (v Verdict) String() string {
	switch v {
	case VerdictNoFace:
		return "no_face"
	case VerdictOutOfFocus:
		return "out_of_focus"
	case VerdictRecognized:
		return "recognized"
	case VerdictUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// FrameVerdict is the evaluator's output for one frame. Box is set whenever a
// face was examined, including out-of-focus and unrecognized outcomes, so the
// exam page can draw the tracking overlay. Distance is the best embedding
// distance when recognition ran.
type FrameVerdict struct {
	Kind     Verdict
	Box      *image.Rectangle
	Distance float64
}

// EvaluatorConfig carries the per-deployment knobs. CheckFocus false skips
// the size/focus gate entirely and goes straight to recognition.
type EvaluatorConfig struct {
	CheckFocus     bool
	FocusThreshold float64
	MinFaceSize    int
}

// FrameEvaluator is the per-frame decision function. It is stateless across
// frames: the tracked face is always the first entry in adapter output order.
// With multiple people in frame, which one is tracked can change frame to
// frame; that is the accepted behavior, not a bug to fix with a largest-face
// heuristic.
type FrameEvaluator struct {
	detector face.Detector
	matcher  face.Matcher
	cfg      EvaluatorConfig
}

func NewFrameEvaluator(detector face.Detector, matcher face.Matcher, cfg EvaluatorConfig) *FrameEvaluator {
	return &FrameEvaluator{
		detector: detector,
		matcher:  matcher,
		cfg:      cfg,
	}
}

// Evaluate runs detection, the optional size/focus gate, then recognition
// against every reference embedding in the profile.
func (e *FrameEvaluator) Evaluate(ctx context.Context, frame face.Frame, profile *ReferenceProfile) (FrameVerdict, error) {
	detected, err := e.detector.Detect(ctx, frame)
	if err != nil {
		return FrameVerdict{}, fmt.Errorf("failed to detect faces: %w", err)
	}

	if len(detected) == 0 {
		return FrameVerdict{Kind: VerdictNoFace}, nil
	}

	tracked := detected[0]
	box := tracked.Box

	if e.cfg.CheckFocus {
		if box.Dx() < e.cfg.MinFaceSize || box.Dy() < e.cfg.MinFaceSize {
			return FrameVerdict{Kind: VerdictOutOfFocus, Box: &box}, nil
		}
		if frame.Image != nil {
			score := FocusScore(frame.Image, box)
			if score < e.cfg.FocusThreshold {
				return FrameVerdict{Kind: VerdictOutOfFocus, Box: &box}, nil
			}
		}
	}

	matched, distance := e.matcher.MatchAny(tracked.Embedding, profile.Embeddings())
	if matched {
		return FrameVerdict{Kind: VerdictRecognized, Box: &box, Distance: distance}, nil
	}
	return FrameVerdict{Kind: VerdictUnrecognized, Box: &box, Distance: distance}, nil
}
