package face

import (
	"context"
	"image"
)

// DetectedFace is one detection in one frame. It is owned by the evaluation
// call that produced it and never retained across frames.
type DetectedFace struct {
	Box       image.Rectangle
	Embedding []float32
}

// Frame carries one captured webcam frame in both forms the pipeline needs:
// decoded pixels for focus scoring and the original JPEG bytes for detector
// backends that consume encoded images.
type Frame struct {
	Image image.Image
	JPEG  []byte
}

// Detector is the capability adapter boundary: given a frame, return zero or
// more detected faces in the backend's own order. The order is significant;
// the evaluator tracks the first entry and applies no re-ranking.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]DetectedFace, error)
}
