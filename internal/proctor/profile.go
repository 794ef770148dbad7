package proctor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/face"
	"github.com/examproctor/backend/pkg/logger"
)

// ErrNoFaceInImage is returned when an enrollment image contains no
// detectable face. Enrollment is all-or-nothing: one bad image rejects the
// whole set.
var ErrNoFaceInImage = fmt.Errorf("no face detected in reference image")

// ReferenceProfile holds the enrolled subject's reference embeddings, one per
// enrollment image, all in the same adapter vector space. Immutable after
// Enroll.
type ReferenceProfile struct {
	embeddings [][]float32
}

// Embeddings returns a read view of the reference embeddings.
func (p *ReferenceProfile) Embeddings() [][]float32 {
	return p.embeddings
}

func (p *ReferenceProfile) Len() int {
	return len(p.embeddings)
}

// Enroll builds a ReferenceProfile from one or more reference images. For
// each image the first detected face (adapter order, no re-ranking) supplies
// the embedding. If any image yields zero faces the whole enrollment fails
// with ErrNoFaceInImage naming that image.
func Enroll(ctx context.Context, detector face.Detector, frames []face.Frame) (*ReferenceProfile, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("enrollment requires at least one image")
	}

	embeddings := make([][]float32, 0, len(frames))
	for i, frame := range frames {
		detected, err := detector.Detect(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("failed to detect face in reference image %d: %w", i, err)
		}
		if len(detected) == 0 {
			return nil, fmt.Errorf("reference image %d: %w", i, ErrNoFaceInImage)
		}
		embeddings = append(embeddings, detected[0].Embedding)
	}

	logger.Info("Subject enrolled", zap.Int("reference_images", len(embeddings)))

	return &ReferenceProfile{embeddings: embeddings}, nil
}
