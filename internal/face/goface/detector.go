package goface

import (
	"context"
	"fmt"

	goface "github.com/Kagami/go-face"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/face"
	"github.com/examproctor/backend/pkg/logger"
)

// Detector wraps the dlib-backed go-face recognizer. It needs the dlib model
// files (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat,
// mmod_human_face_detector.dat) in modelsDir.
type Detector struct {
	rec *goface.Recognizer
}

func NewDetector(modelsDir string) (*Detector, error) {
	rec, err := goface.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize face recognizer: %w", err)
	}

	logger.Info("Face detector initialized", zap.String("models_dir", modelsDir))

	return &Detector{rec: rec}, nil
}

func (d *Detector) Detect(ctx context.Context, frame face.Frame) ([]face.DetectedFace, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	detected, err := d.rec.Recognize(frame.JPEG)
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}

	// Preserve dlib's output order; the evaluator's tracking policy depends
	// on it.
	faces := make([]face.DetectedFace, len(detected))
	for i, f := range detected {
		embedding := make([]float32, len(f.Descriptor))
		copy(embedding, f.Descriptor[:])
		faces[i] = face.DetectedFace{
			Box:       f.Rectangle,
			Embedding: embedding,
		}
	}

	return faces, nil
}

func (d *Detector) Close() {
	d.rec.Close()
}
