package proctor

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFocusScore_FlatRegionScoresZero(t *testing.T) {
	score := FocusScore(flatImage(64, 64), image.Rect(0, 0, 64, 64))
	assert.Equal(t, 0.0, score)
}

func TestFocusScore_SharpEdgesScoreHigh(t *testing.T) {
	score := FocusScore(checkerImage(64, 64), image.Rect(0, 0, 64, 64))
	assert.Greater(t, score, 100.0)
}

func TestFocusScore_DegenerateCropScoresZero(t *testing.T) {
	img := checkerImage(64, 64)

	assert.Equal(t, 0.0, FocusScore(img, image.Rect(0, 0, 2, 2)))
	assert.Equal(t, 0.0, FocusScore(img, image.Rect(10, 10, 10, 10)))
}

func TestFocusScore_CropOutsideImageScoresZero(t *testing.T) {
	score := FocusScore(checkerImage(64, 64), image.Rect(100, 100, 200, 200))
	assert.Equal(t, 0.0, score)
}
