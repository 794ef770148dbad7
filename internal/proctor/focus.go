package proctor

import (
	"image"
	"image/color"
)

// FocusScore measures sharpness of the face crop as the variance of a 3x3
// Laplacian over grayscale intensity. Flat or blurred regions score near
// zero; sharp edges push the variance up. An empty or degenerate crop scores
// zero, which the evaluator treats as out of focus.
func FocusScore(img image.Image, box image.Rectangle) float64 {
	crop := box.Intersect(img.Bounds())
	if crop.Dx() < 3 || crop.Dy() < 3 {
		return 0
	}

	w, h := crop.Dx(), crop.Dy()
	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(img.At(crop.Min.X+x, crop.Min.Y+y)).(color.Gray)
			gray[y*w+x] = float64(c.Y)
		}
	}

	// Laplacian kernel [0 1 0; 1 -4 1; 0 1 0] over the interior.
	n := 0
	var sum float64
	lap := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := gray[(y-1)*w+x] + gray[(y+1)*w+x] + gray[y*w+x-1] + gray[y*w+x+1] - 4*gray[y*w+x]
			lap = append(lap, v)
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float64(n)
	var variance float64
	for _, v := range lap {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}
