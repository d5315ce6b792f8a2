package preprocess

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// estimateSkewRad estimates page rotation by maximizing the variance of the
// horizontal row-sum projection profile across a small angle sweep: text
// lines align into sharp high/low bands at the true skew angle, so the
// projection profile's variance peaks there. A full Hough-line transform is
// not available in the retrieved pack; this projection-profile search is
// the lightweight substitute for the same median-angle estimate, bounded to
// the ±5 degree range typical of scanner feed skew.
func estimateSkewRad(img image.Image) float64 {
	gray := imaging.Grayscale(img)

	small := imaging.Resize(gray, 400, 0, imaging.Lanczos)

	bestAngle := 0.0
	bestVariance := -1.0

	for deg := -5.0; deg <= 5.0; deg += 0.25 {
		rotated := small
		if deg != 0 {
			rotated = imaging.Rotate(small, deg, image.White)
		}
		v := rowSumVariance(rotated)
		if v > bestVariance {
			bestVariance = v
			bestAngle = deg
		}
	}

	// The sweep finds the rotation that straightens the page; the page's own
	// rotation is its negative.
	return -bestAngle * math.Pi / 180
}

func rowSumVariance(img image.Image) float64 {
	b := img.Bounds()
	h := b.Dy()
	if h == 0 {
		return 0
	}
	sums := make([]float64, h)
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, b.Min.Y+y).RGBA()
			rowSum += 255 - float64(r>>8)
		}
		sums[y] = rowSum
	}

	var mean float64
	for _, s := range sums {
		mean += s
	}
	mean /= float64(h)

	var variance float64
	for _, s := range sums {
		d := s - mean
		variance += d * d
	}
	return variance / float64(h)
}
