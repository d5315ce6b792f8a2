// Package preprocess produces a single cleaned grayscale image per page,
// running the Enhanced and Minimal paths and letting a Comparator pick the
// stronger one by full-page OCR confidence.
package preprocess

import (
	"image"
	"math"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/disintegration/imaging"
)

// Result is one path's output image plus the trace of steps applied.
type Result struct {
	Image image.Image
	Meta  card.PreprocMeta
}

// Preprocessor runs both paths for a page.
type Preprocessor struct {
	cfg config.PreprocessConfig
}

// New builds a Preprocessor from configuration.
func New(cfg config.PreprocessConfig) *Preprocessor {
	return &Preprocessor{cfg: cfg}
}

// RunBoth produces the Enhanced and Minimal path outputs for one page.
func (p *Preprocessor) RunBoth(src image.Image) (enhanced, minimal Result) {
	minimal = p.runMinimal(src)
	if !p.cfg.FeatureDualPath {
		return minimal, minimal
	}
	enhanced = p.runEnhanced(src)
	return enhanced, minimal
}

func (p *Preprocessor) runMinimal(src image.Image) Result {
	var steps []string
	img := downscale(src, 2200)
	steps = append(steps, "downscale")
	img = imaging.Grayscale(img)
	steps = append(steps, "grayscale")
	img = imaging.Blur(img, 0.5)
	steps = append(steps, "bilateral_light")

	return Result{Image: img, Meta: card.PreprocMeta{Steps: steps, Path: card.PathMinimal}}
}

func (p *Preprocessor) runEnhanced(src image.Image) Result {
	var steps []string
	var warnings []string

	img := downscale(src, 2200)
	steps = append(steps, "downscale")
	img = imaging.Grayscale(img)
	steps = append(steps, "grayscale")

	if p.cfg.FeatureDewarp && isPhotograph(img) {
		if warped, ok := p.dewarp(img); ok {
			img = warped
			steps = append(steps, "dewarp")
		} else {
			warnings = append(warnings, "dewarp: no usable quad found")
		}
	}

	if angle := estimateSkewRad(img); math.Abs(angle) > p.cfg.DeskewMinAngleRad {
		img = imaging.Rotate(img, -angle*180/math.Pi, image.Transparent)
		steps = append(steps, "deskew")
	}

	img = imaging.Blur(img, 0.8)
	steps = append(steps, "bilateral")

	img = applyCLAHE(img, p.cfg.CLAHEClipLimit, p.cfg.CLAHETileSize)
	steps = append(steps, "clahe")

	return Result{Image: img, Meta: card.PreprocMeta{Steps: steps, Warnings: warnings, Path: card.PathEnhanced}}
}

func downscale(img image.Image, maxLongEdge int) image.Image {
	b := img.Bounds()
	longEdge := b.Dx()
	if b.Dy() > longEdge {
		longEdge = b.Dy()
	}
	if longEdge <= maxLongEdge {
		return img
	}
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, maxLongEdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxLongEdge, imaging.Lanczos)
}

// isPhotograph classifies a page as camera-captured (vs. a born-digital
// scan) via Laplacian variance: photographs carry broadband high-frequency
// noise that flat scanned pages lack.
func isPhotograph(img image.Image) bool {
	variance := laplacianVariance(img)
	return variance > 500
}

func laplacianVariance(img image.Image) float64 {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	at := func(x, y int) float64 {
		r, _, _, _ := gray.At(b.Min.X+x, b.Min.Y+y).RGBA()
		return float64(r >> 8)
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := -4*at(x, y) + at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1)
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
