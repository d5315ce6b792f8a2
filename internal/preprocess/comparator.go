package preprocess

import (
	"image"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
)

// FullPageOCR is the narrow collaborator the Comparator needs: a full-page
// OCR pass returning mean confidence and word count, used only to pick a
// preprocessing path. internal/ocrengine's primary recognizer satisfies it.
type FullPageOCR interface {
	OCRPage(img image.Image) (meanConfidence float64, wordCount int)
}

// Comparator runs both preprocessing paths through a full-page OCR pass and
// picks the stronger one.
type Comparator struct {
	pre config.PreprocessConfig
	ocr FullPageOCR
}

// NewComparator builds a Comparator using the given full-page OCR
// collaborator.
func NewComparator(cfg config.PreprocessConfig, ocr FullPageOCR) *Comparator {
	return &Comparator{pre: cfg, ocr: ocr}
}

// Choose runs both paths, scores each with the injected OCR, and returns the
// winning image with a PreprocMeta recording the decision.
func (c *Comparator) Choose(p *Preprocessor, src image.Image) (image.Image, card.PreprocMeta) {
	enhanced, minimal := p.RunBoth(src)
	if !c.pre.FeatureDualPath {
		return minimal.Image, minimal.Meta
	}

	enhancedConf, enhancedWords := c.ocr.OCRPage(enhanced.Image)
	minimalConf, minimalWords := c.ocr.OCRPage(minimal.Image)

	winner, meta := selectPath(enhanced, enhancedConf, enhancedWords, minimal, minimalConf, minimalWords, c.pre.ComparatorTieDeltaPct)
	return winner.Image, meta
}

// selectPath implements the path-selection rule: the path with higher mean
// confidence wins outright once the gap exceeds 2x tieDeltaPct (10% by
// default); within that gap but beyond tieDeltaPct (5%) the faster minimal
// path wins; within tieDeltaPct, word count breaks the tie, falling back to
// minimal when word counts also match.
func selectPath(enhanced Result, enhancedConf float64, enhancedWords int, minimal Result, minimalConf float64, minimalWords int, tieDeltaPct float64) (Result, card.PreprocMeta) {
	delta := relativeDelta(enhancedConf, minimalConf)

	var winner Result
	switch {
	case delta > 2*tieDeltaPct:
		winner = pickHigherConf(enhanced, enhancedConf, minimal, minimalConf)
	case delta > tieDeltaPct:
		winner = minimal
	case enhancedWords != minimalWords:
		if enhancedWords > minimalWords {
			winner = enhanced
		} else {
			winner = minimal
		}
	default:
		winner = minimal
	}

	meta := winner.Meta
	meta.Steps = append(append([]string{}, winner.Meta.Steps...), "path_selected")
	return winner, meta
}

func pickHigherConf(enhanced Result, enhancedConf float64, minimal Result, minimalConf float64) Result {
	if enhancedConf >= minimalConf {
		return enhanced
	}
	return minimal
}

func relativeDelta(a, b float64) float64 {
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	if hi == 0 {
		return 0
	}
	return (hi - lo) / hi
}
