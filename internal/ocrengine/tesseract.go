package ocrengine

import (
	"fmt"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/otiai10/gosseract/v2"
)

// tesseractClient is the narrow slice of *gosseract.Client this package
// calls, following the same narrow-collaborator idiom as
// internal/reconcile.Fallback and internal/preprocess.FullPageOCR — it lets
// tests inject a fake without a real Tesseract install.
type tesseractClient interface {
	SetImageFromBytes([]byte) error
	SetLanguage(...string) error
	SetPageSegMode(gosseract.PageSegMode) error
	Text() (string, error)
	GetBoundingBoxes(gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	Close() error
}

// psmHint picks the page-segmentation mode per spec: single-line for
// header blocks, uniform-block-of-text for everything else.
func psmHint(t card.BlockType) gosseract.PageSegMode {
	if t == card.BlockHeader {
		return gosseract.PSM_SINGLE_LINE
	}
	return gosseract.PSM_SINGLE_BLOCK
}

// secondaryResult is the outcome of one Tesseract pass over a block crop.
type secondaryResult struct {
	text       string
	confidence float64
	wordBoxes  []card.WordBox
	dropped    int
}

func (e *Engine) runSecondary(c tesseractClient, png []byte, blockType card.BlockType, wantWordBoxes bool) (secondaryResult, error) {
	if err := c.SetImageFromBytes(png); err != nil {
		return secondaryResult{}, fmt.Errorf("ocrengine: set image: %w", err)
	}
	langs := e.cfg.SecondaryLanguages
	if langs == "" {
		langs = "eng"
	}
	if err := c.SetLanguage(langs); err != nil {
		return secondaryResult{}, fmt.Errorf("ocrengine: set language: %w", err)
	}
	if err := c.SetPageSegMode(psmHint(blockType)); err != nil {
		return secondaryResult{}, fmt.Errorf("ocrengine: set psm: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return secondaryResult{}, fmt.Errorf("ocrengine: recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return secondaryResult{text: text}, nil
	}

	var sum float64
	var wordBoxes []card.WordBox
	dropped := 0
	for _, b := range boxes {
		if b.Box.Dx() <= 0 || b.Box.Dy() <= 0 {
			dropped++
			continue
		}
		conf := b.Confidence / 100
		sum += conf
		if wantWordBoxes {
			wordBoxes = append(wordBoxes, card.WordBox{
				Text:       b.Word,
				BBox:       card.Rect{X: b.Box.Min.X, Y: b.Box.Min.Y, W: b.Box.Dx(), H: b.Box.Dy()},
				Confidence: conf,
			})
		}
	}
	conf := 0.0
	if len(boxes)-dropped > 0 {
		conf = sum / float64(len(boxes)-dropped)
	}

	return secondaryResult{text: text, confidence: conf, wordBoxes: wordBoxes, dropped: dropped}, nil
}
