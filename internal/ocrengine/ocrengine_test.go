package ocrengine

import (
	"image"
	"image/color"
	"testing"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/utils"
	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOCRConfigDisabled leaves the primary model paths empty, so New never
// builds a detector/recognizer and every block falls straight through to
// the secondary pass.
func testOCRConfigDisabled() config.OCRConfig {
	return config.OCRConfig{SecondaryLanguages: "eng"}
}

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

type fakeTesseract struct {
	text  string
	boxes []gosseract.BoundingBox
	err   error
}

func (f *fakeTesseract) SetImageFromBytes([]byte) error             { return nil }
func (f *fakeTesseract) SetLanguage(...string) error                { return nil }
func (f *fakeTesseract) SetPageSegMode(gosseract.PageSegMode) error { return nil }
func (f *fakeTesseract) Text() (string, error)                      { return f.text, f.err }
func (f *fakeTesseract) Close() error                                { return nil }

func (f *fakeTesseract) GetBoundingBoxes(gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error) {
	return f.boxes, nil
}

func TestRecognizeBlockReturnsDegenerateOnEmptyCrop(t *testing.T) {
	e := New(testOCRConfigDisabled())
	page := solidImage(100, 100, color.White)

	block := card.LayoutBlock{Type: card.BlockBody, BBox: card.Rect{X: 500, Y: 500, W: 10, H: 10}}
	res := e.RecognizeBlock(page, block, card.PathMinimal)
	assert.Equal(t, card.OcrDegenerate, res.MethodUsed)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestRecognizeBlockFallsBackToSecondaryWhenPrimaryDisabled(t *testing.T) {
	e := New(testOCRConfigDisabled())
	e.tessFactory = func() tesseractClient {
		return &fakeTesseract{text: "invoice total", boxes: []gosseract.BoundingBox{
			{Word: "invoice", Confidence: 90, Box: image.Rect(0, 0, 10, 10)},
			{Word: "total", Confidence: 80, Box: image.Rect(12, 0, 20, 10)},
		}}
	}

	page := solidImage(100, 40, color.White)
	block := card.LayoutBlock{Type: card.BlockHeader, BBox: card.Rect{X: 0, Y: 0, W: 100, H: 40}}
	res := e.RecognizeBlock(page, block, card.PathMinimal)

	assert.Equal(t, card.OcrSecondary, res.MethodUsed)
	assert.Equal(t, "invoice total", res.FullText)
	assert.InDelta(t, 0.85, res.Confidence, 1e-6)
	assert.Equal(t, "single_line", res.PSMHint)
}

func TestRecognizeBlockKeepsWordBoxesOnlyForTable(t *testing.T) {
	e := New(testOCRConfigDisabled())
	e.tessFactory = func() tesseractClient {
		return &fakeTesseract{text: "1 2 3", boxes: []gosseract.BoundingBox{
			{Word: "1", Confidence: 90, Box: image.Rect(0, 0, 5, 5)},
		}}
	}

	page := solidImage(50, 50, color.White)
	tableBlock := card.LayoutBlock{Type: card.BlockTable, BBox: card.Rect{X: 0, Y: 0, W: 50, H: 50}}
	res := e.RecognizeBlock(page, tableBlock, card.PathMinimal)
	assert.NotEmpty(t, res.WordBoxes)

	bodyBlock := card.LayoutBlock{Type: card.BlockBody, BBox: card.Rect{X: 0, Y: 0, W: 50, H: 50}}
	res2 := e.RecognizeBlock(page, bodyBlock, card.PathMinimal)
	assert.Empty(t, res2.WordBoxes)
}

func TestPolygonBoundingBoxRejectsDegeneratePolygon(t *testing.T) {
	_, ok := polygonBoundingBox([]utils.Point{{X: 0, Y: 0}, {X: 1, Y: 0}})
	assert.False(t, ok)
}

func TestPolygonBoundingBoxComputesBounds(t *testing.T) {
	poly := []utils.Point{{X: 1, Y: 2}, {X: 10, Y: 2}, {X: 10, Y: 8}, {X: 1, Y: 8}}
	rect, ok := polygonBoundingBox(poly)
	require.True(t, ok)
	assert.Equal(t, 1, rect.X)
	assert.Equal(t, 2, rect.Y)
	assert.Equal(t, 9, rect.W)
	assert.Equal(t, 6, rect.H)
}

func TestCropBlockClampsToBounds(t *testing.T) {
	page := solidImage(100, 100, color.White)
	crop, ok := cropBlock(page, card.Rect{X: 90, Y: 90, W: 50, H: 50})
	require.True(t, ok)
	assert.Equal(t, 10, crop.Bounds().Dx())
	assert.Equal(t, 10, crop.Bounds().Dy())
}

func TestCropBlockReportsEmptyWhenOutOfBounds(t *testing.T) {
	page := solidImage(100, 100, color.White)
	_, ok := cropBlock(page, card.Rect{X: 200, Y: 200, W: 10, H: 10})
	assert.False(t, ok)
}
