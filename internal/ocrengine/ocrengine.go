// Package ocrengine extracts text and per-token geometry from one layout
// block: a primary ONNX word/line detector feeding a CTC recognizer, with a
// secondary Tesseract pass invoked when the primary comes back empty or low
// confidence.
package ocrengine

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/detector"
	"github.com/cardmill/invoicecard/internal/recognizer"
	"github.com/cardmill/invoicecard/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

const primaryConfidenceFloor = 0.3

// Engine runs the primary/secondary recognition cascade for one page's
// blocks.
type Engine struct {
	cfg         config.OCRConfig
	det         *detector.Detector
	rec         *recognizer.Recognizer
	tessFactory func() tesseractClient
}

// New builds an Engine. A missing or unloadable primary model degrades the
// engine to secondary-only, logged but not fatal, following the same
// resilience pattern as internal/layout.New.
func New(cfg config.OCRConfig) *Engine {
	e := &Engine{
		cfg: cfg,
		tessFactory: func() tesseractClient {
			return gosseract.NewClient()
		},
	}

	if cfg.DetectionModelPath != "" {
		dcfg := detector.DefaultConfig()
		dcfg.ModelPath = cfg.DetectionModelPath
		if cfg.NumThreads > 0 {
			dcfg.NumThreads = cfg.NumThreads
		}
		det, err := detector.NewDetector(dcfg)
		if err != nil {
			slog.Warn("ocrengine: word detector unavailable, primary pass disabled", "error", err)
		} else {
			e.det = det
		}
	}

	if e.det != nil && cfg.PrimaryModelPath != "" && cfg.DictPath != "" {
		rcfg := recognizer.DefaultConfig()
		rcfg.ModelPath = cfg.PrimaryModelPath
		rcfg.DictPath = cfg.DictPath
		if cfg.ImageHeight > 0 {
			rcfg.ImageHeight = cfg.ImageHeight
		}
		rcfg.MaxWidth = cfg.MaxWidth
		if cfg.PadWidthMultiple > 0 {
			rcfg.PadWidthMultiple = cfg.PadWidthMultiple
		}
		rcfg.Language = cfg.Language
		if cfg.NumThreads > 0 {
			rcfg.NumThreads = cfg.NumThreads
		}
		rec, err := recognizer.NewRecognizer(rcfg)
		if err != nil {
			slog.Warn("ocrengine: primary recognizer unavailable, primary pass disabled", "error", err)
		} else {
			e.rec = rec
		}
	}

	return e
}

// Close releases the primary model sessions, if any were opened.
func (e *Engine) Close() error {
	if e.rec != nil {
		if err := e.rec.Close(); err != nil {
			return err
		}
	}
	if e.det != nil {
		return e.det.Close()
	}
	return nil
}

// OCRPage satisfies internal/preprocess.FullPageOCR: a full-page pass used
// only to compare the Enhanced and Minimal preprocessing paths.
func (e *Engine) OCRPage(img image.Image) (meanConfidence float64, wordCount int) {
	block := card.LayoutBlock{Type: card.BlockBody, BBox: card.Rect{X: 0, Y: 0, W: img.Bounds().Dx(), H: img.Bounds().Dy()}}
	res := e.RecognizeBlock(img, block, card.PathMinimal)
	return res.Confidence, len(strings.Fields(res.FullText))
}

// RecognizeBlock runs the primary/secondary cascade over one block cropped
// from the page image.
func (e *Engine) RecognizeBlock(pageImg image.Image, block card.LayoutBlock, path card.PreprocPath) card.BlockOCR {
	start := time.Now()
	out := card.BlockOCR{
		BlockType:         block.Type,
		BBox:              block.BBox,
		PreprocessingPath: path,
	}

	crop, ok := cropBlock(pageImg, block.BBox)
	if !ok {
		out.MethodUsed = card.OcrDegenerate
		out.ProcessingMs = elapsedMs(start)
		return out
	}

	prepped := lightPreprocess(crop, block.Type)
	wantWordBoxes := block.Type == card.BlockTable

	primaryText, primaryConf, primaryBoxes, dropped := e.runPrimary(prepped, wantWordBoxes)
	out.DroppedWordEntries += dropped

	finalText, finalConf, finalBoxes := primaryText, primaryConf, primaryBoxes
	method := card.OcrPrimary

	if primaryText == "" || primaryConf < primaryConfidenceFloor {
		psmDescription := "single_line"
		if block.Type != card.BlockHeader {
			psmDescription = "uniform_block"
		}
		out.PSMHint = psmDescription

		sec, err := e.secondaryPass(prepped, block.Type, wantWordBoxes)
		if err != nil {
			slog.Warn("ocrengine: secondary pass failed", "error", err)
		} else {
			out.DroppedWordEntries += sec.dropped
			if sec.confidence > primaryConf {
				finalText, finalConf, finalBoxes = sec.text, sec.confidence, sec.wordBoxes
				method = card.OcrSecondary
			}
		}
	}

	out.FullText = finalText
	out.Confidence = finalConf
	out.MethodUsed = method
	if wantWordBoxes {
		out.WordBoxes = finalBoxes
	}
	out.ProcessingMs = elapsedMs(start)
	return out
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// runPrimary locates word/line regions with the ONNX detector and decodes
// each with the CTC recognizer, assembling them in reading order.
func (e *Engine) runPrimary(img image.Image, wantWordBoxes bool) (text string, confidence float64, boxes []card.WordBox, dropped int) {
	if e.det == nil || e.rec == nil {
		return "", 0, nil, 0
	}

	regions, err := e.det.DetectRegions(img)
	if err != nil || len(regions) == 0 {
		return "", 0, nil, 0
	}

	sort.SliceStable(regions, func(i, j int) bool {
		bi, bj := regions[i].Box, regions[j].Box
		if bi.MinY != bj.MinY {
			return bi.MinY < bj.MinY
		}
		return bi.MinX < bj.MinX
	})

	var parts []string
	var sum float64
	n := 0
	for _, region := range regions {
		rect, ok := polygonBoundingBox(region.Polygon)
		if !ok {
			dropped++
			continue
		}
		res, err := e.rec.RecognizeRegion(img, region)
		if err != nil {
			dropped++
			continue
		}
		parts = append(parts, res.Text)
		sum += res.Confidence
		n++
		if wantWordBoxes && res.Text != "" {
			boxes = append(boxes, card.WordBox{Text: res.Text, BBox: rect, Confidence: res.Confidence})
		}
	}
	if n == 0 {
		return "", 0, nil, dropped
	}
	return joinParts(parts), sum / float64(n), boxes, dropped
}

func (e *Engine) secondaryPass(img image.Image, blockType card.BlockType, wantWordBoxes bool) (secondaryResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return secondaryResult{}, err
	}

	c := e.tessFactory()
	defer c.Close()
	return e.runSecondary(c, buf.Bytes(), blockType, wantWordBoxes)
}

// cropBlock clamps the block rect to the page bounds and copies it out. It
// reports ok=false when the resulting crop is empty, per spec: an empty
// crop is a placeholder with zero confidence, not an error.
func cropBlock(pageImg image.Image, rect card.Rect) (image.Image, bool) {
	b := pageImg.Bounds()
	x0 := clampI(rect.X+b.Min.X, b.Min.X, b.Max.X)
	y0 := clampI(rect.Y+b.Min.Y, b.Min.Y, b.Max.Y)
	x1 := clampI(rect.X+rect.W+b.Min.X, b.Min.X, b.Max.X)
	y1 := clampI(rect.Y+rect.H+b.Min.Y, b.Min.Y, b.Max.Y)
	if x1 <= x0 || y1 <= y0 {
		return image.NewGray(image.Rect(0, 0, 1, 1)), false
	}

	dst := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	draw.Draw(dst, dst.Bounds(), pageImg, image.Pt(x0, y0), draw.Src)
	return dst, true
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lightPreprocess applies block-type-specific light smoothing only: a
// slightly stronger pass for handwriting, very light for tables to
// preserve ruling structure, light otherwise. No binarization, per spec.
func lightPreprocess(img image.Image, t card.BlockType) image.Image {
	switch t {
	case card.BlockHandwriting:
		return imaging.Blur(img, 0.8)
	case card.BlockTable:
		return imaging.Blur(img, 0.2)
	default:
		return imaging.Blur(img, 0.4)
	}
}

// polygonBoundingBox converts a detector quad-polygon to an axis-aligned
// rect, rejecting degenerate polygons (fewer than 3 points, or any
// non-finite coordinate) so callers can count them as dropped rather than
// silently emitting a placeholder box.
func polygonBoundingBox(poly []utils.Point) (card.Rect, bool) {
	if len(poly) < 3 {
		return card.Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return card.Rect{}, false
		}
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}
	w, h := int(maxX-minX), int(maxY-minY)
	if w <= 0 || h <= 0 {
		return card.Rect{}, false
	}
	return card.Rect{X: int(minX), Y: int(minY), W: w, H: h}, true
}

func joinParts(parts []string) string {
	return strings.Join(parts, " ")
}
