// Package layout classifies a preprocessed page into typed rectangular
// blocks: a pretrained ONNX document-layout model when one is configured,
// a morphology-based fallback when it isn't or fails, and a single
// full-page block when both come up empty.
package layout

import (
	"image"
	"log/slog"
	"time"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
)

// Detector produces a PageLayout for one rasterized, preprocessed page.
type Detector struct {
	cfg config.LayoutConfig
	pr  *primary
}

// New builds a Detector. A configured model that fails to load is logged
// and treated as absent; the detector still works off the morphology
// fallback and degenerate paths.
func New(cfg config.LayoutConfig) *Detector {
	d := &Detector{cfg: cfg}
	if cfg.ModelPath == "" {
		return d
	}
	pr, err := newPrimary(cfg)
	if err != nil {
		slog.Warn("layout: primary model unavailable, using morphology fallback", "error", err)
		return d
	}
	d.pr = pr
	return d
}

// Close releases the ONNX session, if one was opened.
func (d *Detector) Close() error {
	if d.pr == nil {
		return nil
	}
	return d.pr.close()
}

// Detect runs the primary/fallback/degenerate cascade and returns a
// PageLayout with block coordinates clamped to the page.
func (d *Detector) Detect(pageIndex int, img image.Image) card.PageLayout {
	start := time.Now()
	layout := card.PageLayout{PageIndex: pageIndex}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if d.pr != nil {
		blocks, err := d.pr.detect(img)
		switch {
		case err != nil:
			slog.Warn("layout: primary inference failed, using fallback", "page", pageIndex, "error", err)
		case len(blocks) > 0:
			layout.Blocks = clampBlocks(blocks, w, h)
			layout.MethodUsed = "primary"
			finish(&layout, start)
			return layout
		}
	}

	if w > 0 && h > 0 {
		if blocks := runFallback(img, d.cfg); len(blocks) > 0 {
			layout.Blocks = clampBlocks(blocks, w, h)
			layout.MethodUsed = "fallback"
			finish(&layout, start)
			return layout
		}
	}

	conf := d.cfg.DegenerateConf
	if conf <= 0 {
		conf = 0.3
	}
	layout.Blocks = []card.LayoutBlock{{
		Type:       card.BlockBody,
		BBox:       card.Rect{X: 0, Y: 0, W: w, H: h},
		Confidence: conf,
		Source:     card.SourceDegenerate,
	}}
	layout.MethodUsed = "degenerate"
	finish(&layout, start)
	return layout
}

func finish(layout *card.PageLayout, start time.Time) {
	layout.ComputeAvgConfidence()
	layout.ProcessingMs = float64(time.Since(start).Microseconds()) / 1000
}

func clampBlocks(blocks []card.LayoutBlock, w, h int) []card.LayoutBlock {
	out := make([]card.LayoutBlock, len(blocks))
	for i, b := range blocks {
		b.BBox = clampRect(b.BBox, w, h)
		out[i] = b
	}
	return out
}
