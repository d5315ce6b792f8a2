package layout

import (
	"image"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
)

const inkThreshold = 0.35

// runFallback implements the OpenCV-free fallback cascade: horizontal-line
// detection to find table bands, connected-region detection classified by
// vertical position for the remainder, and a thirds split if neither finds
// anything.
func runFallback(img image.Image, cfg config.LayoutConfig) []card.LayoutBlock {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	ink := inkMap(img)
	bands := detectTableBands(ink, w, h)

	var blocks []card.LayoutBlock
	for _, band := range bands {
		blocks = append(blocks, card.LayoutBlock{
			Type:       card.BlockTable,
			BBox:       clampRect(band, w, h),
			Confidence: 0.5,
			Source:     card.SourceFallback,
		})
	}

	blocks = append(blocks, detectNonTableRegions(ink, w, h, bands, cfg)...)

	if len(blocks) == 0 {
		blocks = splitThirds(w, h)
	}
	return blocks
}

// inkMap converts the page to a 0..1 grid where dark (ink) pixels score
// high, mirroring the Preprocessor's foreground-thresholding convention.
func inkMap(img image.Image) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := float32(r>>8) / 255
			out[y*w+x] = 1 - lum
		}
	}
	return out
}

// detectTableBands runs a horizontal-morphology opening with a kernel of
// width w/4 to isolate long horizontal strokes, then looks for rows that
// are mostly covered by such a stroke. Three or more of those rows are
// taken as ruling-line separators bounding a single table band.
func detectTableBands(ink []float32, w, h int) []card.Rect {
	kernel := w / 4
	if kernel < 3 {
		kernel = 3
	}
	opened := horizontalOpen(ink, w, h, kernel)

	var separatorRows []int
	for y := 0; y < h; y++ {
		covered := 0
		for x := 0; x < w; x++ {
			if opened[y*w+x] > 0.5 {
				covered++
			}
		}
		if float64(covered) > 0.5*float64(w) {
			separatorRows = append(separatorRows, y)
		}
	}

	separators := mergeAdjacent(separatorRows)
	if len(separators) < 3 {
		return nil
	}

	return []card.Rect{{
		X: 0,
		Y: separators[0],
		W: w,
		H: separators[len(separators)-1] - separators[0] + 1,
	}}
}

// mergeAdjacent collapses runs of consecutive row indices into their first
// member, so a single thick ruling line counts once.
func mergeAdjacent(rows []int) []int {
	if len(rows) == 0 {
		return nil
	}
	merged := []int{rows[0]}
	for i := 1; i < len(rows); i++ {
		if rows[i]-rows[i-1] > 1 {
			merged = append(merged, rows[i])
		}
	}
	return merged
}

// horizontalOpen erodes then dilates with a 1xk horizontal kernel. Unlike
// internal/detector's square ApplyMorphologicalOperation, this is
// anisotropic by design: it survives long horizontal strokes while
// collapsing vertical ones, which is what ruling-line detection needs.
func horizontalOpen(values []float32, w, h, kernel int) []float32 {
	eroded := horizontalPass(values, w, h, kernel, true)
	return horizontalPass(eroded, w, h, kernel, false)
}

func horizontalPass(values []float32, w, h, kernel int, erode bool) []float32 {
	half := kernel / 2
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var best float32
			if erode {
				best = 1
			}
			for k := -half; k <= half; k++ {
				nx := x + k
				if nx < 0 || nx >= w {
					if erode {
						best = 0
					}
					continue
				}
				v := values[y*w+nx]
				if erode {
					if v < best {
						best = v
					}
				} else if v > best {
					best = v
				}
			}
			out[y*w+x] = best
		}
	}
	return out
}

// detectNonTableRegions finds connected ink regions outside any table band
// and classifies each by the vertical position of its center: the top 30%
// of the page is header, the bottom 30% is footer, the rest is body.
func detectNonTableRegions(ink []float32, w, h int, bands []card.Rect, cfg config.LayoutConfig) []card.LayoutBlock {
	masked := make([]float32, len(ink))
	copy(masked, ink)
	for _, band := range bands {
		for y := band.Y; y < band.Y+band.H && y < h; y++ {
			for x := band.X; x < band.X+band.W && x < w; x++ {
				masked[y*w+x] = 0
			}
		}
	}

	var blocks []card.LayoutBlock
	for _, r := range extractRegions(masked, w, h, inkThreshold) {
		rect := clampRect(card.Rect{X: r.bbox.minX, Y: r.bbox.minY, W: r.bbox.maxX - r.bbox.minX + 1, H: r.bbox.maxY - r.bbox.minY + 1}, w, h)
		if rect.W*rect.H < cfg.MinRegionSize {
			continue
		}
		centerY := rect.Y + rect.H/2
		blockType := card.BlockBody
		switch {
		case centerY < int(0.3*float64(h)):
			blockType = card.BlockHeader
		case centerY > int(0.7*float64(h)):
			blockType = card.BlockFooter
		}
		blocks = append(blocks, card.LayoutBlock{
			Type:       blockType,
			BBox:       rect,
			Confidence: float64(r.meanScore),
			Source:     card.SourceFallback,
		})
	}
	return blocks
}

// splitThirds is the last resort within the fallback cascade: three equal
// horizontal bands labeled header/body/footer.
func splitThirds(w, h int) []card.LayoutBlock {
	third := h / 3
	if third <= 0 {
		third = h
	}
	return []card.LayoutBlock{
		{Type: card.BlockHeader, BBox: card.Rect{X: 0, Y: 0, W: w, H: third}, Confidence: 0.4, Source: card.SourceFallback},
		{Type: card.BlockBody, BBox: card.Rect{X: 0, Y: third, W: w, H: h - 2*third}, Confidence: 0.4, Source: card.SourceFallback},
		{Type: card.BlockFooter, BBox: card.Rect{X: 0, Y: h - third, W: w, H: third}, Confidence: 0.4, Source: card.SourceFallback},
	}
}
