package tablerecon

import "github.com/cardmill/invoicecard/internal/card"

// Select runs both reconstruction strategies against a table block and
// returns the stronger result as a card.TableResult. wordBoxCoverage is the
// fraction of the block's area covered by OCR word boxes, used to break
// confidence ties.
func Select(bbox card.Rect, words []card.WordBox, text string, rowGapPx, colGapPx int, wordBoxCoverage float64, tieCoverageThreshold float64) card.TableResult {
	geo := Reconstruct(words, rowGapPx, colGapPx)
	sem := ExtractFromText(text)

	useGeometric := chooseStrategy(geo, sem, wordBoxCoverage, tieCoverageThreshold)

	if useGeometric {
		return card.TableResult{
			BBox:       bbox,
			LineItems:  geo.Items,
			MethodUsed: card.ProvenanceGeometric,
			Confidence: geo.Confidence,
			CellCount:  geo.CellCount,
			RowCount:   geo.RowCount,
		}
	}
	return card.TableResult{
		BBox:       bbox,
		LineItems:  sem.Items,
		MethodUsed: card.ProvenanceSemantic,
		Confidence: sem.Confidence,
		CellCount:  0,
		RowCount:   len(sem.Items),
	}
}

// chooseStrategy compares (mean confidence, item count); ties within 1e-9
// favor geometric when coverage is high, semantic otherwise.
func chooseStrategy(geo GeometricResult, sem SemanticResult, coverage, tieThreshold float64) bool {
	const eps = 1e-9

	if geo.Confidence > sem.Confidence+eps {
		return true
	}
	if sem.Confidence > geo.Confidence+eps {
		return false
	}
	if len(geo.Items) != len(sem.Items) {
		return len(geo.Items) > len(sem.Items)
	}
	return coverage >= tieThreshold
}
