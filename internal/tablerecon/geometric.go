// Package tablerecon reconstructs ordered line items from a table block's
// OCR output. Two independent strategies run over the same block — geometric
// clustering of word boxes and semantic regex parsing of the block's raw
// text — and the reconciler picks the stronger result.
package tablerecon

import (
	"sort"
	"strings"

	"github.com/cardmill/invoicecard/internal/card"
)

// Cell is one spatially-clustered group of words inside a table row.
type Cell struct {
	BBox       card.Rect
	Text       string
	Confidence float64
}

// Row is a left-to-right ordered set of cells sharing a y-cluster.
type Row struct {
	Cells []Cell
}

var headerTokens = map[string]bool{
	"item": true, "description": true, "product": true, "qty": true,
	"quantity": true, "unit": true, "price": true, "total": true, "amount": true,
}

// ClusterRows groups word boxes into rows by y-center, opening a new row
// whenever the gap to the previous word's y-center exceeds rowGapPx, then
// groups each row's words into cells, opening a new cell whenever the
// horizontal gap between a word's left edge and the right edge of the words
// before it exceeds colGapPx.
func ClusterRows(words []card.WordBox, rowGapPx, colGapPx int) []Row {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]card.WordBox, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return yCenter(sorted[i].BBox) < yCenter(sorted[j].BBox)
	})

	var rows [][]card.WordBox
	var current []card.WordBox
	lastY := -1
	for _, w := range sorted {
		y := yCenter(w.BBox)
		if lastY == -1 || abs(y-lastY) > rowGapPx {
			if len(current) > 0 {
				rows = append(rows, current)
			}
			current = []card.WordBox{w}
		} else {
			current = append(current, w)
		}
		lastY = y
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}

	result := make([]Row, 0, len(rows))
	for _, rowWords := range rows {
		sort.SliceStable(rowWords, func(i, j int) bool { return rowWords[i].BBox.X < rowWords[j].BBox.X })

		var cells []Cell
		var cellWords []card.WordBox
		lastRight := -1
		flush := func() {
			if len(cellWords) == 0 {
				return
			}
			cells = append(cells, mergeCell(cellWords))
			cellWords = nil
		}
		for _, w := range rowWords {
			if lastRight == -1 || w.BBox.X-lastRight > colGapPx {
				flush()
			}
			cellWords = append(cellWords, w)
			if right := w.BBox.X + w.BBox.W; right > lastRight {
				lastRight = right
			}
		}
		flush()

		result = append(result, Row{Cells: cells})
	}
	return result
}

func mergeCell(words []card.WordBox) Cell {
	texts := make([]string, len(words))
	minX, minY := words[0].BBox.X, words[0].BBox.Y
	maxX, maxY := words[0].BBox.X+words[0].BBox.W, words[0].BBox.Y+words[0].BBox.H
	var confSum float64
	for i, w := range words {
		texts[i] = w.Text
		confSum += w.Confidence
		if w.BBox.X < minX {
			minX = w.BBox.X
		}
		if w.BBox.Y < minY {
			minY = w.BBox.Y
		}
		if w.BBox.X+w.BBox.W > maxX {
			maxX = w.BBox.X + w.BBox.W
		}
		if w.BBox.Y+w.BBox.H > maxY {
			maxY = w.BBox.Y + w.BBox.H
		}
	}
	return Cell{
		BBox:       card.Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY},
		Text:       strings.Join(texts, " "),
		Confidence: confSum / float64(len(words)),
	}
}

func yCenter(r card.Rect) int { return r.Y + r.H/2 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// isHeaderRow reports whether a majority of a row's cell texts look like
// table header tokens (item/description/qty/price/total/...).
func isHeaderRow(r Row) bool {
	if len(r.Cells) == 0 {
		return false
	}
	hits := 0
	for _, c := range r.Cells {
		for _, tok := range strings.Fields(strings.ToLower(c.Text)) {
			if headerTokens[strings.Trim(tok, ".:")] {
				hits++
				break
			}
		}
	}
	return hits*2 >= len(r.Cells)
}

// GeometricResult is the outcome of clustering a table block's words into
// rows/cells and interpreting the data rows as line items.
type GeometricResult struct {
	Items        []card.LineItem
	RowCount     int
	CellCount    int
	Confidence   float64
	HeaderRowIdx int // -1 when no header row was detected
}

// Reconstruct clusters a table block's word boxes into rows and interprets
// every row after the detected header as a LineItem.
func Reconstruct(words []card.WordBox, rowGapPx, colGapPx int) GeometricResult {
	rows := ClusterRows(words, rowGapPx, colGapPx)

	headerIdx := -1
	for i, r := range rows {
		if isHeaderRow(r) {
			headerIdx = i
			break
		}
	}

	dataRows := rows
	if headerIdx >= 0 {
		dataRows = rows[headerIdx+1:]
	}

	items := make([]card.LineItem, 0, len(dataRows))
	cellCount := 0
	var confSum float64
	for i, r := range dataRows {
		cellCount += len(r.Cells)
		item, ok := interpretRow(r, i)
		if !ok {
			continue
		}
		confSum += item.Confidence
		items = append(items, item)
	}

	var avgConf float64
	if len(items) > 0 {
		avgConf = confSum / float64(len(items))
	}

	return GeometricResult{
		Items:        items,
		RowCount:     len(rows),
		CellCount:    cellCount,
		Confidence:   avgConf,
		HeaderRowIdx: headerIdx,
	}
}

// interpretRow assigns a data row's cells to description/quantity/unit_price
// /line_total by the number of numeric cells: one is the line_total; two are
// quantity and line_total; three or more are quantity, unit_price (the
// second) and line_total (the last). Currency symbols are stripped before
// parsing and do not affect which field a number fills; every non-numeric
// cell concatenates into description.
func interpretRow(r Row, rowIndex int) (card.LineItem, bool) {
	if len(r.Cells) == 0 {
		return card.LineItem{}, false
	}

	var descParts []string
	var numbers []float64
	var confSum float64

	for _, c := range r.Cells {
		confSum += c.Confidence
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		if v, ok := parseAmount(text); ok {
			numbers = append(numbers, v)
			continue
		}
		descParts = append(descParts, text)
	}

	if len(descParts) == 0 {
		return card.LineItem{}, false
	}

	item := card.LineItem{
		Description: strings.Join(descParts, " "),
		Confidence:  confSum / float64(len(r.Cells)),
		RowIndex:    rowIndex,
		Provenance:  card.ProvenanceGeometric,
	}

	switch len(numbers) {
	case 0:
	case 1:
		v := numbers[0]
		item.LineTotal = toMinorUnits(v)
		item.RawAmounts = true
	case 2:
		q := numbers[0]
		item.Quantity = &q
		item.LineTotal = toMinorUnits(numbers[1])
		item.RawAmounts = true
	default:
		q := numbers[0]
		item.Quantity = &q
		item.UnitPrice = toMinorUnits(numbers[1])
		item.LineTotal = toMinorUnits(numbers[len(numbers)-1])
		item.RawAmounts = true
	}

	return item, true
}

func toMinorUnits(v float64) *int64 {
	minor := int64(v*100 + 0.5)
	return &minor
}
