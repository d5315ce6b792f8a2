// Package card holds the pipeline's immutable data model: Document,
// RasterPage, PreprocMeta, LayoutBlock/PageLayout, WordBox/BlockOCR,
// LineItem/TableResult, PageResult, and InvoiceCard. Every stage in
// internal/pipeline produces and consumes these types; none of them are
// mutated once a stage emits them.
package card

import "time"

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X, Y, W, H int
}

// Box returns [x,y,w,h] the way artifact JSON encodes it.
func (r Rect) Box() [4]int { return [4]int{r.X, r.Y, r.W, r.H} }

// Contains reports whether r lies fully inside [0,width)x[0,height).
func (r Rect) Contains(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 &&
		r.X+r.W <= width && r.Y+r.H <= height
}

// Point is a pixel coordinate, used for polygons.
type Point struct{ X, Y float64 }

// Document is the input envelope; a Document exclusively owns its RasterPages.
type Document struct {
	DocID      string `json:"doc_id"`
	SourcePath string `json:"source_path"`
	MIME       string `json:"mime"`
	PageCount  int    `json:"page_count"`
	Slug       string `json:"slug"`
}

// RasterPage is one rendered page.
type RasterPage struct {
	PageIndex  int    `json:"page_index"` // 1-based
	WidthPx    int    `json:"width_px"`
	HeightPx   int    `json:"height_px"`
	DensityDPI int    `json:"density_dpi"`
	ImagePath  string `json:"image_path"`
}

// PreprocMeta traces the preprocessing stage for one page.
type PreprocMeta struct {
	Steps    []string    `json:"steps"`
	Warnings []string    `json:"warnings"`
	Path     PreprocPath `json:"path"`
}

// LayoutBlock is one region of interest on a page.
type LayoutBlock struct {
	Type       BlockType   `json:"type"`
	BBox       Rect        `json:"bbox"`
	Confidence float64     `json:"confidence"`
	Source     BlockSource `json:"source"`
}

// PageLayout is the layout result for one page.
type PageLayout struct {
	PageIndex     int           `json:"page_num"`
	Blocks        []LayoutBlock `json:"blocks"`
	MethodUsed    string        `json:"method_used"`
	AvgConfidence float64       `json:"confidence_avg"`
	ProcessingMs  float64       `json:"processing_time"`
}

// ComputeAvgConfidence implements the documented invariant:
// avg_confidence = mean(block.confidence), or 0 when Blocks is empty.
func (pl *PageLayout) ComputeAvgConfidence() {
	if len(pl.Blocks) == 0 {
		pl.AvgConfidence = 0
		return
	}
	var sum float64
	for _, b := range pl.Blocks {
		sum += b.Confidence
	}
	pl.AvgConfidence = sum / float64(len(pl.Blocks))
}

// WordBox is one recognized word with its confidence and geometry.
type WordBox struct {
	Text       string  `json:"text"`
	BBox       Rect    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// BlockOCR is the OCR result for one block.
type BlockOCR struct {
	BlockRef           int         `json:"block_ref"` // index into PageLayout.Blocks
	BlockType          BlockType   `json:"type"`
	BBox               Rect        `json:"bbox"`
	FullText           string      `json:"ocr_text"`
	Confidence         float64     `json:"confidence"`
	MethodUsed         OcrMethod   `json:"method_used"`
	WordBoxes          []WordBox   `json:"word_blocks,omitempty"` // present iff BlockType == table
	PSMHint            string      `json:"psm_hint,omitempty"`
	PreprocessingPath  PreprocPath `json:"preprocessing_path"`
	ProcessingMs       float64     `json:"processing_time"`
	DroppedWordEntries int         `json:"dropped_word_entries,omitempty"` // malformed recognizer entries skipped rather than surfaced
}

// LineItem is one row of a reconstructed table.
type LineItem struct {
	Description string     `json:"description"`
	Quantity    *float64   `json:"quantity,omitempty"`
	UnitPrice   *int64     `json:"unit_price,omitempty"` // minor units (e.g. pence) when currency known
	LineTotal   *int64     `json:"line_total,omitempty"`
	RawAmounts  bool       `json:"raw_amounts,omitempty"` // true when UnitPrice/LineTotal carry raw*100 scaled decimal, not a real currency minor unit
	VAT         *float64   `json:"vat,omitempty"`
	Confidence  float64    `json:"confidence"`
	RowIndex    int        `json:"row_index"`
	Provenance  Provenance `json:"provenance"`
}

// TableResult is the per-table-block extraction result.
type TableResult struct {
	BBox         Rect       `json:"bbox"`
	LineItems    []LineItem `json:"line_items"`
	MethodUsed   Provenance `json:"method_used"`
	Confidence   float64    `json:"confidence"`
	FallbackUsed bool       `json:"fallback_used"`
	CellCount    int        `json:"cell_count"`
	RowCount     int        `json:"row_count"`
}

// PageResult unions layout+OCR+tables for one page.
type PageResult struct {
	PageIndex    int            `json:"page_num"`
	Blocks       []BlockOCR     `json:"blocks"`
	Tables       []TableResult  `json:"tables,omitempty"`
	Confidence   float64        `json:"confidence"`
	Errors       []string       `json:"errors,omitempty"`
	FallbackText *string        `json:"fallback_text,omitempty"`
	DonutData    map[string]any `json:"donut_data,omitempty"`
	LLMData      map[string]any `json:"llm_data,omitempty"`
}

// InvoiceCard is the validated, final pipeline output.
type InvoiceCard struct {
	SupplierName      *string    `json:"supplier_name,omitempty"`
	InvoiceNumber     *string    `json:"invoice_number,omitempty"`
	InvoiceDate       *string    `json:"invoice_date,omitempty"` // ISO-8601
	Currency          *string    `json:"currency,omitempty"`
	Subtotal          *float64   `json:"subtotal,omitempty"`
	TaxAmount         *float64   `json:"tax_amount,omitempty"`
	TotalAmount       *float64   `json:"total_amount,omitempty"`
	LineItems         []LineItem `json:"line_items,omitempty"`
	OverallConfidence float64    `json:"overall_confidence"`
	Status            Status     `json:"status"`
	ValidationErrors  []string   `json:"validation_errors,omitempty"`
	TemplateMatch     *string    `json:"template_match,omitempty"`
	GeneratedAt       time.Time  `json:"generated_at"`
}
