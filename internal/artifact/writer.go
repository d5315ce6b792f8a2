package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cardmill/invoicecard/internal/card"
)

// Writer assembles and persists one document's artifact set under
// <sink root>/uploads/<slug>/, matching the exact filenames and JSON
// shapes spec.md documents: original.<ext>, pages/page_NNN(.pre).png,
// layout_page_NNN.json, ocr_page_NNN.json, ocr_output.json.
type Writer struct {
	sink ArtifactSink
	slug string
}

func New(sink ArtifactSink, slug string) *Writer {
	return &Writer{sink: sink, slug: slug}
}

func (w *Writer) docPath(name string) string {
	return fmt.Sprintf("uploads/%s/%s", w.slug, name)
}

func originalFilename(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return "original." + ext
}

func pageImageFilename(pageIndex int) string {
	return fmt.Sprintf("pages/page_%03d.png", pageIndex)
}

func pagePreImageFilename(pageIndex int) string {
	return fmt.Sprintf("pages/page_%03d.pre.png", pageIndex)
}

func layoutPageFilename(pageIndex int) string {
	return fmt.Sprintf("layout_page_%03d.json", pageIndex)
}

func ocrPageFilename(pageIndex int) string {
	return fmt.Sprintf("ocr_page_%03d.json", pageIndex)
}

const manifestFilename = "ocr_output.json"

func tableDebugFilename(slug string, pageIndex int) string {
	return fmt.Sprintf("table_debug_%s_%03d.txt", slug, pageIndex)
}

// WriteOriginal persists the untouched input document bytes as
// original.<ext>.
func (w *Writer) WriteOriginal(ext string, data []byte) error {
	return w.sink.Write(w.docPath(originalFilename(ext)), data)
}

// WritePageImage persists one rasterized page.
func (w *Writer) WritePageImage(pageIndex int, png []byte) error {
	return w.sink.Write(w.docPath(pageImageFilename(pageIndex)), png)
}

// WritePreprocessedImage persists the preprocessed version of one page.
func (w *Writer) WritePreprocessedImage(pageIndex int, png []byte) error {
	return w.sink.Write(w.docPath(pagePreImageFilename(pageIndex)), png)
}

// WriteLayoutPage persists a page's layout result. card.PageLayout's own
// json tags already match layout_page_NNN.json's documented shape field
// for field, so it's marshaled directly with no intermediate wire type.
func (w *Writer) WriteLayoutPage(layout card.PageLayout) error {
	return w.writeJSON(layoutPageFilename(layout.PageIndex), layout)
}

// ocrBlockDoc is one block entry inside ocr_page_NNN.json. field_count and
// line_count are derived from the recognized text, the same way the
// original extractor's per-block summary counted tokens and newline
// breaks — spec.md names both fields but doesn't define their source.
type ocrBlockDoc struct {
	Type           card.BlockType `json:"type"`
	BBox           card.Rect      `json:"bbox"`
	OCRText        string         `json:"ocr_text"`
	Confidence     float64        `json:"confidence"`
	MethodUsed     card.OcrMethod `json:"method_used"`
	ProcessingTime float64        `json:"processing_time"`
	FieldCount     int            `json:"field_count"`
	LineCount      int            `json:"line_count"`
	WordBlocks     []card.WordBox `json:"word_blocks,omitempty"`
}

// ocrPageDoc mirrors ocr_page_NNN.json's documented wire shape.
type ocrPageDoc struct {
	PageNum             int              `json:"page_num"`
	Blocks              []ocrBlockDoc    `json:"blocks"`
	ProcessingTime      float64          `json:"processing_time"`
	MethodUsed          string           `json:"method_used"`
	ConfidenceAvg       float64          `json:"confidence_avg"`
	LowConfidenceBlocks int              `json:"low_confidence_blocks"`
	PreprocessingPath   card.PreprocPath `json:"preprocessing_path"`
	Errors              []string         `json:"errors"`
}

// WriteOCRPage persists a page's OCR result. confFieldMin is the same
// per-field confidence floor internal/reconcile penalizes against
// (config.ReconcileConfig.ConfFieldMin), used here only to count
// low_confidence_blocks.
func (w *Writer) WriteOCRPage(pageIndex int, page card.PageResult, confFieldMin float64) error {
	doc := ocrPageDoc{
		PageNum:           pageIndex,
		ConfidenceAvg:     page.Confidence,
		PreprocessingPath: pageOCRPath(page.Blocks),
		Errors:            page.Errors,
	}
	if doc.Errors == nil {
		doc.Errors = []string{}
	}

	doc.Blocks = make([]ocrBlockDoc, len(page.Blocks))
	var totalMs float64
	methodCounts := map[card.OcrMethod]int{}
	for i, b := range page.Blocks {
		doc.Blocks[i] = ocrBlockDoc{
			Type:           b.BlockType,
			BBox:           b.BBox,
			OCRText:        b.FullText,
			Confidence:     b.Confidence,
			MethodUsed:     b.MethodUsed,
			ProcessingTime: b.ProcessingMs,
			FieldCount:     len(strings.Fields(b.FullText)),
			LineCount:      countLines(b.FullText),
			WordBlocks:     b.WordBoxes,
		}
		totalMs += b.ProcessingMs
		methodCounts[b.MethodUsed]++
		if b.Confidence < confFieldMin {
			doc.LowConfidenceBlocks++
		}
	}
	doc.ProcessingTime = totalMs
	doc.MethodUsed = dominantMethod(methodCounts).String()

	return w.writeJSON(ocrPageFilename(pageIndex), doc)
}

func countLines(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(strings.Split(strings.TrimRight(text, "\n"), "\n"))
}

func pageOCRPath(blocks []card.BlockOCR) card.PreprocPath {
	if len(blocks) == 0 {
		return card.PathMinimal
	}
	return blocks[0].PreprocessingPath
}

// dominantMethod picks the majority method_used for a page, preferring
// primary over secondary over degenerate on a tie, since a page with no
// clear majority is more informative reported as its strongest tier.
func dominantMethod(counts map[card.OcrMethod]int) card.OcrMethod {
	best := card.OcrDegenerate
	bestCount := -1
	for _, m := range []card.OcrMethod{card.OcrPrimary, card.OcrSecondary, card.OcrDegenerate} {
		if counts[m] > bestCount {
			best = m
			bestCount = counts[m]
		}
	}
	return best
}

// PageArtifactPaths is the set of filenames one page contributed, relative
// to the document's own artifact directory.
type PageArtifactPaths struct {
	Image      string `json:"image"`
	PreImage   string `json:"preprocessed_image,omitempty"`
	LayoutJSON string `json:"layout_json"`
	OCRJSON    string `json:"ocr_json"`
}

// ManifestPageDoc is one page's entry inside ocr_output.json.
type ManifestPageDoc struct {
	PageNum       int               `json:"page_num"`
	Confidence    float64           `json:"confidence"`
	ArtifactPaths PageArtifactPaths `json:"artifact_paths"`
	FallbackText  *string           `json:"fallback_text,omitempty"`
	FallbackData  map[string]any    `json:"fallback_data,omitempty"`
	Errors        []string          `json:"errors,omitempty"`
}

// ManifestDoc is ocr_output.json's full shape: the final InvoiceCard plus
// per-page confidences, artifact paths, and elapsed time.
type ManifestDoc struct {
	DocID       string            `json:"doc_id"`
	Slug        string            `json:"slug"`
	PageCount   int               `json:"page_count"`
	Pages       []ManifestPageDoc `json:"pages"`
	InvoiceCard card.InvoiceCard  `json:"invoice_card"`
	ElapsedMs   float64           `json:"elapsed_ms"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// BuildManifest assembles ocr_output.json's contents from the reconciled
// pages and final card. Page-order is preserved exactly as given, per the
// documented invariant that overall confidence and the manifest reflect
// page order, not completion order.
func BuildManifest(doc card.Document, pages []card.PageResult, result card.InvoiceCard, elapsedMs float64) ManifestDoc {
	m := ManifestDoc{
		DocID:       doc.DocID,
		Slug:        doc.Slug,
		PageCount:   len(pages),
		InvoiceCard: result,
		ElapsedMs:   elapsedMs,
		GeneratedAt: result.GeneratedAt,
	}
	m.Pages = make([]ManifestPageDoc, len(pages))
	for i, p := range pages {
		paths := PageArtifactPaths{
			Image:      pageImageFilename(p.PageIndex),
			LayoutJSON: layoutPageFilename(p.PageIndex),
			OCRJSON:    ocrPageFilename(p.PageIndex),
		}
		if pageHasPreprocessedCopy(p) {
			paths.PreImage = pagePreImageFilename(p.PageIndex)
		}
		m.Pages[i] = ManifestPageDoc{
			PageNum:       p.PageIndex,
			Confidence:    p.Confidence,
			ArtifactPaths: paths,
			FallbackText:  p.FallbackText,
			FallbackData:  p.DonutData,
			Errors:        p.Errors,
		}
	}
	return m
}

// pageHasPreprocessedCopy reports whether a page went through the
// Enhanced path, the only one that writes a separate .pre.png — the
// Minimal path reuses the raw page image directly.
func pageHasPreprocessedCopy(p card.PageResult) bool {
	for _, b := range p.Blocks {
		if b.PreprocessingPath == card.PathEnhanced {
			return true
		}
	}
	return false
}

// WriteManifest persists the document's single-file summary.
func (w *Writer) WriteManifest(m ManifestDoc) error {
	return w.writeJSON(manifestFilename, m)
}

// WriteTableDebug persists a human-readable dump of one table block's
// reconstructed row structure, grounded on the original extractor's
// log_table_structure. Only called when a deployment enables the debug
// flag; not part of the required artifact set.
func (w *Writer) WriteTableDebug(pageIndex int, rows [][]string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Table structure for page %d, slug %s\n", pageIndex, w.slug)
	fmt.Fprintf(&b, "Total rows: %d\n", len(rows))
	b.WriteString(strings.Repeat("=", 50) + "\n")
	for i, row := range rows {
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, strings.Join(row, " | "))
	}
	b.WriteString(strings.Repeat("=", 50) + "\n")

	return w.sink.Write(w.docPath(tableDebugFilename(w.slug, pageIndex)), []byte(b.String()))
}

func (w *Writer) writeJSON(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: marshal %s: %w", name, err)
	}
	return w.sink.Write(w.docPath(name), b)
}
