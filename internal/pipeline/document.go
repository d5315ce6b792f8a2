package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/cardmill/invoicecard/internal/artifact"
	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/collab"
	"github.com/cardmill/invoicecard/internal/fields"
	"github.com/cardmill/invoicecard/internal/reconcile"
	"github.com/cardmill/invoicecard/internal/tablerecon"
)

// ProcessDocument runs the full raster -> ... -> reconcile -> artifact pass
// over one document and returns its InvoiceCard. Artifacts are persisted
// under the configured sink as a side effect; the store and audit
// collaborators are notified at the document and invoice boundaries.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc card.Document) (card.InvoiceCard, error) {
	start := time.Now()
	w := artifact.New(p.sink, doc.Slug)

	srcBytes, err := os.ReadFile(doc.SourcePath) //nolint:gosec // path comes from the caller's upload handling
	if err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: read source %s: %w", doc.SourcePath, err)
	}
	ext := extOf(doc.SourcePath, doc.MIME)
	if err := w.WriteOriginal(ext, srcBytes); err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: write original: %w", err)
	}

	if err := p.audit.Append(ctx, time.Now(), "pipeline", "document.received", []byte(doc.DocID)); err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: audit document.received: %w", err)
	}
	if err := p.store.PutDocument(ctx, collab.DocumentRecord{
		DocID:    doc.DocID,
		Filename: doc.SourcePath,
		Path:     fmt.Sprintf("uploads/%s/original.%s", doc.Slug, strings.TrimPrefix(ext, ".")),
		Bytes:    int64(len(srcBytes)),
	}); err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: store document: %w", err)
	}

	pages, err := p.raster.Rasterize(doc)
	if err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: rasterize: %w", err)
	}

	results, procErr := p.processPagesParallel(ctx, w, pages)
	if procErr != nil && results == nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: process pages: %w", procErr)
	}

	var headerLines []string
	var lineItems []card.LineItem
	pageTexts := make([]string, len(results))
	for i, pg := range results {
		var buf strings.Builder
		for _, b := range pg.Blocks {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(b.FullText)
			if b.BlockType != card.BlockTable {
				headerLines = append(headerLines, strings.Split(b.FullText, "\n")...)
			}
		}
		pageTexts[i] = buf.String()
		for _, t := range pg.Tables {
			lineItems = append(lineItems, t.LineItems...)
		}
	}

	header := fields.Parse(headerLines, p.fieldTemplate())

	invoiceCard, penalizedPages := p.reconciler.Reconcile(ctx, reconcile.Input{
		Pages:     results,
		Header:    header,
		LineItems: lineItems,
		PageTexts: pageTexts,
	})

	manifest := artifact.BuildManifest(doc, penalizedPages, invoiceCard, elapsedMs(start))
	if err := w.WriteManifest(manifest); err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: write manifest: %w", err)
	}

	supplier := ""
	if invoiceCard.SupplierName != nil {
		supplier = *invoiceCard.SupplierName
	}
	date := ""
	if invoiceCard.InvoiceDate != nil {
		date = *invoiceCard.InvoiceDate
	}
	value := 0.0
	if invoiceCard.TotalAmount != nil {
		value = *invoiceCard.TotalAmount
	}
	if err := p.store.UpsertInvoice(ctx, collab.InvoiceRecord{
		DocID:      doc.DocID,
		Supplier:   supplier,
		Date:       date,
		Value:      value,
		Status:     invoiceCard.Status.String(),
		Confidence: invoiceCard.OverallConfidence,
	}); err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: upsert invoice: %w", err)
	}
	if err := p.audit.Append(ctx, time.Now(), "pipeline", "reconcile.complete", []byte(doc.DocID)); err != nil {
		return card.InvoiceCard{}, fmt.Errorf("pipeline: audit reconcile.complete: %w", err)
	}

	return invoiceCard, procErr
}

func (p *Pipeline) fieldTemplate() *fields.Template {
	if p.template == nil {
		return nil
	}
	return &fields.Template{Name: p.template.name, SupplierOverride: p.template.supplierOverride}
}

// processPage runs one rasterized page through preprocessing, layout
// detection, OCR, and table reconstruction, persisting its layout and OCR
// artifacts along the way.
func (p *Pipeline) processPage(ctx context.Context, w *artifact.Writer, page card.RasterPage) (card.PageResult, error) {
	if err := ctx.Err(); err != nil {
		return card.PageResult{}, err
	}

	f, err := os.Open(page.ImagePath) //nolint:gosec // path produced by raster.Rasterizer, not user input
	if err != nil {
		return card.PageResult{}, fmt.Errorf("open page image: %w", err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return card.PageResult{}, fmt.Errorf("decode page image: %w", err)
	}

	winner, meta := p.comparator.Choose(p.preproc, src)
	if meta.Path == card.PathEnhanced {
		var buf bytes.Buffer
		if err := png.Encode(&buf, winner); err == nil {
			if err := w.WritePreprocessedImage(page.PageIndex, buf.Bytes()); err != nil {
				return card.PageResult{}, fmt.Errorf("write preprocessed image: %w", err)
			}
		}
	}

	layout := p.layout.Detect(page.PageIndex, winner)
	if err := w.WriteLayoutPage(layout); err != nil {
		return card.PageResult{}, fmt.Errorf("write layout page: %w", err)
	}

	result := card.PageResult{PageIndex: page.PageIndex}
	result.Blocks = make([]card.BlockOCR, len(layout.Blocks))
	for i, block := range layout.Blocks {
		b := p.ocr.RecognizeBlock(winner, block, meta.Path)
		b.BlockRef = i
		result.Blocks[i] = b

		if block.Type == card.BlockTable {
			coverage := wordBoxCoverage(block.BBox, b.WordBoxes)
			table := tablerecon.Select(block.BBox, b.WordBoxes, b.FullText, p.cfg.Table.RowGapPx, p.cfg.Table.ColGapPx, coverage, p.cfg.Table.GeometricTieCoverage)
			result.Tables = append(result.Tables, table)
		}
	}

	if err := w.WriteOCRPage(page.PageIndex, result, p.cfg.Reconcile.ConfFieldMin); err != nil {
		return card.PageResult{}, fmt.Errorf("write ocr page: %w", err)
	}
	return result, nil
}

// wordBoxCoverage is the fraction of a block's area its word boxes cover,
// the signal tablerecon.Select uses to break a geometric/semantic tie.
func wordBoxCoverage(bbox card.Rect, words []card.WordBox) float64 {
	area := bbox.W * bbox.H
	if area <= 0 || len(words) == 0 {
		return 0
	}
	var covered int
	for _, wb := range words {
		covered += wb.BBox.W * wb.BBox.H
	}
	cov := float64(covered) / float64(area)
	if cov > 1 {
		cov = 1
	}
	return cov
}

func extOf(sourcePath, mime string) string {
	if i := strings.LastIndexByte(sourcePath, '.'); i >= 0 && i < len(sourcePath)-1 {
		return sourcePath[i+1:]
	}
	switch mime {
	case "application/pdf":
		return "pdf"
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	default:
		return "bin"
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
