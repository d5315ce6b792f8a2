// Package pipeline wires the document-understanding stages together:
// raster -> preprocess -> layout -> OCR -> table reconstruction -> field
// normalization -> reconciliation -> artifact persistence. Builder follows
// the same fluent-construction idiom the detector/recognizer pipeline used,
// generalized to a full Document -> InvoiceCard pass over every page.
package pipeline

import (
	"context"
	"fmt"

	"github.com/cardmill/invoicecard/internal/artifact"
	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/collab"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/fallback"
	"github.com/cardmill/invoicecard/internal/ocrengine"
	"github.com/cardmill/invoicecard/internal/preprocess"
	"github.com/cardmill/invoicecard/internal/raster"
	"github.com/cardmill/invoicecard/internal/reconcile"

	layoutpkg "github.com/cardmill/invoicecard/internal/layout"
)

// Builder constructs a Pipeline with fluent configuration, following the
// same construction idiom the OCR-model pipeline used.
type Builder struct {
	cfg      config.Config
	store    collab.Store
	audit    collab.Audit
	template *fieldTemplate
	progress ProgressCallback
}

// NewBuilder creates a new pipeline builder from a loaded application
// configuration.
func NewBuilder(cfg config.Config) *Builder {
	return &Builder{cfg: cfg, store: collab.NopStore{}, audit: collab.NopAudit{}}
}

// WithStore overrides the document/invoice store collaborator. The default
// is a no-op store, suitable for CLI one-shot processing.
func (b *Builder) WithStore(s collab.Store) *Builder {
	if s != nil {
		b.store = s
	}
	return b
}

// WithAudit overrides the audit-log collaborator. The default discards
// every entry.
func (b *Builder) WithAudit(a collab.Audit) *Builder {
	if a != nil {
		b.audit = a
	}
	return b
}

// WithModelsDir overrides the models directory used by the layout detector
// and OCR engine's ONNX sessions.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	return b
}

// WithParallelWorkers sets the number of pages processed concurrently.
func (b *Builder) WithParallelWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Parallel.MaxWorkers = n
	}
	return b
}

// WithProgressCallback sets the progress callback for page-parallel runs.
func (b *Builder) WithProgressCallback(cb ProgressCallback) *Builder {
	b.progress = cb
	return b
}

// Config returns a copy of the current configuration.
func (b *Builder) Config() config.Config { return b.cfg }

// fieldTemplate is the builder-local mirror of fields.Template, kept here so
// this package doesn't need to import internal/fields just to expose a
// setter; Build() converts it at construction time.
type fieldTemplate struct {
	name             string
	supplierOverride string
}

// WithSupplierTemplate biases field extraction toward a known supplier
// layout, overriding the parsed supplier name outright.
func (b *Builder) WithSupplierTemplate(name, supplierOverride string) *Builder {
	b.template = &fieldTemplate{name: name, supplierOverride: supplierOverride}
	return b
}

// Pipeline wires together every stage collaborator needed to turn a
// card.Document into a card.InvoiceCard.
type Pipeline struct {
	cfg config.Config

	raster      *raster.Rasterizer
	preproc     *preprocess.Preprocessor
	comparator  *preprocess.Comparator
	layout      *layoutpkg.Detector
	ocr         *ocrengine.Engine
	reconciler  *reconcile.Reconciler
	fallbackCo  *fallback.Coordinator
	sink        artifact.ArtifactSink
	store       collab.Store
	audit       collab.Audit
	template    *fieldTemplate
	parallelCfg ParallelConfig
}

// Build initializes every stage collaborator. The OCR engine and layout
// detector degrade gracefully when their ONNX models are unavailable (see
// ocrengine.New/layout.New); Build only fails when a required collaborator
// (the fallback coordinator's retry queue) cannot be constructed.
func (b *Builder) Build() (*Pipeline, error) {
	ocrEngine := ocrengine.New(b.cfg.OCR)

	fb, err := fallback.NewCoordinator(b.cfg.Fallback, fallback.LLMContext{})
	if err != nil {
		return nil, fmt.Errorf("pipeline: build fallback coordinator: %w", err)
	}

	p := &Pipeline{
		cfg:        b.cfg,
		raster:     raster.New(b.cfg.Raster),
		preproc:    preprocess.New(b.cfg.Preprocess),
		comparator: preprocess.NewComparator(b.cfg.Preprocess, ocrEngine),
		layout:     layoutpkg.New(b.cfg.Layout),
		ocr:        ocrEngine,
		reconciler: reconcile.New(b.cfg.Reconcile, fallbackAdapter{fb}),
		fallbackCo: fb,
		sink:       &artifact.DiskSink{Root: b.cfg.Raster.ArtifactRoot},
		store:      b.store,
		audit:      b.audit,
		template:   b.template,
		parallelCfg: ParallelConfig{
			MaxWorkers:       b.cfg.Parallel.MaxWorkers,
			BatchSize:        b.cfg.Parallel.BatchSize,
			ProgressCallback: b.progress,
		},
	}
	return p, nil
}

// Close releases every stage collaborator holding native resources (ONNX
// sessions, the Tesseract client factory, the fallback retry queue).
func (p *Pipeline) Close() error {
	var firstErr error
	if p.layout != nil {
		if err := p.layout.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.ocr != nil {
		if err := p.ocr.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.fallbackCo != nil {
		p.fallbackCo.Close()
	}
	return firstErr
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// fallbackAdapter bridges fallback.Coordinator's richer InvokeImage contract
// to the narrower reconcile.Fallback interface the reconciler depends on,
// converting fallback.FallbackResult's LineItem slice to card.LineItem.
type fallbackAdapter struct {
	c *fallback.Coordinator
}

func (a fallbackAdapter) Invoke(ctx context.Context, pageText string) (reconcile.FallbackResult, bool) {
	res, ok := a.c.Invoke(ctx, pageText)
	if !ok {
		return reconcile.FallbackResult{}, false
	}
	return reconcile.FallbackResult{
		SupplierName:  res.SupplierName,
		InvoiceNumber: res.InvoiceNumber,
		InvoiceDate:   res.InvoiceDate,
		Currency:      res.Currency,
		Subtotal:      res.Subtotal,
		TaxAmount:     res.TaxAmount,
		TotalAmount:   res.TotalAmount,
		LineItems:     convertFallbackLineItems(res.LineItems),
		Confidence:    res.Confidence,
		RawText:       res.RawText,
		RawData:       res.RawData,
	}, true
}

func convertFallbackLineItems(items []fallback.LineItem) []card.LineItem {
	out := make([]card.LineItem, len(items))
	for i, it := range items {
		out[i] = card.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
			Provenance:  card.ProvenanceSemantic,
		}
	}
	return out
}
