package reconcile

import (
	"context"
	"testing"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/fields"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		ConfFieldMin:           0.5,
		ConfPageMin:            0.6,
		ConfFallbackPage:       0.4,
		ConfFallbackOverall:    0.4,
		ValidationErrThreshold: 0.02,
	}
}

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }
func i64p(v int64) *int64     { return &v }

func TestApplyFieldPenaltyHalvesLowConfidenceBlocks(t *testing.T) {
	blocks := []card.BlockOCR{{Confidence: 0.4}, {Confidence: 0.9}}
	applyFieldPenalty(blocks, 0.5)
	assert.Equal(t, 0.2, blocks[0].Confidence)
	assert.Equal(t, 0.9, blocks[1].Confidence)
}

func TestComputePageConfidencePenalizesLowMean(t *testing.T) {
	blocks := []card.BlockOCR{{Confidence: 0.4}, {Confidence: 0.5}}
	mean := computePageConfidence(blocks, 0.6)
	assert.InDelta(t, 0.45*0.7, mean, 1e-9)
}

func TestReconcileOkStatusOnCleanInput(t *testing.T) {
	r := New(testConfig(), nil)

	pages := []card.PageResult{
		{
			PageIndex: 1,
			Blocks:    []card.BlockOCR{{Confidence: 0.95}, {Confidence: 0.9}},
			Tables: []card.TableResult{
				{LineItems: []card.LineItem{{Description: "Widget", LineTotal: i64p(10000)}}},
			},
		},
	}

	in := Input{
		Pages: pages,
		Header: fields.HeaderFields{
			SupplierName:  strp("Acme Foods Ltd"),
			InvoiceNumber: strp("INV-1"),
			TotalAmount:   f64p(100.00),
		},
		LineItems: []card.LineItem{{Description: "Widget", LineTotal: i64p(10000)}},
	}

	result, _ := r.Reconcile(context.Background(), in)
	assert.Equal(t, card.StatusOK, result.Status)
	assert.Empty(t, result.ValidationErrors)
}

func TestReconcileNeedsReviewOnTotalMismatch(t *testing.T) {
	r := New(testConfig(), nil)

	pages := []card.PageResult{
		{PageIndex: 1, Blocks: []card.BlockOCR{{Confidence: 0.95}}, Tables: []card.TableResult{
			{LineItems: []card.LineItem{{LineTotal: i64p(5000)}}},
		}},
	}

	in := Input{
		Pages: pages,
		Header: fields.HeaderFields{
			SupplierName:  strp("Acme Foods Ltd"),
			InvoiceNumber: strp("INV-1"),
			TotalAmount:   f64p(999.00),
		},
		LineItems: []card.LineItem{{LineTotal: i64p(5000)}},
	}

	result, _ := r.Reconcile(context.Background(), in)
	assert.Equal(t, card.StatusNeedsReview, result.Status)
	require.Len(t, result.ValidationErrors, 1)
}

func TestReconcileNeedsReviewWhenTotalMissing(t *testing.T) {
	r := New(testConfig(), nil)

	pages := []card.PageResult{
		{PageIndex: 1, Blocks: []card.BlockOCR{{Confidence: 0.95}}},
	}

	in := Input{Pages: pages, Header: fields.HeaderFields{}}

	result, _ := r.Reconcile(context.Background(), in)
	assert.Equal(t, card.StatusNeedsReview, result.Status)
	assert.Contains(t, result.ValidationErrors[0], "total_amount missing")
}

type stubFallback struct {
	result FallbackResult
	ok     bool
}

func (s stubFallback) Invoke(ctx context.Context, pageText string) (FallbackResult, bool) {
	return s.result, s.ok
}

func TestReconcileInvokesFallbackOnZeroLineItems(t *testing.T) {
	fb := stubFallback{
		ok: true,
		result: FallbackResult{
			SupplierName: strp("Acme Foods Ltd"),
			TotalAmount:  f64p(162.00),
			LineItems:    []card.LineItem{{Description: "Widget", LineTotal: i64p(16200)}},
			Confidence:   0.8,
			RawText:      "donut output",
		},
	}
	r := New(testConfig(), fb)

	pages := []card.PageResult{
		{PageIndex: 1, Blocks: []card.BlockOCR{{Confidence: 0.95}}},
	}

	in := Input{
		Pages:     pages,
		Header:    fields.HeaderFields{InvoiceNumber: strp("INV-1")},
		PageTexts: []string{"raw ocr text"},
	}

	result, pagesOut := r.Reconcile(context.Background(), in)
	require.NotNil(t, result.SupplierName)
	assert.Equal(t, "Acme Foods Ltd", *result.SupplierName)
	require.Len(t, result.LineItems, 1)
	require.NotNil(t, pagesOut[0].FallbackText)
	assert.Equal(t, "donut output", *pagesOut[0].FallbackText)
}

func TestReconcileRecordsFallbackUnavailableWhenNilCollaborator(t *testing.T) {
	r := New(testConfig(), nil)

	pages := []card.PageResult{
		{PageIndex: 1, Blocks: []card.BlockOCR{{Confidence: 0.2}}},
	}

	in := Input{Pages: pages, Header: fields.HeaderFields{}}

	_, pagesOut := r.Reconcile(context.Background(), in)
	require.Len(t, pagesOut[0].Errors, 1)
	assert.Equal(t, card.ErrFallbackUnavailable.String(), pagesOut[0].Errors[0])
}

func TestMergeHeaderFillsMissingFieldsOnly(t *testing.T) {
	h := fields.HeaderFields{SupplierName: strp("Existing Ltd")}
	fb := FallbackResult{
		SupplierName: strp("Fallback Ltd"),
		InvoiceDate:  strp("2024-01-01"),
		Confidence:   0.9,
	}

	merged := mergeHeader(h, fb)
	assert.Equal(t, "Existing Ltd", *merged.SupplierName)
	require.NotNil(t, merged.InvoiceDate)
	assert.Equal(t, "2024-01-01", *merged.InvoiceDate)
}
