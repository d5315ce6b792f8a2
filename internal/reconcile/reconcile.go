// Package reconcile assembles the final InvoiceCard from a document's page
// results: it applies confidence penalties, decides whether Donut/LLM
// fallback assistance is warranted, merges any fallback output, then
// validates computed totals against extracted ones to pick a status.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/fields"
)

// FallbackResult is what a Donut/LLM collaborator reports back for one
// page, already normalized to the card schema. A field left nil means the
// collaborator did not supply it.
type FallbackResult struct {
	SupplierName, InvoiceNumber, InvoiceDate, Currency *string
	Subtotal, TaxAmount, TotalAmount                   *float64
	LineItems                                          []card.LineItem
	Confidence                                         float64
	RawText                                            string
	RawData                                            map[string]any
}

// Fallback is the narrow interface the reconciler uses to invoke external
// assistance. internal/fallback implements it; tests can stub it.
type Fallback interface {
	Invoke(ctx context.Context, pageText string) (FallbackResult, bool)
}

// Reconciler owns the confidence thresholds and the optional fallback
// collaborator used to assemble InvoiceCards from page results.
type Reconciler struct {
	cfg      config.ReconcileConfig
	fallback Fallback
}

// New builds a Reconciler. fallback may be nil, in which case the fallback
// gate degrades to FallbackUnavailable without aborting the document.
func New(cfg config.ReconcileConfig, fallback Fallback) *Reconciler {
	return &Reconciler{cfg: cfg, fallback: fallback}
}

// Input bundles everything the reconciler needs to assemble one document's
// InvoiceCard: the per-page results (mutated in place with penalties
// applied), the header fields already parsed from non-table blocks, and the
// line items already reconstructed from every table block across pages.
type Input struct {
	Pages     []card.PageResult
	Header    fields.HeaderFields
	LineItems []card.LineItem
	PageTexts []string // per-page concatenated text, for the fallback call
}

// Reconcile applies field- and page-level confidence penalties, invokes the
// fallback gate where warranted, merges any fallback output, and returns the
// validated InvoiceCard alongside the penalized pages (for manifest
// writing).
func (r *Reconciler) Reconcile(ctx context.Context, in Input) (card.InvoiceCard, []card.PageResult) {
	pages := in.Pages

	for i := range pages {
		applyFieldPenalty(pages[i].Blocks, r.cfg.ConfFieldMin)
		pages[i].Confidence = computePageConfidence(pages[i].Blocks, r.cfg.ConfPageMin)
	}

	overall := overallConfidence(pages)

	header := in.Header
	lineItems := in.LineItems

	for i := range pages {
		if !r.needsFallback(pages[i], overall) {
			continue
		}
		if r.fallback == nil {
			pages[i].Errors = append(pages[i].Errors, card.ErrFallbackUnavailable.String())
			continue
		}

		pageText := ""
		if i < len(in.PageTexts) {
			pageText = in.PageTexts[i]
		}
		result, ok := r.fallback.Invoke(ctx, pageText)
		if !ok {
			pages[i].Errors = append(pages[i].Errors, card.ErrFallbackUnavailable.String())
			continue
		}

		pages[i].FallbackText = &result.RawText
		pages[i].DonutData = result.RawData

		header = mergeHeader(header, result)
		if len(lineItems) == 0 {
			lineItems = result.LineItems
		}
	}

	return r.buildCard(header, lineItems, overall), pages
}

// applyFieldPenalty halves the confidence of any block whose confidence
// falls below CONF_FIELD_MIN, mutating the slice in place.
func applyFieldPenalty(blocks []card.BlockOCR, confFieldMin float64) {
	for i := range blocks {
		if blocks[i].Confidence < confFieldMin {
			blocks[i].Confidence *= 0.5
		}
	}
}

// computePageConfidence means the (already field-penalized) block
// confidences and applies the page-level penalty when the mean falls below
// CONF_PAGE_MIN.
func computePageConfidence(blocks []card.BlockOCR, confPageMin float64) float64 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float64
	for _, b := range blocks {
		sum += b.Confidence
	}
	mean := sum / float64(len(blocks))
	if mean < confPageMin {
		mean *= 0.7
	}
	return mean
}

func overallConfidence(pages []card.PageResult) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += p.Confidence
	}
	return sum / float64(len(pages))
}

// needsFallback implements the fallback gate: low page confidence, low
// overall confidence, or a page with zero reconstructed line items.
func (r *Reconciler) needsFallback(page card.PageResult, overall float64) bool {
	if page.Confidence < r.cfg.ConfFallbackPage || overall < r.cfg.ConfFallbackOverall {
		return true
	}
	for _, t := range page.Tables {
		if len(t.LineItems) > 0 {
			return false
		}
	}
	return true
}

// mergeHeader fills in fields the OCR/field-normalizer path left empty. A
// fallback field never overrides one already extracted, regardless of the
// fallback's self-reported confidence.
func mergeHeader(h fields.HeaderFields, fb FallbackResult) fields.HeaderFields {
	if h.SupplierName == nil && fb.SupplierName != nil {
		h.SupplierName = fb.SupplierName
	}
	if h.InvoiceNumber == nil && fb.InvoiceNumber != nil {
		h.InvoiceNumber = fb.InvoiceNumber
	}
	if h.InvoiceDate == nil && fb.InvoiceDate != nil {
		h.InvoiceDate = fb.InvoiceDate
	}
	if h.Currency == nil && fb.Currency != nil {
		h.Currency = fb.Currency
	}
	if h.Subtotal == nil && fb.Subtotal != nil {
		h.Subtotal = fb.Subtotal
	}
	if h.TaxAmount == nil && fb.TaxAmount != nil {
		h.TaxAmount = fb.TaxAmount
	}
	if h.TotalAmount == nil && fb.TotalAmount != nil {
		h.TotalAmount = fb.TotalAmount
	}
	return h
}

const epsilon = 0.01

// buildCard computes calc_subtotal/calc_grand, runs the validation gate,
// and assigns the final status.
func (r *Reconciler) buildCard(h fields.HeaderFields, lineItems []card.LineItem, overall float64) card.InvoiceCard {
	calcSubtotal := sumLineTotals(lineItems)
	calcGrand := calcSubtotal
	if h.TaxAmount != nil {
		calcGrand += *h.TaxAmount
	}

	out := card.InvoiceCard{
		SupplierName:      h.SupplierName,
		InvoiceNumber:     h.InvoiceNumber,
		InvoiceDate:       h.InvoiceDate,
		Currency:          h.Currency,
		Subtotal:          h.Subtotal,
		TaxAmount:         h.TaxAmount,
		TotalAmount:       h.TotalAmount,
		LineItems:         lineItems,
		OverallConfidence: overall,
		GeneratedAt:       time.Now().UTC(),
	}

	if h.TotalAmount == nil {
		out.Status = card.StatusNeedsReview
		out.ValidationErrors = append(out.ValidationErrors, "total_amount missing")
		return out
	}

	denom := math.Max(*h.TotalAmount, epsilon)
	errRatio := math.Abs(calcGrand-*h.TotalAmount) / denom

	if errRatio > r.cfg.ValidationErrThreshold {
		out.Status = card.StatusNeedsReview
		out.ValidationErrors = append(out.ValidationErrors, fmt.Sprintf(
			"calc_grand %.2f vs extracted total %.2f exceeds %.0f%% tolerance",
			calcGrand, *h.TotalAmount, r.cfg.ValidationErrThreshold*100))
		return out
	}

	if hasCriticalFields(h) && overall >= r.cfg.ConfPageMin {
		out.Status = card.StatusOK
		return out
	}

	out.Status = card.StatusPartial
	return out
}

func hasCriticalFields(h fields.HeaderFields) bool {
	return h.SupplierName != nil && h.InvoiceNumber != nil && h.TotalAmount != nil
}

func sumLineTotals(items []card.LineItem) float64 {
	var sum int64
	for _, it := range items {
		if it.LineTotal != nil {
			sum += *it.LineTotal
		}
	}
	return float64(sum) / 100
}
