// Package fallback implements the Donut and LLM external collaborators
// invoked when the reconciler's confidence gate trips, submitted through an
// asynq-backed retry queue so repeated transient failures back off rather
// than blocking the page pipeline.
package fallback

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cardmill/invoicecard/internal/config"
)

// FallbackResult mirrors github.com/cardmill/invoicecard/internal/reconcile's
// FallbackResult shape so a Coordinator can satisfy reconcile.Fallback
// without this package importing reconcile.
type FallbackResult struct {
	SupplierName, InvoiceNumber, InvoiceDate, Currency *string
	Subtotal, TaxAmount, TotalAmount                   *float64
	LineItems                                          []LineItem
	Confidence                                         float64
	RawText                                            string
	RawData                                            map[string]any
}

// LineItem mirrors card.LineItem's fields the fallback path can populate.
type LineItem struct {
	Description string
	Quantity    *float64
	UnitPrice   *int64
	LineTotal   *int64
}

// Coordinator wires the Donut client, LLM client, and retry queue together
// and exposes the single Invoke entry point the reconciler calls.
type Coordinator struct {
	q            *queue
	featureDonut bool
	featureLLM   bool
	lctx         LLMContext
	seq          atomic.Uint64
}

// NewCoordinator builds a Coordinator from configuration. When RedisAddr is
// empty the queue is unavailable and Invoke always reports ok=false,
// degrading gracefully per the fallback-unavailable contract.
func NewCoordinator(cfg config.FallbackConfig, lctx LLMContext) (*Coordinator, error) {
	var donut *DonutClient
	if cfg.FeatureDonut {
		donut = NewDonutClient(cfg.DonutURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}
	var llm *LLMClient
	if cfg.FeatureLLM {
		llm = NewLLMClient(cfg.LLMAPIKey, cfg.LLMModel)
	}

	c := &Coordinator{
		featureDonut: cfg.FeatureDonut,
		featureLLM:   cfg.FeatureLLM,
		lctx:         lctx,
	}

	if cfg.RedisAddr == "" {
		return c, nil
	}

	q, err := newQueue(cfg.RedisAddr, cfg.MaxRetries, time.Duration(cfg.TimeoutSeconds)*time.Second, donut, llm)
	if err != nil {
		return nil, err
	}
	q.run()
	c.q = q
	return c, nil
}

// Close shuts down the retry queue's asynq server and client.
func (c *Coordinator) Close() {
	if c.q != nil {
		c.q.shutdown()
	}
}

// Invoke submits one page's fallback request and waits for the queue to
// publish a result. imagePath may be empty when only the LLM path applies.
func (c *Coordinator) Invoke(ctx context.Context, pageText string) (FallbackResult, bool) {
	return c.InvokeImage(ctx, "", pageText)
}

// InvokeImage is Invoke with an explicit page image path, used when Donut's
// single-image contract applies.
func (c *Coordinator) InvokeImage(ctx context.Context, imagePath, pageText string) (FallbackResult, bool) {
	if c.q == nil || !(c.featureDonut || c.featureLLM) {
		return FallbackResult{}, false
	}
	if !c.featureDonut {
		imagePath = ""
	}

	id := strconv.FormatUint(c.seq.Add(1), 10)
	p := taskPayload{TaskID: id, ImagePath: imagePath, PageText: pageText, Context: c.lctx}
	return c.q.submit(ctx, p)
}

// invokeCollaborators runs the Donut-then-LLM cascade synchronously; it is
// called from the asynq task handler, which supplies the retry/backoff
// envelope around it.
func invokeCollaborators(ctx context.Context, donut *DonutClient, llm *LLMClient, p taskPayload) (FallbackResult, bool) {
	if donut != nil && p.ImagePath != "" {
		if resp, ok := donut.Infer(ctx, p.ImagePath); ok {
			return FallbackResult{RawText: resp.Text, RawData: map[string]any{"model": resp.Model}}, true
		}
	}

	if llm != nil {
		if resp, ok := llm.Normalize(ctx, p.PageText, p.Context); ok {
			return llmToResult(resp), true
		}
	}

	return FallbackResult{}, false
}

func llmToResult(resp LLMResponse) FallbackResult {
	items := make([]LineItem, 0, len(resp.Lines))
	for _, l := range resp.Lines {
		items = append(items, LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   toMinorUnits(l.UnitPrice),
			LineTotal:   toMinorUnits(l.LineTotal),
		})
	}

	raw := map[string]any{}
	if resp.Notes != nil {
		raw["notes"] = *resp.Notes
	}

	return FallbackResult{
		SupplierName:  resp.SupplierName,
		InvoiceNumber: resp.InvoiceNumber,
		InvoiceDate:   resp.InvoiceDate,
		Currency:      resp.Currency,
		Subtotal:      resp.Subtotal,
		TaxAmount:     resp.TaxAmount,
		TotalAmount:   resp.TotalAmount,
		LineItems:     items,
		Confidence:    resp.Confidence,
		RawData:       raw,
	}
}

func toMinorUnits(v *float64) *int64 {
	if v == nil {
		return nil
	}
	minor := int64(*v*100 + 0.5)
	return &minor
}
