package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/cardmill/invoicecard/internal/artifact"
	"github.com/cardmill/invoicecard/internal/card"
)

// ParallelConfig holds configuration for page-parallel processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	BatchSize        int              // Carried from config; page processing does not read it (pages are dispatched one at a time)
	ProgressCallback ProgressCallback // Optional progress reporting
}

// DefaultParallelConfig returns sensible defaults for page-parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type pageJob struct {
	index int
	page  card.RasterPage
}

type pageJobResult struct {
	index  int
	result card.PageResult
	err    error
}

// processPagesParallel runs processPage over every page concurrently,
// preserving page order in the returned slice regardless of completion
// order, per the documented invariant that a document's reported page
// order reflects input order, not processing order.
func (p *Pipeline) processPagesParallel(ctx context.Context, w *artifact.Writer, pages []card.RasterPage) ([]card.PageResult, error) {
	if len(pages) == 0 {
		return nil, errors.New("pipeline: no pages to process")
	}

	workers := p.parallelCfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pages) {
		workers = len(pages)
	}

	if workers == 1 {
		return p.processPagesSequential(ctx, w, pages)
	}

	cb := p.parallelCfg.ProgressCallback
	if cb != nil {
		cb.OnStart(len(pages))
		defer cb.OnComplete()
	}

	jobs := make(chan pageJob, len(pages))
	results := make(chan pageJobResult, len(pages))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res, err := p.processPage(ctx, w, job.page)
				select {
				case results <- pageJobResult{index: job.index, result: res, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, pg := range pages {
			select {
			case jobs <- pageJob{index: i, page: pg}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]card.PageResult, len(pages))
	var firstErr error
	done := 0
	for res := range results {
		done++
		if cb != nil {
			cb.OnProgress(done, len(pages))
		}
		if res.err != nil {
			slog.Warn("pipeline: page processing failed", "page", res.index+1, "error", res.err)
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", res.index+1, res.err)
			}
			continue
		}
		ordered[res.index] = res.result
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ordered, firstErr
}

func (p *Pipeline) processPagesSequential(ctx context.Context, w *artifact.Writer, pages []card.RasterPage) ([]card.PageResult, error) {
	cb := p.parallelCfg.ProgressCallback
	if cb != nil {
		cb.OnStart(len(pages))
		defer cb.OnComplete()
	}

	out := make([]card.PageResult, len(pages))
	var firstErr error
	for i, pg := range pages {
		res, err := p.processPage(ctx, w, pg)
		if err != nil {
			slog.Warn("pipeline: page processing failed", "page", i+1, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i+1, err)
			}
			if cb != nil {
				cb.OnError(i, err)
			}
			continue
		}
		out[i] = res
		if cb != nil {
			cb.OnProgress(i+1, len(pages))
		}
	}
	return out, firstErr
}
