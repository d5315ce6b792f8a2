// Package batch discovers documents on disk and runs them through an
// already-built pipeline.Pipeline with bounded concurrency, following the
// worker-pool shape the OCR-model batch processor used.
package batch

import (
	"context"
	"fmt"

	"github.com/cardmill/invoicecard/internal/pipeline"
)

// Run discovers documents under paths, processes them through pl according
// to cfg, and formats the result per cfg.Format.
func Run(ctx context.Context, pl *pipeline.Pipeline, paths []string, cfg Config, progress pipeline.ProgressCallback) (*Result, string, error) {
	result, err := ProcessBatch(ctx, pl, paths, cfg, progress)
	if err != nil {
		return nil, "", err
	}

	formatted, err := FormatResult(result, cfg.Format)
	if err != nil {
		return result, "", fmt.Errorf("batch: format result: %w", err)
	}

	return result, formatted, nil
}
