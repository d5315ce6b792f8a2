package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/pipeline"
	"github.com/google/uuid"
)

// ProcessBatch discovers documents under paths and runs each through pl,
// using cfg.Workers concurrent goroutines. Errors from individual documents
// are recorded on their Item rather than aborting the run, unless
// cfg.ContinueOnError is false, in which case the first error stops
// discovery of further items.
func ProcessBatch(ctx context.Context, pl *pipeline.Pipeline, paths []string, cfg Config, progress pipeline.ProgressCallback) (*Result, error) {
	include := cfg.IncludePatterns
	if len(include) == 0 {
		include = DefaultIncludePatterns
	}

	files, err := discoverDocumentFiles(paths, cfg.Recursive, include, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("batch: discover files: %w", err)
	}
	if len(files) == 0 {
		return &Result{WorkerCount: workerCount(cfg)}, nil
	}

	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}

	workers := workerCount(cfg)
	start := time.Now()
	items := make([]Item, len(files))

	jobs := make(chan int)
	stop := make(chan struct{})
	var stopOnce sync.Once
	var wg sync.WaitGroup
	var completed int32
	var mu sync.Mutex

	progress.OnStart(len(files))

	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			path := files[idx]
			doc, derr := documentFromPath(path)
			var result card.InvoiceCard
			if derr == nil {
				result, derr = pl.ProcessDocument(ctx, doc)
			}
			items[idx] = Item{Path: path, Card: result, Err: derr}

			mu.Lock()
			completed++
			current := completed
			mu.Unlock()

			if derr != nil {
				progress.OnError(int(current), derr)
				if !cfg.ContinueOnError {
					stopOnce.Do(func() { close(stop) })
					return
				}
			}
			progress.OnProgress(int(current), len(files))
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

dispatch:
	for i := range files {
		select {
		case jobs <- i:
		case <-stop:
			break dispatch
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	progress.OnComplete()

	return &Result{
		Items:       items,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}, nil
}

// workerCount returns cfg.Workers, defaulting to 1 when unset.
func workerCount(cfg Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return 1
}

// documentFromPath builds a card.Document for a batch-discovered file,
// the same shape the single-file process command builds.
func documentFromPath(path string) (card.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return card.Document{}, fmt.Errorf("batch: %w", err)
	}
	id := uuid.New().String()
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return card.Document{
		DocID:      id,
		SourcePath: path,
		MIME:       mimeFromExt(path),
		Slug:       strings.ReplaceAll(base, " ", "_") + "-" + id[:8],
	}, nil
}

// mimeFromExt infers a document's MIME type from its file extension.
func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
