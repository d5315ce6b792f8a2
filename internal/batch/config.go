package batch

import (
	"time"

	"github.com/cardmill/invoicecard/internal/card"
)

// Config holds the configuration for a batch run over a set of documents.
type Config struct {
	Workers         int
	ContinueOnError bool

	// File discovery settings.
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings.
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration

	// Output settings.
	Format     string
	OutputFile string
}

// Item is one document's outcome within a batch run. Err mirrors
// Pipeline.ProcessDocument's own contract: a non-nil Err alongside a
// populated Card means a page degraded rather than the whole document
// failing outright.
type Item struct {
	Path string
	Card card.InvoiceCard
	Err  error
}

// Result holds the outcome of a batch run.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
}

// FailedCount returns how many items in the result carry an error.
func (r *Result) FailedCount() int {
	n := 0
	for _, it := range r.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}
