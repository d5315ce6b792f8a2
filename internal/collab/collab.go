// Package collab defines the narrow interfaces the pipeline uses to talk to
// external collaborators (storage, audit, readiness). The core never imports
// a concrete store, HTTP client, or UI package directly; it only depends on
// these interfaces, which keeps the pipeline testable with in-memory fakes
// and lets the host wire whatever backing system it owns.
package collab

import (
	"context"
	"time"
)

// DocumentRecord is the row shape the Store collaborator persists for each
// processed document.
type DocumentRecord struct {
	DocID    string
	Filename string
	Path     string
	Bytes    int64
}

// InvoiceRecord is the row shape the Store collaborator upserts once an
// InvoiceCard has been produced.
type InvoiceRecord struct {
	DocID      string
	Supplier   string
	Date       string
	Value      float64
	Status     string
	Confidence float64
}

// Store is the abstract persistence collaborator. The pipeline only ever
// sees these two operations; it has no notion of tables, connections, or
// transactions.
type Store interface {
	PutDocument(ctx context.Context, rec DocumentRecord) error
	UpsertInvoice(ctx context.Context, rec InvoiceRecord) error
}

// Audit is the abstract audit-log collaborator, appended to at stage
// boundaries.
type Audit interface {
	Append(ctx context.Context, ts time.Time, actor, op string, payload []byte) error
}

// ComponentStatus reports whether one readiness-relevant component is
// available, and why not when it isn't.
type ComponentStatus struct {
	Name      string
	Available bool
	Detail    string
}

// ReadinessReport is the result of a Readiness probe.
type ReadinessReport struct {
	Ready      bool
	Components []ComponentStatus
}

// Readiness is the synchronous probe the pipeline refuses to start without.
// A required component missing means Ready=false.
type Readiness interface {
	Probe(ctx context.Context) ReadinessReport
}

// NopAudit discards every entry. Useful for CLI/batch runs that have no
// audit collaborator configured.
type NopAudit struct{}

// Append implements Audit.
func (NopAudit) Append(context.Context, time.Time, string, string, []byte) error { return nil }

// NopStore discards every write. Useful for CLI/batch runs with no
// downstream store configured.
type NopStore struct{}

// PutDocument implements Store.
func (NopStore) PutDocument(context.Context, DocumentRecord) error { return nil }

// UpsertInvoice implements Store.
func (NopStore) UpsertInvoice(context.Context, InvoiceRecord) error { return nil }
