// Package store provides the concrete Store/Audit adapters
// internal/collab's interfaces describe: a Postgres-backed document/invoice
// store and a Redis-backed audit log. Neither is imported by the pipeline
// core; only the host's wiring code in cmd/invoicecard imports this
// package, and hands the adapters to internal/pipeline's Builder.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/cardmill/invoicecard/internal/collab"
)

// PostgresStore persists DocumentRecord/InvoiceRecord rows. It expects the
// caller to have already applied the schema (documents, invoices tables);
// this package only ever issues DML.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn and verifies it with
// a ping before returning, so a misconfigured DSN fails at startup rather
// than on the first processed document.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// PutDocument implements collab.Store.
func (s *PostgresStore) PutDocument(ctx context.Context, rec collab.DocumentRecord) error {
	const q = `
		INSERT INTO documents (doc_id, filename, path, bytes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id) DO UPDATE SET
			filename = EXCLUDED.filename,
			path = EXCLUDED.path,
			bytes = EXCLUDED.bytes`
	_, err := s.db.ExecContext(ctx, q, rec.DocID, rec.Filename, rec.Path, rec.Bytes)
	if err != nil {
		return fmt.Errorf("store: put document %s: %w", rec.DocID, err)
	}
	return nil
}

// UpsertInvoice implements collab.Store.
func (s *PostgresStore) UpsertInvoice(ctx context.Context, rec collab.InvoiceRecord) error {
	const q = `
		INSERT INTO invoices (doc_id, supplier, invoice_date, value, status, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id) DO UPDATE SET
			supplier = EXCLUDED.supplier,
			invoice_date = EXCLUDED.invoice_date,
			value = EXCLUDED.value,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence`
	_, err := s.db.ExecContext(ctx, q, rec.DocID, rec.Supplier, rec.Date, rec.Value, rec.Status, rec.Confidence)
	if err != nil {
		return fmt.Errorf("store: upsert invoice %s: %w", rec.DocID, err)
	}
	return nil
}

// Probe implements collab.Readiness.
func (s *PostgresStore) Probe(ctx context.Context) collab.ReadinessReport {
	status := collab.ComponentStatus{Name: "postgres", Available: true}
	if err := s.db.PingContext(ctx); err != nil {
		status.Available = false
		status.Detail = err.Error()
	}
	return collab.ReadinessReport{Ready: status.Available, Components: []collab.ComponentStatus{status}}
}

var (
	_ collab.Store     = (*PostgresStore)(nil)
	_ collab.Readiness = (*PostgresStore)(nil)
)
