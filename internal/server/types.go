package server

import (
	"context"
	"net/http"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/collab"
	"github.com/cardmill/invoicecard/internal/pipeline"
)

// documentPipeline defines the methods the server needs from a pipeline.
type documentPipeline interface {
	ProcessDocument(ctx context.Context, doc card.Document) (card.InvoiceCard, error)
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline        documentPipeline
	readiness       collab.Readiness // nil when no external collaborator needs probing
	corsOrigin      string
	maxUploadMB     int64
	timeoutSec      int
	uploadScratchDir string
	rateLimiter     *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host             string
	Port             int
	CORSOrigin       string
	MaxUploadMB      int64
	TimeoutSec       int
	UploadScratchDir string
	RateLimit        RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // in bytes
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ReadinessResponse struct {
	Ready      bool               `json:"ready"`
	Components []ComponentJSON    `json:"components,omitempty"`
}

type ComponentJSON struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type ModelInfo struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Config      interface{} `json:"config,omitempty"`
}

type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

// DocumentResponse wraps a processed document's InvoiceCard.
type DocumentResponse struct {
	Success bool            `json:"success"`
	Card    card.InvoiceCard `json:"card,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// NewServer creates a new server instance wrapping an already-built
// pipeline, following the same single-pipeline-instance idiom the teacher
// used before its per-request pipeline cache: SPEC_FULL.md loads one
// internal/config.Config for the whole process, so there is no per-request
// model configuration left to cache against.
func NewServer(cfg Config, pl *pipeline.Pipeline, readiness collab.Readiness) (*Server, error) {
	var rateLimiter *RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMinute,
			cfg.RateLimit.RequestsPerHour,
			cfg.RateLimit.MaxRequestsPerDay,
			cfg.RateLimit.MaxDataPerDay,
		)
	}

	return &Server{
		pipeline:         pl,
		readiness:        readiness,
		corsOrigin:       cfg.CORSOrigin,
		maxUploadMB:      cfg.MaxUploadMB,
		timeoutSec:       cfg.TimeoutSec,
		uploadScratchDir: cfg.UploadScratchDir,
		rateLimiter:      rateLimiter,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/readiness", s.corsMiddleware(s.readinessHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/metrics", s.corsMiddleware(s.metricsHandler))
	mux.HandleFunc("/ws/documents", s.corsMiddleware(s.documentWebSocketHandler))
	mux.HandleFunc("/documents", s.corsMiddleware(s.rateLimitMiddleware(s.documentHandler)))
}
