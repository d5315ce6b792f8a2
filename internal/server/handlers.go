package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsHandlerFunc = promhttp.Handler()

// metricsHandler exposes Prometheus metrics for scraping.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	metricsHandlerFunc.ServeHTTP(w, r)
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// readinessHandler probes the configured store/audit collaborators (if
// any) and reports whether the service can accept document uploads.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.readiness == nil {
		s.writeJSON(w, http.StatusOK, ReadinessResponse{Ready: true})
		return
	}

	report := s.readiness.Probe(r.Context())
	resp := ReadinessResponse{Ready: report.Ready}
	for _, c := range report.Components {
		resp.Components = append(resp.Components, ComponentJSON{
			Name: c.Name, Available: c.Available, Detail: c.Detail,
		})
	}

	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// modelsHandler returns information about available ONNX models.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	modelInfos := models.ListAvailableModels()
	modelList := make([]ModelInfo, len(modelInfos))
	for i, info := range modelInfos {
		modelList[i] = ModelInfo{
			Name:        info.Name,
			Path:        models.ResolveModelPath("", info.Type, info.Variant, info.Filename),
			Type:        info.Type,
			Description: info.Description,
		}
	}

	s.writeJSON(w, http.StatusOK, ModelsResponse{Models: modelList, Count: len(modelList)})
}

// documentHandler accepts a multipart file upload (image or PDF) and runs
// it through the full pipeline, returning the assembled InvoiceCard. A
// single endpoint replaces the teacher's separate image/pdf/batch routes:
// internal/raster.Rasterizer already dispatches on MIME type, so the HTTP
// surface no longer needs to.
func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeErrorResponse(w, "Missing \"document\" form file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	uploadSizeBytes.Observe(float64(header.Size))

	doc, cleanup, err := s.stageUpload(file, header.Filename)
	if err != nil {
		s.writeErrorResponse(w, "Failed to stage upload: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer cleanup()

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result, err := s.pipeline.ProcessDocument(ctx, doc)
	documentProcessingDuration.WithLabelValues(doc.MIME).Observe(time.Since(start).Seconds())
	if err != nil {
		documentRequestsTotal.WithLabelValues(doc.MIME, "error").Inc()
		s.writeErrorResponse(w, "Processing failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	documentRequestsTotal.WithLabelValues(doc.MIME, "ok").Inc()
	s.writeJSON(w, http.StatusOK, DocumentResponse{Success: true, Card: result})
}

// stageUpload writes the uploaded file to the scratch directory and
// returns the card.Document referencing it, plus a cleanup func that
// removes the staged file.
func (s *Server) stageUpload(src io.Reader, filename string) (card.Document, func(), error) {
	slug, err := randomSlug()
	if err != nil {
		return card.Document{}, func() {}, err
	}

	dir := s.uploadScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return card.Document{}, func() {}, err
	}

	path := filepath.Join(dir, slug+filepath.Ext(filename))
	out, err := os.Create(path) //nolint:gosec // path built from a generated slug under a configured scratch dir
	if err != nil {
		return card.Document{}, func() {}, err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return card.Document{}, func() {}, err
	}
	out.Close()

	doc := card.Document{
		DocID:      slug,
		SourcePath: path,
		MIME:       mimeFromFilename(filename),
		Slug:       slug,
	}
	return doc, func() { os.Remove(path) }, nil
}

func mimeFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
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

func randomSlug() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding response: %v\n", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, DocumentResponse{Success: false, Error: message})
}
