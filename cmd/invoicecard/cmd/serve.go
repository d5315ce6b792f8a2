package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardmill/invoicecard/internal/pipeline"
	"github.com/cardmill/invoicecard/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for document processing",
	Long: `Start an HTTP server that provides REST API endpoints for InvoiceCard
processing.

The server provides the following endpoints:
  POST /documents    - Upload and process a document, returns an InvoiceCard
  GET  /ws/documents - Process a document with streaming progress updates
  GET  /health       - Health check endpoint
  GET  /readiness    - Readiness probe for store/audit collaborators
  GET  /models       - List available ONNX models
  GET  /metrics      - Prometheus metrics

Examples:
  invoicecard serve
  invoicecard serve --port 8080
  invoicecard serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("upload-scratch-dir", "", "scratch directory for uploaded documents (default: system temp dir)")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 100*1024*1024, "maximum data processed per day per client (bytes)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}
	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	maxUploadMB := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	timeout := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetInt("timeout")
	}
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}
	uploadScratchDir, _ := cmd.Flags().GetString("upload-scratch-dir")
	if uploadScratchDir == "" {
		uploadScratchDir = os.TempDir()
	}

	rateLimitEnabled, _ := cmd.Flags().GetBool("rate-limit-enabled")
	requestsPerMinute, _ := cmd.Flags().GetInt("requests-per-minute")
	requestsPerHour, _ := cmd.Flags().GetInt("requests-per-hour")
	maxRequestsPerDay, _ := cmd.Flags().GetInt("max-requests-per-day")
	maxDataPerDay, _ := cmd.Flags().GetInt64("max-data-per-day")

	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collabs, err := buildCollaborators(ctx, *cfg)
	if err != nil {
		return err
	}
	defer collabs.close()

	pl, err := pipeline.NewBuilder(*cfg).WithStore(collabs.store).WithAudit(collabs.audit).Build()
	if err != nil {
		return fmt.Errorf("serve: build pipeline: %w", err)
	}

	serverConfig := server.Config{
		Host:             host,
		Port:             port,
		CORSOrigin:       corsOrigin,
		MaxUploadMB:      int64(maxUploadMB),
		TimeoutSec:       timeout,
		UploadScratchDir: uploadScratchDir,
		RateLimit: server.RateLimitConfig{
			Enabled:           rateLimitEnabled,
			RequestsPerMinute: requestsPerMinute,
			RequestsPerHour:   requestsPerHour,
			MaxRequestsPerDay: maxRequestsPerDay,
			MaxDataPerDay:     maxDataPerDay,
		},
	}

	docServer, err := server.NewServer(serverConfig, pl, collabs.readiness)
	if err != nil {
		return fmt.Errorf("serve: initialize server: %w", err)
	}
	defer func() { _ = docServer.Close() }()

	mux := http.NewServeMux()
	docServer.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(timeout) * time.Second,
		WriteTimeout:      time.Duration(timeout) * time.Second,
	}

	go func() {
		slog.Info("Starting invoicecard server", "host", host, "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if err := docServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	} else {
		slog.Info("Server cleanup completed")
	}

	slog.Info("Graceful shutdown completed")
	return nil
}
