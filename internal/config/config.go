package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	autoValue  = "auto"
	infoLevel  = "info"
)

// DefaultConfig returns a configuration with sensible defaults for every
// stage of the pipeline.
func DefaultConfig() Config {
	return Config{
		ModelsDir: "models",
		LogLevel:  infoLevel,
		Verbose:   false,

		Raster: RasterConfig{
			DPI:                200,
			MaxLongEdgePx:       4000,
			VectorTextShortcut: false,
			ArtifactRoot:       "artifacts",
		},
		Preprocess: PreprocessConfig{
			FeatureDewarp:         true,
			FeatureDualPath:       true,
			CLAHEClipLimit:        2.0,
			CLAHETileSize:         8,
			DeskewMinAngleRad:     0.01,
			ComparatorTieDeltaPct: 0.05,
			RectificationHeight:   1024,
		},
		Layout: LayoutConfig{
			DbThresh:       0.3,
			DbBoxThresh:    0.6,
			UseNMS:         true,
			NMSThreshold:   0.2,
			NumThreads:     4,
			MaxImageSize:   2000,
			MinRegionSize:  16,
			DegenerateConf: 0.3,
		},
		OCR: OCRConfig{
			Language:            "en",
			ImageHeight:         48,
			MaxWidth:            960,
			PadWidthMultiple:    32,
			NumThreads:          4,
			SecondaryLanguages:  "eng",
			SecondaryTrigger:    0.3,
			MinUsableConfidence: 0.2,
		},
		Table: TableConfig{
			RowGapPx:             15,
			ColGapPx:             25,
			GeometricTieCoverage: 0.8,
			DebugDumpEnabled:     false,
			DebugDumpDir:         "data/logs",
		},
		Reconcile: ReconcileConfig{
			ConfFieldMin:           0.55,
			ConfPageMin:            0.60,
			ConfFallbackPage:       0.45,
			ConfFallbackOverall:    0.50,
			ValidationErrThreshold: 0.10,
		},
		Fallback: FallbackConfig{
			FeatureDonut:        false,
			FeatureLLM:          false,
			LLMModel:            "gemini-1.5-flash",
			TimeoutSeconds:      120,
			MaxRetries:          3,
			RedisAddr:           "localhost:6379",
			MinConfidenceForCtx: 0.6,
		},
		Store: StoreConfig{},

		Parallel: ParallelConfig{MaxWorkers: 4, BatchSize: 1},
		Resource: ResourceConfig{MaxGoroutines: 8},

		Output: OutputConfig{
			Format:              "json",
			ConfidencePrecision: 2,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: false,
		},
		Features: FeatureConfig{
			OrientationEnabled:   false,
			OrientationThreshold: 0.7,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: autoValue,
		},
	}
}

// validateBasicEnums validates log level and output format.
func (c *Config) validateBasicEnums() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	return nil
}

// validateThresholds validates all threshold values.
func (c *Config) validateThresholds() error {
	if err := validateThreshold(float64(c.Layout.DbThresh), "layout.db_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(float64(c.Layout.DbBoxThresh), "layout.db_box_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(c.Layout.NMSThreshold, "layout.nms_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Layout.DegenerateConf, "layout.degenerate_confidence"); err != nil {
		return err
	}
	if err := validateThreshold(c.OCR.SecondaryTrigger, "ocr.secondary_trigger_confidence"); err != nil {
		return err
	}
	if err := validateThreshold(c.OCR.MinUsableConfidence, "ocr.min_usable_ocr_confidence"); err != nil {
		return err
	}
	if err := validateThreshold(c.Table.GeometricTieCoverage, "table.geometric_tie_coverage"); err != nil {
		return err
	}
	if err := validateThreshold(c.Reconcile.ConfFieldMin, "reconcile.conf_field_min"); err != nil {
		return err
	}
	if err := validateThreshold(c.Reconcile.ConfPageMin, "reconcile.conf_page_min"); err != nil {
		return err
	}
	if err := validateThreshold(c.Reconcile.ConfFallbackPage, "reconcile.conf_fallback_page"); err != nil {
		return err
	}
	if err := validateThreshold(c.Reconcile.ConfFallbackOverall, "reconcile.conf_fallback_overall"); err != nil {
		return err
	}
	if err := validateThreshold(c.Reconcile.ValidationErrThreshold, "reconcile.llm_validation_error_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Features.OrientationThreshold, "features.orientation_threshold"); err != nil {
		return err
	}

	return nil
}

// validatePositiveIntegers validates all positive integer values.
func (c *Config) validatePositiveIntegers() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Parallel.MaxWorkers <= 0 {
		return fmt.Errorf("invalid parallel max workers: %d (must be positive)", c.Parallel.MaxWorkers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Layout.MinRegionSize <= 0 {
		return fmt.Errorf("invalid layout min region size: %d (must be positive)", c.Layout.MinRegionSize)
	}
	if c.Table.RowGapPx <= 0 {
		return fmt.Errorf("invalid table row_gap_px: %d (must be positive)", c.Table.RowGapPx)
	}
	if c.Table.ColGapPx <= 0 {
		return fmt.Errorf("invalid table col_gap_px: %d (must be positive)", c.Table.ColGapPx)
	}
	if c.Fallback.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fallback.llm_timeout_seconds: %d (must be positive)", c.Fallback.TimeoutSeconds)
	}
	if c.Fallback.MaxRetries < 0 {
		return fmt.Errorf("invalid fallback.llm_max_retries: %d (must be >= 0)", c.Fallback.MaxRetries)
	}

	return nil
}

// validateGPU validates GPU-related settings.
func (c *Config) validateGPU() error {
	if c.GPU.MemoryLimit != autoValue && c.GPU.MemoryLimit != "" {
		if err := validateMemoryLimit(c.GPU.MemoryLimit); err != nil {
			return fmt.Errorf("invalid GPU memory limit: %w", err)
		}
	}
	return nil
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if err := c.validateBasicEnums(); err != nil {
		return err
	}
	if err := c.validateThresholds(); err != nil {
		return err
	}
	if err := c.validatePositiveIntegers(); err != nil {
		return err
	}
	if err := c.validateGPU(); err != nil {
		return err
	}
	return nil
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// validateMemoryLimit validates GPU memory limit format (e.g., "1GB", "512MB").
func validateMemoryLimit(limit string) error {
	if limit == "" || limit == autoValue {
		return nil
	}

	validUnits := []string{"B", "KB", "MB", "GB"}
	hasValidUnit := false
	for _, unit := range validUnits {
		if strings.HasSuffix(strings.ToUpper(limit), unit) {
			hasValidUnit = true
			numStr := strings.TrimSuffix(strings.ToUpper(limit), unit)
			if _, err := strconv.ParseFloat(numStr, 64); err != nil {
				return fmt.Errorf("invalid number in memory limit: %s", limit)
			}
			break
		}
	}

	if !hasValidUnit {
		return fmt.Errorf("memory limit must end with one of: %s", strings.Join(validUnits, ", "))
	}

	return nil
}
