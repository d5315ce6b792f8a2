package config

import "testing"

// TestDefaultConfig verifies that DefaultConfig returns expected values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelsDir != "models" {
		t.Errorf("Expected models_dir 'models', got %s", cfg.ModelsDir)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log_level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Verbose {
		t.Error("Expected verbose to be false")
	}

	if cfg.Table.RowGapPx != 15 {
		t.Errorf("Expected table row_gap_px 15, got %d", cfg.Table.RowGapPx)
	}
	if cfg.Table.ColGapPx != 25 {
		t.Errorf("Expected table col_gap_px 25, got %d", cfg.Table.ColGapPx)
	}

	if cfg.Reconcile.ConfFieldMin != 0.55 {
		t.Errorf("Expected conf_field_min 0.55, got %f", cfg.Reconcile.ConfFieldMin)
	}
	if cfg.Reconcile.ConfPageMin != 0.60 {
		t.Errorf("Expected conf_page_min 0.60, got %f", cfg.Reconcile.ConfPageMin)
	}

	if cfg.Output.Format != "json" {
		t.Errorf("Expected output format 'json', got %s", cfg.Output.Format)
	}
	if cfg.Output.ConfidencePrecision != 2 {
		t.Errorf("Expected confidence_precision 2, got %d", cfg.Output.ConfidencePrecision)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected server host 'localhost', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Batch.Workers != 4 {
		t.Errorf("Expected batch workers 4, got %d", cfg.Batch.Workers)
	}

	if cfg.Features.OrientationEnabled {
		t.Error("Expected orientation to be disabled by default")
	}

	if cfg.GPU.Enabled {
		t.Error("Expected GPU to be disabled by default")
	}
	if cfg.GPU.MemoryLimit != autoValue {
		t.Errorf("Expected GPU memory limit '%s', got %s", autoValue, cfg.GPU.MemoryLimit)
	}

	if cfg.Fallback.TimeoutSeconds != 120 {
		t.Errorf("Expected fallback timeout 120s, got %d", cfg.Fallback.TimeoutSeconds)
	}
	if cfg.Fallback.MaxRetries != 3 {
		t.Errorf("Expected fallback max retries 3, got %d", cfg.Fallback.MaxRetries)
	}
}

// TestValidateBasicEnums tests log level and output format validation.
func TestValidateBasicEnums(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  string
		format    string
		wantError bool
	}{
		{"valid log level and format", infoLevel, "text", false},
		{"valid debug", "debug", "json", false},
		{"valid warn", "warn", "csv", false},
		{"valid error", "error", "text", false},
		{"invalid log level", "invalid", "text", true},
		{"invalid format", infoLevel, "xml", true},
		{"empty format is valid", infoLevel, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = tt.logLevel
			cfg.Output.Format = tt.format

			err := cfg.validateBasicEnums()
			if (err != nil) != tt.wantError {
				t.Errorf("validateBasicEnums() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

// TestValidateThresholds tests threshold validation.
func TestValidateThresholds(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*Config)
		wantError bool
	}{
		{name: "valid thresholds", setup: func(c *Config) {}, wantError: false},
		{
			name:      "layout db_thresh too high",
			setup:     func(c *Config) { c.Layout.DbThresh = 1.5 },
			wantError: true,
		},
		{
			name:      "layout db_thresh negative",
			setup:     func(c *Config) { c.Layout.DbThresh = -0.1 },
			wantError: true,
		},
		{
			name:      "ocr secondary trigger invalid",
			setup:     func(c *Config) { c.OCR.SecondaryTrigger = 2.0 },
			wantError: true,
		},
		{
			name:      "reconcile conf_field_min invalid",
			setup:     func(c *Config) { c.Reconcile.ConfFieldMin = -0.1 },
			wantError: true,
		},
		{
			name:      "orientation threshold invalid",
			setup:     func(c *Config) { c.Features.OrientationThreshold = 1.1 },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(&cfg)

			err := cfg.validateThresholds()
			if (err != nil) != tt.wantError {
				t.Errorf("validateThresholds() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

// TestValidatePositiveIntegers tests positive integer validation.
func TestValidatePositiveIntegers(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*Config)
		wantError bool
	}{
		{name: "valid integers", setup: func(c *Config) {}, wantError: false},
		{name: "server port zero", setup: func(c *Config) { c.Server.Port = 0 }, wantError: true},
		{name: "server port negative", setup: func(c *Config) { c.Server.Port = -1 }, wantError: true},
		{name: "server port too high", setup: func(c *Config) { c.Server.Port = 70000 }, wantError: true},
		{name: "max upload MB zero", setup: func(c *Config) { c.Server.MaxUploadMB = 0 }, wantError: true},
		{name: "timeout zero", setup: func(c *Config) { c.Server.TimeoutSec = 0 }, wantError: true},
		{name: "parallel workers zero", setup: func(c *Config) { c.Parallel.MaxWorkers = 0 }, wantError: true},
		{name: "batch workers negative", setup: func(c *Config) { c.Batch.Workers = -1 }, wantError: true},
		{name: "layout min region size zero", setup: func(c *Config) { c.Layout.MinRegionSize = 0 }, wantError: true},
		{name: "table row gap zero", setup: func(c *Config) { c.Table.RowGapPx = 0 }, wantError: true},
		{name: "table col gap zero", setup: func(c *Config) { c.Table.ColGapPx = 0 }, wantError: true},
		{name: "fallback timeout zero", setup: func(c *Config) { c.Fallback.TimeoutSeconds = 0 }, wantError: true},
		{name: "fallback retries negative", setup: func(c *Config) { c.Fallback.MaxRetries = -1 }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(&cfg)

			err := cfg.validatePositiveIntegers()
			if (err != nil) != tt.wantError {
				t.Errorf("validatePositiveIntegers() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

// TestValidateGPU tests GPU validation.
func TestValidateGPU(t *testing.T) {
	tests := []struct {
		name        string
		memoryLimit string
		wantError   bool
	}{
		{"valid auto", autoValue, false},
		{"valid empty", "", false},
		{"valid B only", "1073741824B", false},
		{"invalid GB", "1GB", true},
		{"invalid MB", "512MB", true},
		{"invalid KB", "1024KB", true},
		{"invalid unit", "1TB", true},
		{"invalid format", "invalid", true},
		{"no number", "GB", true},
		{"no number B", "B", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.GPU.MemoryLimit = tt.memoryLimit

			err := cfg.validateGPU()
			if (err != nil) != tt.wantError {
				t.Errorf("validateGPU() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

// TestValidate tests the complete validation.
func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LogLevel = "invalid"
		cfg.Server.Port = 0
		cfg.Layout.DbThresh = 2.0

		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})
}

// TestContains tests the contains helper.
func TestContains(t *testing.T) {
	slice := []string{"foo", "bar", "baz"}

	if !contains(slice, "foo") {
		t.Error("Expected 'foo' to be in slice")
	}
	if contains(slice, "qux") {
		t.Error("Did not expect 'qux' to be in slice")
	}
	if contains([]string{}, "foo") {
		t.Error("Did not expect 'foo' in empty slice")
	}
}

// TestValidateThreshold tests the threshold validation helper.
func TestValidateThreshold(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantError bool
	}{
		{"valid 0.0", 0.0, false},
		{"valid 0.5", 0.5, false},
		{"valid 1.0", 1.0, false},
		{"invalid negative", -0.1, true},
		{"invalid too high", 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateThreshold(tt.value, "test")
			if (err != nil) != tt.wantError {
				t.Errorf("validateThreshold(%f) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

// TestValidateMemoryLimit tests the memory limit validation helper.
func TestValidateMemoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     string
		wantError bool
	}{
		{"empty string", "", false},
		{"auto", "auto", false},
		{"bytes", "1024B", false},
		{"invalid kilobytes", "512KB", true},
		{"invalid megabytes", "256MB", true},
		{"invalid gigabytes", "2GB", true},
		{"invalid lowercase", "1gb", true},
		{"invalid unit", "1TB", true},
		{"no unit", "1024", true},
		{"invalid number", "abcGB", true},
		{"just unit", "GB", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMemoryLimit(tt.limit)
			if (err != nil) != tt.wantError {
				t.Errorf("validateMemoryLimit(%s) error = %v, wantError %v", tt.limit, err, tt.wantError)
			}
		})
	}
}
