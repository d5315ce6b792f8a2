package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	testValue = "test_value"
)

// clearInvoiceCardEnvVars clears all INVOICECARD_ environment variables.
func clearInvoiceCardEnvVars() {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "INVOICECARD_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) > 0 {
				_ = os.Unsetenv(parts[0])
			}
		}
	}
}

// TestNewLoader tests loader creation.
func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.v == nil {
		t.Error("Loader viper instance is nil")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	clearInvoiceCardEnvVars()

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Errorf("Load() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
}

// TestLoadWithValidYAMLFile tests loading from a valid YAML file.
func TestLoadWithValidYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invoicecard.yaml")

	yamlContent := `
log_level: debug
verbose: true
models_dir: /custom/models
server:
  host: 0.0.0.0
  port: 9090
layout:
  db_thresh: 0.4
ocr:
  language: de
`

	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Errorf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected log level '%s', got %s", debugLevel, cfg.LogLevel)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose to be true")
	}
	if cfg.ModelsDir != "/custom/models" {
		t.Errorf("Expected models dir '/custom/models', got %s", cfg.ModelsDir)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host '0.0.0.0', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Layout.DbThresh != 0.4 {
		t.Errorf("Expected db_thresh 0.4, got %f", cfg.Layout.DbThresh)
	}
	if cfg.OCR.Language != "de" {
		t.Errorf("Expected language 'de', got %s", cfg.OCR.Language)
	}
}

// TestLoadWithInvalidYAMLFile tests loading from an invalid YAML file.
func TestLoadWithInvalidYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invoicecard.yaml")

	invalidYAML := `
log_level: debug
  invalid indentation
    more bad indentation
`

	if err := os.WriteFile(configFile, []byte(invalidYAML), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	_, err := loader.LoadWithFile(configFile)

	if err == nil {
		t.Error("LoadWithFile() expected error for invalid YAML, got nil")
	}
}

// TestLoadWithNonExistentFile tests loading from a non-existent file.
func TestLoadWithNonExistentFile(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadWithFile("/nonexistent/path/to/config.yaml")

	if err == nil {
		t.Error("LoadWithFile() expected error for non-existent file, got nil")
	}
}

// TestLoadWithValidationFailure tests loading with validation failure.
func TestLoadWithValidationFailure(t *testing.T) {
	clearInvoiceCardEnvVars()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invoicecard.yaml")

	yamlContent := `
log_level: invalid_level
server:
  port: 0
`

	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	_, err := loader.LoadWithFile(configFile)

	if err == nil {
		t.Error("LoadWithFile() expected validation error, got nil")
	}
}

// TestLoadWithoutValidation tests loading without validation.
func TestLoadWithoutValidation(t *testing.T) {
	clearInvoiceCardEnvVars()
	defer clearInvoiceCardEnvVars()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invoicecard.yaml")

	yamlContent := `
log_level: invalid_level
server:
  port: -1
layout:
  db_thresh: 5.0
`

	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		t.Errorf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadWithFileWithoutValidation() returned nil config")
	}

	if cfg.LogLevel != "invalid_level" {
		t.Errorf("Expected log level 'invalid_level', got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != -1 {
		t.Errorf("Expected port -1, got %d", cfg.Server.Port)
	}
}

// TestEnvironmentVariableOverride tests environment variable override.
func TestEnvironmentVariableOverride(t *testing.T) {
	clearInvoiceCardEnvVars()
	defer clearInvoiceCardEnvVars()

	envVars := map[string]string{
		"INVOICECARD_LOG_LEVEL":   "debug",
		"INVOICECARD_SERVER_PORT": "9999",
		"INVOICECARD_VERBOSE":     "true",
	}

	for key, value := range envVars {
		if err := os.Setenv(key, value); err != nil {
			t.Fatalf("Failed to set env var %s: %v", key, err)
		}
	}

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Errorf("Load() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose true from env")
	}
}

// TestEnvironmentVariableWithUnderscores tests nested config with underscores.
func TestEnvironmentVariableWithUnderscores(t *testing.T) {
	clearInvoiceCardEnvVars()
	defer clearInvoiceCardEnvVars()

	envVars := map[string]string{
		"INVOICECARD_LAYOUT_DB_THRESH":        "0.45",
		"INVOICECARD_OCR_LANGUAGE":            "fr",
		"INVOICECARD_FEATURES_ORIENTATION_ENABLED":   "true",
		"INVOICECARD_FEATURES_ORIENTATION_THRESHOLD": "0.85",
	}

	for key, value := range envVars {
		if err := os.Setenv(key, value); err != nil {
			t.Fatalf("Failed to set env var %s: %v", key, err)
		}
	}

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Errorf("Load() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.Layout.DbThresh != 0.45 {
		t.Errorf("Expected db_thresh 0.45 from env, got %f", cfg.Layout.DbThresh)
	}
	if cfg.OCR.Language != "fr" {
		t.Errorf("Expected language 'fr' from env, got %s", cfg.OCR.Language)
	}
	if !cfg.Features.OrientationEnabled {
		t.Error("Expected orientation enabled from env")
	}
	if cfg.Features.OrientationThreshold != 0.85 {
		t.Errorf("Expected orientation threshold 0.85 from env, got %f", cfg.Features.OrientationThreshold)
	}
}

// TestGetSetConfigValues tests Get and Set methods.
func TestGetSetConfigValues(t *testing.T) {
	loader := NewLoader()

	loader.Set("test_key", testValue)

	value := loader.GetString("test_key")
	if value != testValue {
		t.Errorf("Expected '%s', got %s", testValue, value)
	}

	genericValue := loader.Get("test_key")
	if genericValue != testValue {
		t.Errorf("Expected '%s', got %v", testValue, genericValue)
	}
}

// TestGetConfigFileUsed tests getting the config file path.
func TestGetConfigFileUsed(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invoicecard.yaml")

	yamlContent := `log_level: debug`
	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	_, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}

	usedFile := loader.GetConfigFileUsed()
	if usedFile != configFile {
		t.Errorf("Expected config file %s, got %s", configFile, usedFile)
	}
}

// TestGetViper tests getting the viper instance.
func TestGetViper(t *testing.T) {
	loader := NewLoader()
	v := loader.GetViper()

	if v == nil {
		t.Error("GetViper() returned nil")
	}
	if v != loader.v {
		t.Error("GetViper() returned different instance")
	}
}

// TestGetResolvedConfig tests getting all resolved config.
func TestGetResolvedConfig(t *testing.T) {
	loader := NewLoader()
	loader.Set("test_key", testValue)

	resolved := loader.GetResolvedConfig()
	if resolved == nil {
		t.Error("GetResolvedConfig() returned nil")
	}

	if value, ok := resolved["test_key"]; !ok || value != testValue {
		t.Errorf("Expected test_key='%s' in resolved config, got %v", testValue, value)
	}
}

// TestWriteConfigToFile tests writing config to file.
func TestWriteConfigToFile(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.yaml")

	loader := NewLoader()
	loader.Set("log_level", "debug")
	loader.Set("verbose", true)

	if err := loader.WriteConfigToFile(outputFile); err != nil {
		t.Errorf("WriteConfigToFile() error: %v", err)
	}

	if _, err := os.Stat(outputFile); os.IsNotExist(err) {
		t.Error("Config file was not written")
	}
}

// TestGenerateDefaultConfigFile tests generating a default config file.
func TestGenerateDefaultConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "default.yaml")

	if err := GenerateDefaultConfigFile(outputFile); err != nil {
		t.Errorf("GenerateDefaultConfigFile() error: %v", err)
	}

	if _, err := os.Stat(outputFile); os.IsNotExist(err) {
		t.Error("Default config file was not generated")
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFile(outputFile)
	if err != nil {
		t.Errorf("Failed to load generated config: %v", err)
	}
	if cfg == nil {
		t.Error("Loaded config is nil")
	}
}

// TestGenerateDefaultConfigFileWithEmptyFilename tests default filename.
func TestGenerateDefaultConfigFileWithEmptyFilename(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	if err := GenerateDefaultConfigFile(""); err != nil {
		t.Errorf("GenerateDefaultConfigFile(\"\") error: %v", err)
	}

	expectedFile := filepath.Join(tmpDir, "invoicecard.yaml")
	if _, err := os.Stat(expectedFile); os.IsNotExist(err) {
		t.Error("Default invoicecard.yaml was not generated")
	}
}

// TestGetConfigSearchPaths tests getting config search paths.
func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()

	if len(paths) == 0 {
		t.Error("GetConfigSearchPaths() returned empty slice")
	}

	hasCurrentDir := false
	for _, path := range paths {
		if path == "." {
			hasCurrentDir = true
			break
		}
	}
	if !hasCurrentDir {
		t.Error("Search paths don't include current directory")
	}
}

// TestPrintConfigInfo tests printing config info (no assertions, just coverage).
func TestPrintConfigInfo(t *testing.T) {
	loader := NewLoader()
	loader.PrintConfigInfo()
}

// TestLoadWithEmptyConfigFile tests loading with empty config file.
func TestLoadWithEmptyConfigFile(t *testing.T) {
	clearInvoiceCardEnvVars()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invoicecard.yaml")

	if err := os.WriteFile(configFile, []byte(""), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Errorf("LoadWithFile() unexpected error: %v", err)
	}

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
}

// TestMultipleConfigSourcesPrecedence tests precedence of config sources.
func TestMultipleConfigSourcesPrecedence(t *testing.T) {
	clearInvoiceCardEnvVars()
	defer clearInvoiceCardEnvVars()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invoicecard.yaml")

	yamlContent := `log_level: warn`
	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if err := os.Setenv("INVOICECARD_LOG_LEVEL", "debug"); err != nil {
		t.Fatalf("Failed to set env var: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Errorf("LoadWithFile() error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env (should override file), got %s", cfg.LogLevel)
	}
}

// TestLoadWithEmptyFilenameUsesDefaultLoad tests that LoadWithFile("") uses Load().
func TestLoadWithEmptyFilenameUsesDefaultLoad(t *testing.T) {
	clearInvoiceCardEnvVars()

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFile("")
	if err != nil {
		t.Errorf("LoadWithFile(\"\") unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadWithFile(\"\") returned nil config")
	}

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level, got %s", cfg.LogLevel)
	}
}

// TestLoadWithoutValidationUsesDefaults tests LoadWithoutValidation with no file.
func TestLoadWithoutValidationUsesDefaults(t *testing.T) {
	clearInvoiceCardEnvVars()

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithoutValidation()
	if err != nil {
		t.Errorf("LoadWithoutValidation() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadWithoutValidation() returned nil config")
	}

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level, got %s", cfg.LogLevel)
	}
}

// TestLoadWithFileWithoutValidationEmptyString tests empty string behavior.
func TestLoadWithFileWithoutValidationEmptyString(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFileWithoutValidation("")
	if err != nil {
		t.Errorf("LoadWithFileWithoutValidation(\"\") unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadWithFileWithoutValidation(\"\") returned nil config")
	}
}

// TestBindFlag tests BindFlag (currently a no-op).
func TestBindFlag(t *testing.T) {
	loader := NewLoader()
	if err := loader.BindFlag("test.key", "test-flag"); err != nil {
		t.Errorf("BindFlag() unexpected error: %v", err)
	}
}

// TestBindFlagSet tests BindFlagSet (currently a no-op).
func TestBindFlagSet(t *testing.T) {
	loader := NewLoader()
	if err := loader.BindFlagSet(nil); err != nil {
		t.Errorf("BindFlagSet() unexpected error: %v", err)
	}
}
