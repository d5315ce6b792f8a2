package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "invoicecard"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "INVOICECARD"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// loadDotEnv loads a local .env file (if present) into the process
// environment before viper's automatic env binding runs, so secrets such as
// the LLM API key or Postgres DSN can live outside the config file.
func loadDotEnv() {
	_ = godotenv.Load()
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	loadDotEnv()

	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadWithoutValidation loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration without validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	loadDotEnv()

	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	loadDotEnv()
	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	loadDotEnv()
	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// BindFlag is a no-op that always returns nil; it does not bind flagName
// to key.
func (l *Loader) BindFlag(key, flagName string) error {
	return nil
}

// BindFlagSet is a no-op that always returns nil; no flags are bound.
func (l *Loader) BindFlagSet(flagSet interface{}) error {
	return nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/invoicecard")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "invoicecard"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "invoicecard"))
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("raster.dpi", d.Raster.DPI)
	l.v.SetDefault("raster.max_long_edge_px", d.Raster.MaxLongEdgePx)
	l.v.SetDefault("raster.vector_text_shortcut", d.Raster.VectorTextShortcut)
	l.v.SetDefault("raster.artifact_root", d.Raster.ArtifactRoot)

	l.v.SetDefault("preprocess.feature_dewarp", d.Preprocess.FeatureDewarp)
	l.v.SetDefault("preprocess.feature_dual_path_preproc", d.Preprocess.FeatureDualPath)
	l.v.SetDefault("preprocess.clahe_clip_limit", d.Preprocess.CLAHEClipLimit)
	l.v.SetDefault("preprocess.clahe_tile_size", d.Preprocess.CLAHETileSize)
	l.v.SetDefault("preprocess.deskew_min_angle_rad", d.Preprocess.DeskewMinAngleRad)
	l.v.SetDefault("preprocess.comparator_tie_delta_pct", d.Preprocess.ComparatorTieDeltaPct)
	l.v.SetDefault("preprocess.rectification_height", d.Preprocess.RectificationHeight)

	l.v.SetDefault("layout.db_thresh", d.Layout.DbThresh)
	l.v.SetDefault("layout.db_box_thresh", d.Layout.DbBoxThresh)
	l.v.SetDefault("layout.use_nms", d.Layout.UseNMS)
	l.v.SetDefault("layout.nms_threshold", d.Layout.NMSThreshold)
	l.v.SetDefault("layout.num_threads", d.Layout.NumThreads)
	l.v.SetDefault("layout.max_image_size", d.Layout.MaxImageSize)
	l.v.SetDefault("layout.min_region_size", d.Layout.MinRegionSize)
	l.v.SetDefault("layout.degenerate_confidence", d.Layout.DegenerateConf)

	l.v.SetDefault("ocr.language", d.OCR.Language)
	l.v.SetDefault("ocr.image_height", d.OCR.ImageHeight)
	l.v.SetDefault("ocr.max_width", d.OCR.MaxWidth)
	l.v.SetDefault("ocr.pad_width_multiple", d.OCR.PadWidthMultiple)
	l.v.SetDefault("ocr.num_threads", d.OCR.NumThreads)
	l.v.SetDefault("ocr.secondary_languages", d.OCR.SecondaryLanguages)
	l.v.SetDefault("ocr.secondary_trigger_confidence", d.OCR.SecondaryTrigger)
	l.v.SetDefault("ocr.min_usable_ocr_confidence", d.OCR.MinUsableConfidence)

	l.v.SetDefault("table.row_gap_px", d.Table.RowGapPx)
	l.v.SetDefault("table.col_gap_px", d.Table.ColGapPx)
	l.v.SetDefault("table.geometric_tie_coverage", d.Table.GeometricTieCoverage)
	l.v.SetDefault("table.debug_dump_enabled", d.Table.DebugDumpEnabled)
	l.v.SetDefault("table.debug_dump_dir", d.Table.DebugDumpDir)

	l.v.SetDefault("reconcile.conf_field_min", d.Reconcile.ConfFieldMin)
	l.v.SetDefault("reconcile.conf_page_min", d.Reconcile.ConfPageMin)
	l.v.SetDefault("reconcile.conf_fallback_page", d.Reconcile.ConfFallbackPage)
	l.v.SetDefault("reconcile.conf_fallback_overall", d.Reconcile.ConfFallbackOverall)
	l.v.SetDefault("reconcile.llm_validation_error_threshold", d.Reconcile.ValidationErrThreshold)

	l.v.SetDefault("fallback.feature_donut_fallback", d.Fallback.FeatureDonut)
	l.v.SetDefault("fallback.feature_llm_extraction", d.Fallback.FeatureLLM)
	l.v.SetDefault("fallback.donut_url", d.Fallback.DonutURL)
	l.v.SetDefault("fallback.llm_model", d.Fallback.LLMModel)
	l.v.SetDefault("fallback.llm_timeout_seconds", d.Fallback.TimeoutSeconds)
	l.v.SetDefault("fallback.llm_max_retries", d.Fallback.MaxRetries)
	l.v.SetDefault("fallback.redis_addr", d.Fallback.RedisAddr)
	l.v.SetDefault("fallback.min_confidence_for_context", d.Fallback.MinConfidenceForCtx)

	l.v.SetDefault("store.postgres_dsn", d.Store.PostgresDSN)
	l.v.SetDefault("store.redis_addr", d.Store.RedisAddr)

	l.v.SetDefault("parallel.max_workers", d.Parallel.MaxWorkers)
	l.v.SetDefault("parallel.batch_size", d.Parallel.BatchSize)
	l.v.SetDefault("resource.max_goroutines", d.Resource.MaxGoroutines)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.confidence_precision", d.Output.ConfidencePrecision)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)

	l.v.SetDefault("features.orientation_enabled", d.Features.OrientationEnabled)
	l.v.SetDefault("features.orientation_threshold", d.Features.OrientationThreshold)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoader()
	loader.setDefaults()

	if filename == "" {
		filename = "invoicecard.yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", "invoicecard"))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "invoicecard"))
	}

	paths = append(paths, "/etc/invoicecard")

	return paths
}

// PrintConfigInfo prints information about configuration loading for debugging.
func (l *Loader) PrintConfigInfo() {
	fmt.Printf("Configuration file used: %s\n", l.GetConfigFileUsed())
	fmt.Printf("Configuration search paths: %v\n", GetConfigSearchPaths())
	fmt.Printf("Environment prefix: %s\n", EnvPrefix)
}
