//nolint:lll
package config

// Config represents the complete configuration for invoicecard. It covers
// every command (process, serve, batch, readiness) and supports loading
// from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Stage configuration
	Raster     RasterConfig     `mapstructure:"raster" yaml:"raster" json:"raster"`
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Layout     LayoutConfig     `mapstructure:"layout" yaml:"layout" json:"layout"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Table      TableConfig      `mapstructure:"table" yaml:"table" json:"table"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile" yaml:"reconcile" json:"reconcile"`
	Fallback   FallbackConfig   `mapstructure:"fallback" yaml:"fallback" json:"fallback"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store" json:"store"`

	// Parallel processing across pages
	Parallel ParallelConfig `mapstructure:"parallel" yaml:"parallel" json:"parallel"`

	// Resource management
	Resource ResourceConfig `mapstructure:"resource" yaml:"resource" json:"resource"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Processing features
	Features FeatureConfig `mapstructure:"features" yaml:"features" json:"features"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// RasterConfig controls the Page Rasterizer.
type RasterConfig struct {
	DPI                int    `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
	MaxLongEdgePx      int    `mapstructure:"max_long_edge_px" yaml:"max_long_edge_px" json:"max_long_edge_px"`
	VectorTextShortcut bool   `mapstructure:"vector_text_shortcut" yaml:"vector_text_shortcut" json:"vector_text_shortcut"`
	ArtifactRoot       string `mapstructure:"artifact_root" yaml:"artifact_root" json:"artifact_root"`
}

// PreprocessConfig controls the dual-path Preprocessor.
type PreprocessConfig struct {
	FeatureDewarp         bool    `mapstructure:"feature_dewarp" yaml:"feature_dewarp" json:"feature_dewarp"`
	FeatureDualPath       bool    `mapstructure:"feature_dual_path_preproc" yaml:"feature_dual_path_preproc" json:"feature_dual_path_preproc"`
	CLAHEClipLimit        float64 `mapstructure:"clahe_clip_limit" yaml:"clahe_clip_limit" json:"clahe_clip_limit"`
	CLAHETileSize         int     `mapstructure:"clahe_tile_size" yaml:"clahe_tile_size" json:"clahe_tile_size"`
	DeskewMinAngleRad     float64 `mapstructure:"deskew_min_angle_rad" yaml:"deskew_min_angle_rad" json:"deskew_min_angle_rad"`
	ComparatorTieDeltaPct float64 `mapstructure:"comparator_tie_delta_pct" yaml:"comparator_tie_delta_pct" json:"comparator_tie_delta_pct"`
	RectificationHeight   int     `mapstructure:"rectification_height" yaml:"rectification_height" json:"rectification_height"`
	DebugDir              string  `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// LayoutConfig controls the Layout Detector: primary ONNX region detector
// plus the morphology-based fallback.
type LayoutConfig struct {
	ModelPath      string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DbThresh       float32 `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	DbBoxThresh    float32 `mapstructure:"db_box_thresh" yaml:"db_box_thresh" json:"db_box_thresh"`
	UseNMS         bool    `mapstructure:"use_nms" yaml:"use_nms" json:"use_nms"`
	NMSThreshold   float64 `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	NumThreads     int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	MaxImageSize   int     `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	MinRegionSize  int     `mapstructure:"min_region_size" yaml:"min_region_size" json:"min_region_size"`
	DegenerateConf float64 `mapstructure:"degenerate_confidence" yaml:"degenerate_confidence" json:"degenerate_confidence"`
}

// OCRConfig controls the OCR Engine: a primary ONNX recognizer and a
// secondary Tesseract fallback invoked below a confidence trigger.
type OCRConfig struct {
	PrimaryModelPath    string  `mapstructure:"primary_model_path" yaml:"primary_model_path" json:"primary_model_path"`
	DictPath            string  `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	DetectionModelPath  string  `mapstructure:"detection_model_path" yaml:"detection_model_path" json:"detection_model_path"`
	Language            string  `mapstructure:"language" yaml:"language" json:"language"`
	ImageHeight         int     `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth            int     `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	PadWidthMultiple    int     `mapstructure:"pad_width_multiple" yaml:"pad_width_multiple" json:"pad_width_multiple"`
	NumThreads          int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	SecondaryLanguages  string  `mapstructure:"secondary_languages" yaml:"secondary_languages" json:"secondary_languages"`
	SecondaryTrigger    float64 `mapstructure:"secondary_trigger_confidence" yaml:"secondary_trigger_confidence" json:"secondary_trigger_confidence"`
	MinUsableConfidence float64 `mapstructure:"min_usable_ocr_confidence" yaml:"min_usable_ocr_confidence" json:"min_usable_ocr_confidence"`
}

// TableConfig controls the Table Reconstructor's geometric clustering and
// semantic parsing strategies.
type TableConfig struct {
	RowGapPx             int     `mapstructure:"row_gap_px" yaml:"row_gap_px" json:"row_gap_px"`
	ColGapPx             int     `mapstructure:"col_gap_px" yaml:"col_gap_px" json:"col_gap_px"`
	GeometricTieCoverage float64 `mapstructure:"geometric_tie_coverage" yaml:"geometric_tie_coverage" json:"geometric_tie_coverage"`
	DebugDumpEnabled     bool    `mapstructure:"debug_dump_enabled" yaml:"debug_dump_enabled" json:"debug_dump_enabled"`
	DebugDumpDir         string  `mapstructure:"debug_dump_dir" yaml:"debug_dump_dir" json:"debug_dump_dir"`
}

// ReconcileConfig holds the confidence and validation thresholds used by
// the reconciler's status state machine.
type ReconcileConfig struct {
	ConfFieldMin           float64 `mapstructure:"conf_field_min" yaml:"conf_field_min" json:"conf_field_min"`
	ConfPageMin            float64 `mapstructure:"conf_page_min" yaml:"conf_page_min" json:"conf_page_min"`
	ConfFallbackPage       float64 `mapstructure:"conf_fallback_page" yaml:"conf_fallback_page" json:"conf_fallback_page"`
	ConfFallbackOverall    float64 `mapstructure:"conf_fallback_overall" yaml:"conf_fallback_overall" json:"conf_fallback_overall"`
	ValidationErrThreshold float64 `mapstructure:"llm_validation_error_threshold" yaml:"llm_validation_error_threshold" json:"llm_validation_error_threshold"`
}

// FallbackConfig controls the Donut/LLM external collaborators and the
// asynq-backed retry queue used to invoke them.
type FallbackConfig struct {
	FeatureDonut        bool    `mapstructure:"feature_donut_fallback" yaml:"feature_donut_fallback" json:"feature_donut_fallback"`
	FeatureLLM          bool    `mapstructure:"feature_llm_extraction" yaml:"feature_llm_extraction" json:"feature_llm_extraction"`
	DonutURL            string  `mapstructure:"donut_url" yaml:"donut_url" json:"donut_url"`
	LLMAPIKey           string  `mapstructure:"llm_api_key" yaml:"llm_api_key" json:"llm_api_key"`
	LLMModel            string  `mapstructure:"llm_model" yaml:"llm_model" json:"llm_model"`
	TimeoutSeconds      int     `mapstructure:"llm_timeout_seconds" yaml:"llm_timeout_seconds" json:"llm_timeout_seconds"`
	MaxRetries          int     `mapstructure:"llm_max_retries" yaml:"llm_max_retries" json:"llm_max_retries"`
	RedisAddr           string  `mapstructure:"redis_addr" yaml:"redis_addr" json:"redis_addr"`
	MinConfidenceForCtx float64 `mapstructure:"min_confidence_for_context" yaml:"min_confidence_for_context" json:"min_confidence_for_context"`
}

// StoreConfig holds DSNs for the reference Store/Audit collaborator
// adapters in internal/store. The pipeline core never sees these; only the
// host's wiring code does.
type StoreConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn" json:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr" json:"redis_addr"`
}

// ParallelConfig contains page-level parallel processing settings
// (a data-parallel map over RasterPage that preserves page
// order on write).
type ParallelConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	BatchSize  int `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
}

// ResourceConfig contains resource management settings.
type ResourceConfig struct {
	MaxGoroutines int `mapstructure:"max_goroutines" yaml:"max_goroutines" json:"max_goroutines"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format              string `mapstructure:"format" yaml:"format" json:"format"`
	File                string `mapstructure:"file" yaml:"file" json:"file"`
	ConfidencePrecision int    `mapstructure:"confidence_precision" yaml:"confidence_precision" json:"confidence_precision"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// FeatureConfig contains feature toggle settings shared across stages.
type FeatureConfig struct {
	OrientationEnabled   bool    `mapstructure:"orientation_enabled" yaml:"orientation_enabled" json:"orientation_enabled"`
	OrientationThreshold float64 `mapstructure:"orientation_threshold" yaml:"orientation_threshold" json:"orientation_threshold"`
	OrientationModelPath string  `mapstructure:"orientation_model_path" yaml:"orientation_model_path" json:"orientation_model_path"`
}

// GPUConfig contains GPU acceleration settings for the ONNX-backed stages.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
