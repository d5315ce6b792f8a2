package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "invoicecard",
	Short: "Offline document-understanding pipeline for invoices and receipts",
	Long: `invoicecard turns scanned invoices and receipts into structured data.

A document (image or PDF) is rasterized page by page, preprocessed, laid
out into header/body/table/footer blocks, OCR'd, reconstructed into line
items, and reconciled into a single InvoiceCard with a confidence-backed
status of ok, partial, or needs_review.

Examples:
  invoicecard process invoice.pdf
  invoicecard batch ./inbox --workers 4
  invoicecard serve --port 8080
  invoicecard readiness`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "invoicecard version dev")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Build: local development build")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Commit: local")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Date: development")
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

// setupLogging configures the global logger based on the provided configuration.
func setupLogging(cfg *config.Config) {
	var logLevel slog.Level

	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "info":
			logLevel = slog.LevelInfo
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/invoicecard, /etc/invoicecard)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing ONNX models (can also be set via GO_OAR_OCR_MODELS_DIR environment variable)")

	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

// initConfig reads in config file and ENV variables if set. Validation
// happens in individual commands, not here.
func initConfig() {
	configLoader = config.NewLoader()
}

// GetConfig returns the global configuration, re-unmarshaling from viper
// every call so CLI flags bound after initial load are still picked up.
func GetConfig() *config.Config {
	if globalConfig == nil {
		loader := GetConfigLoader()
		var err error
		if cfgFile != "" {
			globalConfig, err = loader.LoadWithFileWithoutValidation(cfgFile)
		} else {
			globalConfig, err = loader.LoadWithoutValidation()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
	}

	loader := GetConfigLoader()
	var cfg config.Config
	if err := loader.GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}

	setupLogging(&cfg)
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
