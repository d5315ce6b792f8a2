package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cardmill/invoicecard/internal/batch"
	"github.com/cardmill/invoicecard/internal/pipeline"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [path...]",
	Short: "Process a directory or list of documents concurrently",
	Long: `Discover invoice/receipt documents under one or more paths and run
each through the invoicecard pipeline with bounded concurrency.

Examples:
  invoicecard batch ./inbox --workers 4
  invoicecard batch ./inbox --recursive --format csv --output report.csv`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntP("workers", "w", 0, "concurrent workers (0 = configured default)")
	batchCmd.Flags().Bool("recursive", false, "recurse into subdirectories")
	batchCmd.Flags().Bool("continue-on-error", true, "keep processing remaining documents after a failure")
	batchCmd.Flags().StringSlice("include", nil, "glob patterns to include (default: pdf, png, jpg, jpeg, tif, tiff, bmp)")
	batchCmd.Flags().StringSlice("exclude", nil, "glob patterns to exclude")
	batchCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	batchCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	batchCmd.Flags().String("supplier-template", "", "known supplier template name to bias field extraction")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	workers, _ := cmd.Flags().GetInt("workers")
	recursive, _ := cmd.Flags().GetBool("recursive")
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("output")
	supplierTemplate, _ := cmd.Flags().GetString("supplier-template")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	collabs, err := buildCollaborators(ctx, *cfg)
	if err != nil {
		return err
	}
	defer collabs.close()

	b := pipeline.NewBuilder(*cfg).WithStore(collabs.store).WithAudit(collabs.audit)
	if workers > 0 {
		b = b.WithParallelWorkers(workers)
	}
	if supplierTemplate != "" {
		b = b.WithSupplierTemplate(supplierTemplate, "")
	}

	pl, err := b.Build()
	if err != nil {
		return fmt.Errorf("batch: build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing pipeline: %v\n", err)
		}
	}()

	batchCfg := batch.Config{
		Workers:         workers,
		ContinueOnError: continueOnError,
		Recursive:       recursive,
		IncludePatterns: include,
		ExcludePatterns: exclude,
		Format:          format,
		OutputFile:      outputFile,
	}

	var progress pipeline.ProgressCallback = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "batch")
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		progress = pipeline.NoOpProgressCallback{}
	}

	result, formatted, err := batch.Run(ctx, pl, args, batchCfg, progress)
	if err != nil {
		return err
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(formatted), 0o600); err != nil {
			return fmt.Errorf("batch: write output file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatted)
	}

	if failed := result.FailedCount(); failed > 0 {
		return fmt.Errorf("batch: %d of %d document(s) failed", failed, len(result.Items))
	}
	return nil
}
