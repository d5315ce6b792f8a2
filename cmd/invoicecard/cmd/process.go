package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// processCmd represents the process command.
var processCmd = &cobra.Command{
	Use:   "process [file...]",
	Short: "Run one or more documents through the invoicecard pipeline",
	Long: `Process one or more invoice/receipt files (image or PDF) and print the
resulting InvoiceCard as JSON.

Examples:
  invoicecard process invoice.pdf
  invoicecard process receipt.jpg --output card.json
  invoicecard process *.pdf --format json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	processCmd.Flags().StringP("format", "f", "json", "output format (json)")
	processCmd.Flags().Int("parallel-workers", 0, "pages processed concurrently (0 = configured default)")
	processCmd.Flags().String("supplier-template", "", "known supplier template name to bias field extraction")

	if err := viper.BindPFlag("output.file", processCmd.Flags().Lookup("output")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("output.format", processCmd.Flags().Lookup("format")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	workers, _ := cmd.Flags().GetInt("parallel-workers")
	supplierTemplate, _ := cmd.Flags().GetString("supplier-template")
	outputFile, _ := cmd.Flags().GetString("output")

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
		return fmt.Errorf("process: build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing pipeline: %v\n", err)
		}
	}()

	var outputs []string
	for _, path := range args {
		doc, err := documentFromPath(path)
		if err != nil {
			return err
		}

		result, err := pl.ProcessDocument(ctx, doc)
		if err != nil {
			// Per-page failures degrade a PageResult's confidence/errors
			// rather than aborting the run; only InputUnreadable (caught
			// earlier, before any card exists) stops processing outright.
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "process: %s: %v\n", path, err)
		}

		out := struct {
			File string          `json:"file"`
			Card card.InvoiceCard `json:"card"`
		}{File: path, Card: result}

		bts, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("process: marshal result for %s: %w", path, err)
		}
		outputs = append(outputs, string(bts))
	}

	final := strings.Join(outputs, "\n")
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(final), 0o600); err != nil {
			return fmt.Errorf("process: write output file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
		return nil
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), final)
	return err
}

// documentFromPath builds a card.Document for a local file, generating a
// fresh doc_id/slug the way a single-shot CLI run needs to since there is
// no upstream request to carry one.
func documentFromPath(path string) (card.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return card.Document{}, fmt.Errorf("process: %w", err)
	}
	id := uuid.New().String()
	return card.Document{
		DocID:      id,
		SourcePath: path,
		MIME:       mimeFromPath(path),
		Slug:       strings.ReplaceAll(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), " ", "_") + "-" + id[:8],
	}, nil
}
