package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FormatResult renders result in the requested format: "json", "csv", or
// "text". Unrecognized formats fall back to "text".
func FormatResult(result *Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return formatJSON(result)
	case "csv":
		return formatCSV(result)
	default:
		return formatText(result), nil
	}
}

func formatJSON(result *Result) (string, error) {
	type jsonItem struct {
		Path  string `json:"path"`
		Error string `json:"error,omitempty"`
		Card  any    `json:"card"`
	}
	out := struct {
		Items       []jsonItem `json:"items"`
		WorkerCount int        `json:"worker_count"`
		DurationMS  int64      `json:"duration_ms"`
		FailedCount int        `json:"failed_count"`
	}{
		WorkerCount: result.WorkerCount,
		DurationMS:  result.Duration.Milliseconds(),
		FailedCount: result.FailedCount(),
	}
	for _, it := range result.Items {
		ji := jsonItem{Path: it.Path, Card: it.Card}
		if it.Err != nil {
			ji.Error = it.Err.Error()
		}
		out.Items = append(out.Items, ji)
	}
	bts, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("batch: marshal json output: %w", err)
	}
	return string(bts), nil
}

func formatCSV(result *Result) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"path", "status", "supplier", "invoice_number", "invoice_date", "total_amount", "confidence", "error"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("batch: write csv header: %w", err)
	}

	for _, it := range result.Items {
		row := []string{
			it.Path,
			it.Card.Status.String(),
			stringOrEmpty(it.Card.SupplierName),
			stringOrEmpty(it.Card.InvoiceNumber),
			stringOrEmpty(it.Card.InvoiceDate),
			floatOrEmpty(it.Card.TotalAmount),
			strconv.FormatFloat(it.Card.OverallConfidence, 'f', 4, 64),
			errOrEmpty(it.Err),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("batch: write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("batch: flush csv writer: %w", err)
	}
	return sb.String(), nil
}

func formatText(result *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Processed %d document(s) with %d worker(s) in %s\n", len(result.Items), result.WorkerCount, result.Duration.Round(1_000_000))
	fmt.Fprintf(&sb, "Failed: %d\n\n", result.FailedCount())
	for _, it := range result.Items {
		if it.Err != nil {
			fmt.Fprintf(&sb, "FAIL  %s: %v\n", it.Path, it.Err)
			continue
		}
		fmt.Fprintf(&sb, "OK    %s  supplier=%q total=%s status=%s confidence=%.2f\n",
			it.Path, stringOrEmpty(it.Card.SupplierName), floatOrEmpty(it.Card.TotalAmount), it.Card.Status.String(), it.Card.OverallConfidence)
	}
	return sb.String()
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func errOrEmpty(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
