// Package fields parses header fields (supplier, invoice number, date,
// currency) and totals (subtotal, tax, grand total) out of non-table OCR
// blocks via an ordered parser registry, with an optional per-deployment
// Template override.
package fields

import (
	"regexp"
	"strconv"
	"strings"
)

// Template biases or overrides the default parsers for a known supplier
// layout. A nil Template means the defaults apply unchanged.
type Template struct {
	Name             string
	SupplierOverride string
}

// HeaderFields is the result of running the registry over a page's
// non-table block text.
type HeaderFields struct {
	SupplierName  *string
	InvoiceNumber *string
	InvoiceDate   *string // ISO-8601
	Currency      *string
	Subtotal      *float64
	TaxAmount     *float64
	TotalAmount   *float64
}

var legalSuffixes = []string{"LTD", "LIMITED", "INC", "CORP", "LLC", "SUPPLIES", "SERVICES", "PRODUCTS"}

var supplierLeadIn = regexp.MustCompile(`(?i)^\s*(Supplier|Vendor|From)\s*:?\s*(.+)$`)

var invoiceNumberPattern = regexp.MustCompile(`(?i)(Invoice|Inv|Ref)(\s*(No|#))?\s*:?\s*([A-Z0-9-]+)`)

var currencySymbols = map[rune]string{'£': "GBP", '€': "EUR", '$': "USD"}
var currencyCodes = []string{"GBP", "EUR", "USD"}

// Word boundaries keep "total" from matching inside "subtotal" — Go's RE2
// engine has no lookbehind, so the boundary anchor is the only way to stop
// the broader total pattern from swallowing a subtotal line.
var amountLabels = map[string]*regexp.Regexp{
	"subtotal": regexp.MustCompile(`(?i)\bsub\s*-?\s*total\b\s*:?\s*[£$€]?\s*([\d,]+\.?\d*)`),
	"tax":      regexp.MustCompile(`(?i)\b(?:vat|tax)\b\s*(?:\(\d+%\))?\s*:?\s*[£$€]?\s*([\d,]+\.?\d*)`),
	"total":    regexp.MustCompile(`(?i)\b(?:grand\s*total|total)\b\s*:?\s*[£$€]?\s*([\d,]+\.?\d*)`),
}

// Parse runs the default parser registry over the concatenated text of a
// page's non-table blocks. An optional template overrides the supplier
// field and may be extended by deployments with known supplier layouts.
func Parse(lines []string, tmpl *Template) HeaderFields {
	var out HeaderFields

	for _, line := range lines {
		if out.SupplierName == nil {
			if s, ok := parseSupplier(line); ok {
				out.SupplierName = &s
			}
		}
		if out.InvoiceNumber == nil {
			if s, ok := parseInvoiceNumber(line); ok {
				out.InvoiceNumber = &s
			}
		}
		if out.InvoiceDate == nil {
			if s, ok := parseInvoiceDate(line); ok {
				out.InvoiceDate = &s
			}
		}
		if out.Currency == nil {
			if s, ok := parseCurrency(line); ok {
				out.Currency = &s
			}
		}
		if out.Subtotal == nil {
			if v, ok := parseLabeledAmount(line, "subtotal"); ok {
				out.Subtotal = &v
			}
		}
		if out.TaxAmount == nil {
			if v, ok := parseLabeledAmount(line, "tax"); ok {
				out.TaxAmount = &v
			}
		}
		if out.TotalAmount == nil {
			if v, ok := parseLabeledAmount(line, "total"); ok {
				out.TotalAmount = &v
			}
		}
	}

	if tmpl != nil && tmpl.SupplierOverride != "" {
		override := tmpl.SupplierOverride
		out.SupplierName = &override
	}

	return out
}

func parseSupplier(line string) (string, bool) {
	if m := supplierLeadIn.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[2])
		if name != "" {
			return name, true
		}
	}

	trimmed := strings.TrimSpace(line)
	upper := strings.ToUpper(trimmed)
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(upper, suffix) && len(trimmed) > len(suffix) {
			return trimmed, true
		}
	}
	return "", false
}

func parseInvoiceNumber(line string) (string, bool) {
	m := invoiceNumberPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[4], true
}

var (
	isoDate   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
)

// parseInvoiceDate accepts YYYY-MM-DD directly, and for slash-separated
// dates tries DD/MM/YYYY before MM/DD/YYYY, mapping two-digit years into
// the 2000s, per the fixed DD/MM precedence the deployment may override.
func parseInvoiceDate(line string) (string, bool) {
	if m := isoDate.FindStringSubmatch(line); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3], true
	}

	m := slashDate.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	year := normalizeYear(m[3])

	if day, month, ok := asDDMM(a, b); ok {
		return formatISODate(year, month, day), true
	}
	if day, month, ok := asDDMM(b, a); ok {
		return formatISODate(year, month, day), true
	}
	return "", false
}

func asDDMM(day, month int) (int, int, bool) {
	if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
		return day, month, true
	}
	return 0, 0, false
}

func normalizeYear(raw string) int {
	y, _ := strconv.Atoi(raw)
	if len(raw) == 2 {
		y += 2000
	}
	return y
}

func formatISODate(year, month, day int) string {
	return strconvPad(year, 4) + "-" + strconvPad(month, 2) + "-" + strconvPad(day, 2)
}

func strconvPad(v, width int) string {
	s := strconv.Itoa(v)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func parseCurrency(line string) (string, bool) {
	for symbol, code := range currencySymbols {
		if strings.ContainsRune(line, symbol) {
			return code, true
		}
	}
	upper := strings.ToUpper(line)
	for _, code := range currencyCodes {
		if strings.Contains(upper, code) {
			return code, true
		}
	}
	return "", false
}

func parseLabeledAmount(line, field string) (float64, bool) {
	pattern := amountLabels[field]
	m := pattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	cleaned := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
