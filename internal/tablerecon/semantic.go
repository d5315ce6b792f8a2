package tablerecon

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cardmill/invoicecard/internal/card"
)

var lineItemStartKeywords = []string{
	"description", "item", "product", "service", "qty", "quantity",
	"unit price", "price", "amount", "total", "line", "details",
}

var lineItemEndKeywords = []string{
	"subtotal", "net total", "total ex", "vat", "tax", "grand total",
	"amount due", "balance", "payment", "terms",
}

var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`£\d+\.\d{2}`),
	regexp.MustCompile(`\$\d+\.\d{2}`),
	regexp.MustCompile(`€\d+\.\d{2}`),
	regexp.MustCompile(`\d+\.\d{2}`),
}

// descQtyUnitTotal matches "DESCRIPTION QTY x UNIT TOTAL".
var descQtyUnitTotal = regexp.MustCompile(
	`(?i)^(.+?)\s+(\d+(?:\.\d+)?)\s*x\s*[£$€]?\s*(\d+(?:,\d+)*(?:\.\d{2})?)\s*[£$€]?\s*(\d+(?:,\d+)*(?:\.\d{2})?)`)

// descUnitEachQtyUnitsTotal matches "DESCRIPTION UNIT each QTY units TOTAL".
var descUnitEachQtyUnitsTotal = regexp.MustCompile(
	`(?i)^(.+?)\s+[£$€]?\s*(\d+(?:,\d+)*(?:\.\d{2})?)\s+each\s+(\d+(?:\.\d+)?)\s+units\s+[£$€]?\s*(\d+(?:,\d+)*(?:\.\d{2})?)`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// SemanticResult is the outcome of parsing a table block's raw text with
// regex row patterns instead of spatial clustering.
type SemanticResult struct {
	Items      []card.LineItem
	Confidence float64
}

// ExtractFromText parses line items out of a table block's concatenated
// text. It finds the line-item section between a start-keyword line and an
// end-keyword (totals) line, then parses each candidate line with an ordered
// set of strategies, keeping the first that yields a description.
func ExtractFromText(text string) SemanticResult {
	if text == "" {
		return SemanticResult{}
	}

	lines := strings.Split(text, "\n")
	section := findLineItemSection(lines)

	items := make([]card.LineItem, 0, len(section))
	var confSum float64
	for i, line := range section {
		item, ok := parseLine(line, i)
		if !ok {
			continue
		}
		confSum += item.Confidence
		items = append(items, item)
	}

	var avgConf float64
	if len(items) > 0 {
		avgConf = confSum / float64(len(items))
	}
	return SemanticResult{Items: items, Confidence: avgConf}
}

func findLineItemSection(lines []string) []string {
	var section []string
	inItems := false

	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))

		if !inItems {
			if containsAny(lower, lineItemStartKeywords) {
				hasPrice := false
				for _, p := range pricePatterns {
					if p.MatchString(line) {
						hasPrice = true
						break
					}
				}
				if hasPrice || strings.Contains(lower, "description") || strings.Contains(lower, "item") {
					inItems = true
				}
				continue
			}
			continue
		}

		if containsAny(lower, lineItemEndKeywords) {
			break
		}
		if trimmed := strings.TrimSpace(line); len(trimmed) > 3 {
			section = append(section, line)
		}
	}

	return section
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// parseLine tries the ordered strategy list and returns the first parse that
// produced a description, Go idiom replacing the original's try/except
// cascade.
func parseLine(line string, rowIndex int) (card.LineItem, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 5 {
		return card.LineItem{}, false
	}
	// parseTabularLine needs the original run of spaces intact to tell a
	// column gap from a word gap; parsePatternBasedLine's regexes match
	// \s+ either way, so they get the normalized form.
	clean := strings.Join(strings.Fields(trimmed), " ")

	strategies := []func() (card.LineItem, bool){
		func() (card.LineItem, bool) { return parseTabularLine(trimmed) },
		func() (card.LineItem, bool) { return parsePatternBasedLine(clean) },
	}
	for _, strategy := range strategies {
		if item, ok := strategy(); ok && item.Description != "" {
			item.RowIndex = rowIndex
			item.Provenance = card.ProvenanceSemantic
			return item, true
		}
	}
	return card.LineItem{}, false
}

var skipTokens = []string{"total", "subtotal", "vat", "tax", "amount"}

// parseTabularLine splits on tab/pipe/two-space delimiters, then buckets
// each part into quantity, price fields, or description, requiring two of
// the three numeric fields before emitting an item per the Open Question
// resolution below.
func parseTabularLine(line string) (card.LineItem, bool) {
	var parts []string
	for _, delim := range []string{"\t", " | ", " |", "| ", "|"} {
		if strings.Contains(line, delim) {
			candidate := splitNonEmpty(line, delim)
			if len(candidate) >= 3 {
				parts = candidate
				break
			}
		}
	}
	if parts == nil {
		parts = multiSpace.Split(line, -1)
		parts = filterEmpty(parts)
	}
	if len(parts) < 2 {
		return card.LineItem{}, false
	}

	var descParts []string
	var numbers []float64
	qtySeen := false

	for _, part := range parts {
		lower := strings.ToLower(part)
		if containsAny(lower, skipTokens) {
			continue
		}
		if !qtySeen {
			if v, err := strconv.ParseFloat(part, 64); err == nil {
				numbers = append(numbers, v)
				qtySeen = true
				continue
			}
		}
		if v, ok := parseAmount(part); ok {
			numbers = append(numbers, v)
			continue
		}
		descParts = append(descParts, part)
	}

	if len(descParts) == 0 {
		return card.LineItem{}, false
	}
	if len(numbers) < 2 {
		return card.LineItem{}, false
	}

	return buildItem(strings.Join(descParts, " "), numbers), true
}

// parsePatternBasedLine applies the two fixed row shapes from the original
// extraction patterns.
func parsePatternBasedLine(line string) (card.LineItem, bool) {
	if m := descQtyUnitTotal.FindStringSubmatch(line); m != nil {
		qty, _ := strconv.ParseFloat(m[2], 64)
		unit, _ := parseAmount(m[3])
		total, _ := parseAmount(m[4])
		return card.LineItem{
			Description: strings.TrimSpace(m[1]),
			Quantity:    &qty,
			UnitPrice:   toMinorUnits(unit),
			LineTotal:   toMinorUnits(total),
			RawAmounts:  true,
			Confidence:  0.6,
		}, true
	}
	if m := descUnitEachQtyUnitsTotal.FindStringSubmatch(line); m != nil {
		unit, _ := parseAmount(m[2])
		qty, _ := strconv.ParseFloat(m[3], 64)
		total, _ := parseAmount(m[4])
		return card.LineItem{
			Description: strings.TrimSpace(m[1]),
			Quantity:    &qty,
			UnitPrice:   toMinorUnits(unit),
			LineTotal:   toMinorUnits(total),
			RawAmounts:  true,
			Confidence:  0.6,
		}, true
	}
	return card.LineItem{}, false
}

// buildItem assigns description+numbers to quantity/unit_price/line_total
// by position, leaving the third null when only two numeric fields were
// captured, per the terse-row Open Question resolution.
func buildItem(description string, numbers []float64) card.LineItem {
	item := card.LineItem{Description: description, Confidence: 0.5}
	switch len(numbers) {
	case 2:
		q := numbers[0]
		item.Quantity = &q
		item.LineTotal = toMinorUnits(numbers[1])
		item.RawAmounts = true
	default:
		q := numbers[0]
		item.Quantity = &q
		item.UnitPrice = toMinorUnits(numbers[1])
		item.LineTotal = toMinorUnits(numbers[len(numbers)-1])
		item.RawAmounts = true
	}
	return item
}

func splitNonEmpty(s, sep string) []string {
	raw := strings.Split(s, sep)
	return filterEmpty(raw)
}

func filterEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
