package tablerecon

import (
	"strconv"
	"strings"
)

// parseAmount strips an optional currency prefix/suffix and thousands
// separators, returning the decimal value when the token is numeric.
func parseAmount(token string) (float64, bool) {
	t := strings.TrimSpace(token)
	t = strings.Trim(t, "£$€")
	t = strings.ReplaceAll(t, ",", "")
	t = strings.TrimSpace(t)
	if t == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
