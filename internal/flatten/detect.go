package flatten

import (
	"strings"

	"hitsflat/internal/record"
)

// DetectStructured returns, in column order, the columns of sample whose value
// is a string wrapped in {} or []. The caller sniffs one row and applies the
// result to the whole run.
func DetectStructured(sample *record.Record) []string {
	var out []string
	sample.Each(func(k string, v any) {
		if s, ok := v.(string); ok && LooksStructured(s) {
			out = append(out, k)
		}
	})
	return out
}

// LooksStructured reports whether s starts and ends with matching object or
// list delimiters.
func LooksStructured(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") ||
		strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}
