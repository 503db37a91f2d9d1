// Package literal turns serialized cell text into decoded values.
//
// Export tools write nested structures either as JSON or as Python literals
// (single quotes, True/False/None). This package offers a strict JSON
// decoder, a decoder for the Python literal subset those exports use, and the
// best-effort text repair that rewrites Python-ish text into JSON. The repair
// is textual and does not guarantee correct results for every combination of
// nesting and escaping.
package literal

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	escapedDoubleMark = "___ESCAPED_DOUBLE_QUOTE___"
	escapedSingleMark = "___ESCAPED_SINGLE_QUOTE___"
)

var (
	pythonTokens = strings.NewReplacer("True", "true", "False", "false", "None", "null")

	// 'key': pairs; the value side is handled by the blanket quote swap.
	singleQuotedKeyRe = regexp.MustCompile(`'([^']*)'(\s*:)`)
)

// ReplacePythonTokens substitutes True, False and None with their JSON
// spelling. The substitution is purely textual and also touches string
// contents.
func ReplacePythonTokens(s string) string {
	return pythonTokens.Replace(s)
}

// NormalizeQuotes rewrites single-quoted, Python-flavoured text into something
// a JSON decoder has a chance to accept. Input that is already valid JSON is
// returned unchanged.
//
// Steps:
//  1. every double quote becomes \" (existing \" stay as they are)
//  2. 'key': becomes "key":
//  3. remaining single quotes become double quotes (\' stays)
//  4. True/False/None become true/false/null
func NormalizeQuotes(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}

	s = strings.ReplaceAll(s, `\"`, escapedDoubleMark)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, escapedDoubleMark, `\"`)

	s = singleQuotedKeyRe.ReplaceAllString(s, `"${1}"${2}`)

	s = strings.ReplaceAll(s, `\'`, escapedSingleMark)
	s = strings.ReplaceAll(s, `'`, `"`)
	s = strings.ReplaceAll(s, escapedSingleMark, `\'`)

	return ReplacePythonTokens(s)
}

// LooksLikePythonList reports whether s is probably a Python repr of a list of
// dicts rather than JSON.
func LooksLikePythonList(s string) bool {
	return strings.HasPrefix(s, "[{") && (strings.Contains(s, "True") || strings.Contains(s, "False"))
}
