package clean

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// mojibakeNBSP is a no-break space that went through a Latin-1 round trip.
const mojibakeNBSP = "\u00c2\u00a0"

// dropControls removes control characters other than whitespace; the
// whitespace itself is collapsed afterwards.
var dropControls = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.IsControl(r) && !unicode.IsSpace(r)
}))

// Text collapses runs of whitespace to one space, trims the ends, drops
// control characters and returns the NFC form.
func Text(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, mojibakeNBSP, " ")
	if out, _, err := transform.String(transform.Chain(dropControls, norm.NFC), s); err == nil {
		s = out
	}
	return strings.Join(strings.Fields(s), " ")
}

type dateLayout struct {
	in, out string
}

var dateLayouts = []dateLayout{
	{"02/01/2006", "2006-01-02"},
	{"2006-01-02", "2006-01-02"},
	{"02-01-2006", "2006-01-02"},
	{"02/01/2006 15:04:05", "2006-01-02 15:04:05"},
	{"2006-01-02 15:04:05", "2006-01-02 15:04:05"},
	{"02-01-2006 15:04:05", "2006-01-02 15:04:05"},
	{time.RFC3339, "2006-01-02 15:04:05"},
}

// IsDateColumn reports whether a column name suggests it holds dates.
func IsDateColumn(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "fecha") || strings.Contains(n, "date")
}

// Date rewrites a day-first or ISO date as YYYY-MM-DD, keeping the time of
// day when the input has one. It returns false for text no layout accepts.
func Date(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return s, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.in, s); err == nil {
			return t.Format(l.out), true
		}
	}
	return s, false
}
