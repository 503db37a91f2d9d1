// Package csvutil contains resilient CSV helpers for "dirty" exports.
//
// encoding/csv is strict; analytics exports are not. Cells holding serialized
// structures contain newlines, stray quotes and unbalanced doubled quotes.
// These helpers split such input predictably so that the caller can retry a
// rejected line with a looser reading before giving up on it.
package csvutil

import (
	"bufio"
	"io"
	"strings"
)

// ReadLogicalCSVLine reads one logical CSV line from r. When a quoted field
// spans several physical lines the function keeps reading until it sees a
// plausible closing quote. Line terminators inside the logical line are kept
// as read; the final terminator is dropped.
//
// physical is the number of physical lines consumed. On EOF without a
// trailing newline the accumulated content is returned as the final line. If
// r is already at EOF, io.EOF is returned.
func ReadLogicalCSVLine(r *bufio.Reader) (line string, physical int, err error) {
	var sb strings.Builder
	inQuotes := false
	atStartOfField := true
	pendingTerm := ""

	for {
		part, rerr := r.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return "", physical, rerr
		}
		if rerr == io.EOF && part == "" && physical == 0 {
			return "", 0, io.EOF
		}
		if part != "" {
			physical++
		}
		body := strings.TrimRight(part, "\r\n")

		sb.WriteString(pendingTerm)
		sb.WriteString(body)
		pendingTerm = part[len(body):]

		for i := 0; i < len(body); i++ {
			switch body[i] {
			case ',':
				if !inQuotes {
					atStartOfField = true
				}
			case '"':
				if !inQuotes {
					// Opening quote only counts at the start of a field.
					if atStartOfField {
						inQuotes = true
					}
					atStartOfField = false
					continue
				}
				if i+1 < len(body) && body[i+1] == '"' {
					i++
					continue
				}
				if closesField(body, i+1) {
					inQuotes = false
					atStartOfField = false
				}
			default:
				if !inQuotes {
					atStartOfField = false
				}
			}
		}

		if !inQuotes || rerr == io.EOF {
			return sb.String(), physical, nil
		}
	}
}

// closesField reports whether only blanks separate position j from a
// delimiter or the end of s.
func closesField(s string, j int) bool {
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	return j >= len(s) || s[j] == ','
}

// ParseCSVLineLoose splits a single CSV line into fields with a tolerant
// strategy:
//   - Quotes inside unquoted fields are kept as literals.
//   - Inside a quoted field, "" is an escaped quote. When it sits right before
//     a delimiter or the end it also closes the field.
//   - A single quote closes a quoted field only before a delimiter or the end;
//     anywhere else it is kept as a literal.
//   - Commas inside quoted fields are preserved.
//
// The function never fails; malformed constructs degrade gracefully.
func ParseCSVLineLoose(line string) []string {
	var fields []string
	var sb strings.Builder
	inQuotes := false
	atStartOfField := true

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch ch {
		case ',':
			if inQuotes {
				sb.WriteByte(',')
				continue
			}
			fields = append(fields, sb.String())
			sb.Reset()
			atStartOfField = true
		case '"':
			if !inQuotes {
				if atStartOfField {
					inQuotes = true
				} else {
					sb.WriteByte('"')
				}
				atStartOfField = false
				continue
			}
			if i+1 < len(line) && line[i+1] == '"' {
				sb.WriteByte('"')
				i++
				if closesField(line, i+1) {
					inQuotes = false
				}
				continue
			}
			if closesField(line, i+1) {
				inQuotes = false
				continue
			}
			sb.WriteByte('"')
		default:
			sb.WriteByte(ch)
			if !inQuotes {
				atStartOfField = false
			}
		}
	}
	return append(fields, sb.String())
}
