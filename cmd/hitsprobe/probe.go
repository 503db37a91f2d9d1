package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"hitsflat/internal/flatten"
	csvparser "hitsflat/internal/parser/csv"
	"hitsflat/internal/record"
)

// hitNumberRe finds hitNumber values in text the parsers reject.
var hitNumberRe = regexp.MustCompile(`'hitNumber':\s*'(\d+)'`)

type rowProbe struct {
	Row        int
	Line       int
	Hits       int
	HitNumbers []int
	Regex      bool // values came from the pattern fallback
	Err        error
}

type probe struct {
	Column  string
	Scanned int
	Rows    []rowProbe

	WithHits        int
	MaxHits         int
	MaxHitsRow      int
	MaxHitNumber    int
	MaxHitNumberRow int
	Failed          int
}

// probeFile inspects up to limit data rows of path; limit 0 reads all.
func probeFile(ctx context.Context, path, column string, limit int) (*probe, error) {
	info, err := csvparser.DetectEncoding(ctx, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csvparser.NewReader(f, info.Encoding)
	header, err := r.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	col := -1
	for i, h := range header {
		if h == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found; columns: %s", column, strings.Join(header, ", "))
	}

	p := &probe{Column: column}
	for limit <= 0 || p.Scanned < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		var re *csvparser.RowError
		if err != nil && !errors.As(err, &re) {
			return nil, err
		}
		p.Scanned++
		rp := rowProbe{Row: p.Scanned, Line: row.Line}
		if re != nil {
			rp.Err = re
		} else if col < len(row.Cells) && row.Cells[col] != "" {
			rp.Hits, rp.HitNumbers, rp.Regex, rp.Err = probeCell(row.Cells[col])
		}
		p.add(rp)
	}
	return p, nil
}

func (p *probe) add(rp rowProbe) {
	p.Rows = append(p.Rows, rp)
	if rp.Err != nil {
		p.Failed++
		return
	}
	if rp.Hits > 0 {
		p.WithHits++
	}
	if rp.Hits > p.MaxHits {
		p.MaxHits, p.MaxHitsRow = rp.Hits, rp.Row
	}
	for _, n := range rp.HitNumbers {
		if n > p.MaxHitNumber {
			p.MaxHitNumber, p.MaxHitNumberRow = n, rp.Row
		}
	}
}

// probeCell decodes one hits cell. When no parser accepts it, hitNumber
// values are pulled out with a pattern and each match counts as a hit.
func probeCell(s string) (hits int, numbers []int, regex bool, err error) {
	v, derr := flatten.DecodeHits(s)
	if derr == nil {
		list, ok := v.([]any)
		if !ok {
			return 0, nil, false, fmt.Errorf("hits is %T, not a list", v)
		}
		for _, elem := range list {
			hit, ok := elem.(*record.Object)
			if !ok {
				continue
			}
			if raw, ok := hit.Get("hitNumber"); ok {
				if n, ok := toInt(raw); ok {
					numbers = append(numbers, n)
				}
			}
		}
		return len(list), numbers, false, nil
	}

	matches := hitNumberRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, nil, false, derr
	}
	for _, m := range matches {
		if n, err := strconv.Atoi(m[1]); err == nil {
			numbers = append(numbers, n)
		}
	}
	return len(matches), numbers, true, nil
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case record.Number:
		n, err := strconv.Atoi(string(x))
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}

func (p *probe) print(w io.Writer, detail bool) {
	if detail {
		for _, rp := range p.Rows {
			switch {
			case rp.Err != nil:
				fmt.Fprintf(w, "Row %d (line %d): error: %v\n", rp.Row, rp.Line, rp.Err)
			case rp.Regex:
				fmt.Fprintf(w, "Row %d (line %d): %d hits (pattern), hitNumbers: %v\n", rp.Row, rp.Line, rp.Hits, rp.HitNumbers)
			default:
				fmt.Fprintf(w, "Row %d (line %d): %d hits, hitNumbers: %v\n", rp.Row, rp.Line, rp.Hits, rp.HitNumbers)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Rows inspected: %d\n", p.Scanned)
	fmt.Fprintf(w, "Rows with hits: %d\n", p.WithHits)
	fmt.Fprintf(w, "Rows not decoded: %d\n", p.Failed)
	fmt.Fprintf(w, "Max hits in a row: %d (row %d)\n", p.MaxHits, p.MaxHitsRow)
	fmt.Fprintf(w, "Max hitNumber: %d (row %d)\n", p.MaxHitNumber, p.MaxHitNumberRow)
}
