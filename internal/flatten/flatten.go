// Package flatten expands serialized structures held in CSV cells into flat,
// prefixed columns.
//
// Two expansion regimes exist. The hits column (a list of event objects) is
// expanded element by element: <col>_count, <col>_<i>_<key>, one level of
// nested objects and the first element of nested lists. Every other structured
// column is expanded one level: object fields become <col>_<key>, lists
// become <col>_list_length plus the fields of their first element.
//
// Flattening is best effort. A column that cannot be decoded, or whose
// expansion fails for any reason, contributes nothing; the remaining columns
// are still produced.
package flatten

import (
	"fmt"
	"strconv"
	"strings"

	"hitsflat/internal/literal"
	"hitsflat/internal/record"
)

// DefaultHitsColumn is the column expanded with the hits regime unless
// configured otherwise.
const DefaultHitsColumn = "hits"

// Skip reasons reported by FlattenDetailed.
const (
	ReasonParse = "parse"
	ReasonPanic = "panic"
)

// Skip records one structured column that contributed nothing.
type Skip struct {
	Column string
	Reason string
	Err    error
}

// Result is the outcome of flattening one record.
type Result struct {
	Record  *record.Record
	Skipped []Skip
}

// Flattener holds the run-wide flattening settings. It keeps no per-row
// state, so one value can serve every row of a run.
type Flattener struct {
	HitsColumn string
	Base       int
}

// New returns a Flattener. An empty hitsColumn selects DefaultHitsColumn.
func New(hitsColumn string, base int) *Flattener {
	if hitsColumn == "" {
		hitsColumn = DefaultHitsColumn
	}
	return &Flattener{HitsColumn: hitsColumn, Base: base}
}

// Flatten expands rec using the default hits column name.
func Flatten(rec *record.Record, structured []string, base int) *record.Record {
	return New(DefaultHitsColumn, base).Flatten(rec, structured)
}

// Flatten returns a new record: every column of rec that is not listed in
// structured, unchanged and in order, followed by the expansion of each
// structured column. rec is not modified.
func (f *Flattener) Flatten(rec *record.Record, structured []string) *record.Record {
	return f.FlattenDetailed(rec, structured).Record
}

// FlattenDetailed is Flatten plus the list of structured columns that were
// dropped and why.
func (f *Flattener) FlattenDetailed(rec *record.Record, structured []string) Result {
	isStructured := make(map[string]struct{}, len(structured))
	for _, c := range structured {
		isStructured[c] = struct{}{}
	}

	out := record.New()
	rec.Each(func(k string, v any) {
		if _, ok := isStructured[k]; !ok {
			out.Set(k, v)
		}
	})

	var res Result
	for _, col := range structured {
		v, ok := rec.Get(col)
		if !ok {
			// Already expanded or never present.
			continue
		}
		if err := f.expandColumn(out, col, v); err != nil {
			reason := ReasonParse
			if _, isPanic := err.(panicError); isPanic {
				reason = ReasonPanic
			}
			res.Skipped = append(res.Skipped, Skip{Column: col, Reason: reason, Err: err})
		}
	}
	res.Record = out
	return res
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }

// expandColumn writes the expansion of one column into a scratch record and
// merges it into out only on success, so a failure halfway through leaves
// out untouched.
func (f *Flattener) expandColumn(out *record.Record, col string, raw any) (err error) {
	scratch := record.New()
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
		}
	}()

	if col == f.HitsColumn {
		err = f.expandHits(scratch, col, raw)
	} else {
		err = f.expandStructure(scratch, col, raw)
	}
	if err != nil {
		return err
	}
	scratch.Each(out.Set)
	return nil
}

// expandHits implements the hits regime.
func (f *Flattener) expandHits(out *record.Record, col string, raw any) error {
	data, err := DecodeHits(raw)
	if err != nil {
		return err
	}
	list, ok := data.([]any)
	if !ok {
		return nil
	}

	out.Set(col+"_count", len(list))
	for i, elem := range list {
		hit, ok := elem.(*record.Object)
		if !ok {
			continue
		}
		prefix := col + "_" + strconv.Itoa(i+f.Base) + "_"
		for p := hit.Oldest(); p != nil; p = p.Next() {
			k, v := p.Key, p.Value
			switch x := v.(type) {
			case *record.Object:
				for sp := x.Oldest(); sp != nil; sp = sp.Next() {
					out.Set(prefix+k+"_"+sp.Key, sp.Value)
				}
			case []any:
				if len(x) == 0 {
					out.Set(prefix+k, x)
					continue
				}
				out.Set(prefix+k+"_count", len(x))
				if first, ok := x[0].(*record.Object); ok {
					itemPrefix := prefix + k + "_" + strconv.Itoa(f.Base) + "_"
					for ip := first.Oldest(); ip != nil; ip = ip.Next() {
						out.Set(itemPrefix+ip.Key, ip.Value)
					}
				}
			default:
				out.Set(prefix+k, v)
			}
		}
	}
	return nil
}

// DecodeHits turns a raw hits cell into a value. Strings that look like a
// Python repr are tried with the literal parser first; everything else is
// tried as JSON after token substitution, with the literal parser as the
// last resort.
func DecodeHits(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}

	if literal.LooksLikePythonList(s) {
		if v, err := literal.ParsePython(s); err == nil {
			return v, nil
		}
		v, err := literal.ParseJSON(strings.TrimSpace(literal.ReplacePythonTokens(s)))
		if err != nil {
			return nil, fmt.Errorf("hits: %w", err)
		}
		return v, nil
	}

	if v, err := literal.ParseJSON(literal.ReplacePythonTokens(s)); err == nil {
		return v, nil
	}
	v, err := literal.ParsePython(s)
	if err != nil {
		return nil, fmt.Errorf("hits: %w", err)
	}
	return v, nil
}

// expandStructure implements the regime used for every non-hits column.
func (f *Flattener) expandStructure(out *record.Record, col string, raw any) error {
	var data any
	if s, ok := raw.(string); ok {
		v, err := literal.ParseJSON(literal.NormalizeQuotes(s))
		if err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
		data = v
	} else {
		data = raw
	}

	switch x := data.(type) {
	case *record.Object:
		for p := x.Oldest(); p != nil; p = p.Next() {
			out.Set(col+"_"+p.Key, p.Value)
		}
	case []any:
		if len(x) == 0 {
			return nil
		}
		out.Set(col+"_list_length", len(x))
		if first, ok := x[0].(*record.Object); ok {
			prefix := col + "_item" + strconv.Itoa(f.Base) + "_"
			for p := first.Oldest(); p != nil; p = p.Next() {
				out.Set(prefix+p.Key, p.Value)
			}
		}
	}
	return nil
}

// HitCount returns the <hitsColumn>_count value of a flattened record.
func HitCount(rec *record.Record, hitsColumn string) (int, bool) {
	v, ok := rec.Get(hitsColumn + "_count")
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case record.Number:
		i, err := strconv.Atoi(string(n))
		return i, err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
