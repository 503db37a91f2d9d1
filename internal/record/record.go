// Package record defines the ordered row model shared by the reader, the
// flattener and the writers.
//
// A Record maps column names to raw cell values and keeps insertion order.
// Setting a key that is already present replaces its value but keeps its
// position, so the last write wins without reordering the row.
//
// Cell values are one of:
//
//   - nil            missing value (empty CSV cell)
//   - string         raw text
//   - Number         numeric literal as written in the source text
//   - bool           decoded boolean
//   - []any          decoded list
//   - *Object        decoded object, keys in source order
package record

import (
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Number is a numeric literal kept verbatim so that values survive a
// decode/encode round trip without float formatting drift.
type Number string

// Object is a decoded JSON object or Python dict with stable key order.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// Record is one input or output row.
type Record struct {
	m *orderedmap.OrderedMap[string, any]
}

// New returns an empty Record.
func New() *Record {
	return &Record{m: orderedmap.New[string, any]()}
}

// UniqueHeader returns header with repeated names renamed to name.1, name.2
// and so on, skipping suffixes already taken, plus the names it changed.
// header is not modified.
func UniqueHeader(header []string) (out []string, renamed []string) {
	out = make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for _, name := range header {
		taken[name] = true
	}
	used := make(map[string]int, len(header))
	for i, name := range header {
		n := used[name]
		used[name] = n + 1
		if n == 0 {
			out[i] = name
			continue
		}
		cand := name + "." + strconv.Itoa(n)
		for taken[cand] {
			n++
			cand = name + "." + strconv.Itoa(n)
		}
		used[name] = n + 1
		taken[cand] = true
		out[i] = cand
		renamed = append(renamed, name)
	}
	return out, renamed
}

// FromRow zips a header with one row of cells. Names in header must be
// unique (see UniqueHeader). Empty cells become nil.
// Extra cells beyond the header are ignored; missing trailing cells are nil.
func FromRow(header, cells []string) *Record {
	r := New()
	for i, name := range header {
		var v any
		if i < len(cells) && cells[i] != "" {
			v = cells[i]
		}
		r.m.Set(name, v)
	}
	return r
}

// Set stores v under key k.
func (r *Record) Set(k string, v any) {
	r.m.Set(k, v)
}

// Get returns the value stored under k.
func (r *Record) Get(k string) (any, bool) {
	return r.m.Get(k)
}

// Delete removes k and reports whether it was present.
func (r *Record) Delete(k string) bool {
	_, ok := r.m.Delete(k)
	return ok
}

// Len returns the number of columns.
func (r *Record) Len() int {
	if r == nil || r.m == nil {
		return 0
	}
	return r.m.Len()
}

// Keys returns the column names in order.
func (r *Record) Keys() []string {
	out := make([]string, 0, r.Len())
	r.Each(func(k string, _ any) {
		out = append(out, k)
	})
	return out
}

// Each calls fn for every column in order.
func (r *Record) Each(fn func(k string, v any)) {
	if r == nil || r.m == nil {
		return
	}
	for p := r.m.Oldest(); p != nil; p = p.Next() {
		fn(p.Key, p.Value)
	}
}

// Clone returns a shallow copy. Nested values are shared.
func (r *Record) Clone() *Record {
	out := New()
	r.Each(func(k string, v any) {
		out.m.Set(k, v)
	})
	return out
}

// Strings renders the record as formatted cells aligned to cols. Columns the
// record does not carry are rendered empty.
func (r *Record) Strings(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if v, ok := r.m.Get(c); ok {
			out[i] = Format(v)
		}
	}
	return out
}
