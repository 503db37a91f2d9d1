package record

import orderedmap "github.com/wk8/go-ordered-map/v2"

// Columns is an insertion-ordered set of column names. The driver uses it to
// accumulate the union of columns seen across a run.
type Columns struct {
	m *orderedmap.OrderedMap[string, struct{}]
}

// NewColumns returns an empty set seeded with names.
func NewColumns(names ...string) *Columns {
	c := &Columns{m: orderedmap.New[string, struct{}]()}
	c.Add(names...)
	return c
}

// Add inserts names that are not yet present and returns how many were new.
func (c *Columns) Add(names ...string) int {
	added := 0
	for _, n := range names {
		if _, ok := c.m.Get(n); ok {
			continue
		}
		c.m.Set(n, struct{}{})
		added++
	}
	return added
}

// AddRecord inserts every key of r.
func (c *Columns) AddRecord(r *Record) int {
	added := 0
	r.Each(func(k string, _ any) {
		if _, ok := c.m.Get(k); !ok {
			c.m.Set(k, struct{}{})
			added++
		}
	})
	return added
}

// Has reports whether name is in the set.
func (c *Columns) Has(name string) bool {
	_, ok := c.m.Get(name)
	return ok
}

// Len returns the number of distinct names.
func (c *Columns) Len() int { return c.m.Len() }

// Names returns the names in first-seen order.
func (c *Columns) Names() []string {
	out := make([]string, 0, c.m.Len())
	for p := c.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}
