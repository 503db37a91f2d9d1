// Package report renders run summaries: a JSON document, a plain-text report
// and an HTML page with the hits distribution.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const rule = 80

// Text writes a sectioned plain-text report. The first write error sticks
// and is returned by Err.
type Text struct {
	w   io.Writer
	err error
}

// NewText returns a Text writing to w.
func NewText(w io.Writer) *Text { return &Text{w: w} }

// Title writes a banner with the title and optional extra lines.
func (t *Text) Title(title string, lines ...string) {
	t.Linef("%s", strings.Repeat("=", rule))
	t.Linef("%s", title)
	for _, l := range lines {
		t.Linef("%s", l)
	}
	t.Linef("%s", strings.Repeat("=", rule))
	t.Linef("")
}

// Section starts a new section.
func (t *Text) Section(name string) {
	t.Linef("%s", name)
	t.Linef("%s", strings.Repeat("-", rule))
}

// Linef writes one formatted line.
func (t *Text) Linef(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format+"\n", args...)
}

// Bullet writes one list item.
func (t *Text) Bullet(format string, args ...any) {
	t.Linef("• "+format, args...)
}

// Err returns the first write error.
func (t *Text) Err() error { return t.err }

// WriteJSON writes v as indented JSON to path, creating its directory.
// Non-ASCII text is kept as is.
func WriteJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// WriteFile creates path and fills it with render.
func WriteFile(path string, render func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}
