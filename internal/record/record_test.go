package record

import (
	"reflect"
	"testing"
)

func TestFromRow_EmptyCellsAreMissing(t *testing.T) {
	t.Parallel()

	r := FromRow([]string{"a", "b", "c"}, []string{"1", "", "x"})
	if got, want := r.Keys(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	v, ok := r.Get("b")
	if !ok || v != nil {
		t.Fatalf("b = %v (present=%v), want nil present", v, ok)
	}
	if got, want := r.Strings([]string{"c", "missing", "a"}), []string{"x", "", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Strings = %v, want %v", got, want)
	}
}

func TestUniqueHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		in          []string
		want        []string
		wantRenamed []string
	}{
		{"unique", []string{"a", "b"}, []string{"a", "b"}, nil},
		{"repeated", []string{"a", "b", "a", "a"}, []string{"a", "b", "a.1", "a.2"}, []string{"a", "a"}},
		{"suffix already taken", []string{"a", "a", "a.1"}, []string{"a", "a.2", "a.1"}, []string{"a"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := append([]string(nil), tt.in...)
			got, renamed := UniqueHeader(in)
			if !reflect.DeepEqual(got, tt.want) || !reflect.DeepEqual(renamed, tt.wantRenamed) {
				t.Fatalf("UniqueHeader(%q) = %q, %q; want %q, %q", tt.in, got, renamed, tt.want, tt.wantRenamed)
			}
			if !reflect.DeepEqual(in, tt.in) {
				t.Fatalf("input modified: %q", in)
			}
		})
	}

	h, _ := UniqueHeader([]string{"x", "x"})
	r := FromRow(h, []string{"1", "2"})
	if v, _ := r.Get("x.1"); v != "2" {
		t.Fatalf("x.1 = %v, want 2", v)
	}
}

func TestSet_KeepsPositionOnOverwrite(t *testing.T) {
	t.Parallel()

	r := New()
	r.Set("x", "1")
	r.Set("y", "2")
	r.Set("x", "3")
	if got, want := r.Keys(), []string{"x", "y"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	if v, _ := r.Get("x"); v != "3" {
		t.Fatalf("x = %v, want 3", v)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	obj := NewObject()
	obj.Set("b", Number("2"))
	obj.Set("a", []any{true, nil, "q\"<"})

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "héllo", "héllo"},
		{"number keeps text", Number("1.50"), "1.50"},
		{"true", true, "True"},
		{"false", false, "False"},
		{"int", 42, "42"},
		{"empty list", []any{}, "[]"},
		{"object keeps order", obj, `{"b":2,"a":[true,null,"q\"<"]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Format(tt.in); got != tt.want {
				t.Fatalf("Format(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestColumns_Union(t *testing.T) {
	t.Parallel()

	c := NewColumns("id")
	r := New()
	r.Set("id", "1")
	r.Set("hits_count", Number("2"))
	if n := c.AddRecord(r); n != 1 {
		t.Fatalf("AddRecord added %d, want 1", n)
	}
	if n := c.Add("hits_count", "hits_1_x"); n != 1 {
		t.Fatalf("Add added %d, want 1", n)
	}
	if got, want := c.Names(), []string{"id", "hits_count", "hits_1_x"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	if !c.Has("hits_1_x") || c.Has("nope") {
		t.Fatalf("Has reported wrong membership")
	}
}
