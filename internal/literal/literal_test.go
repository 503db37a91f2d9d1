package literal

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"hitsflat/internal/record"
)

func obj(kv ...any) *record.Object {
	o := record.NewObject()
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1])
	}
	return o
}

// normalize turns decoded values into plain maps for DeepEqual, recording key
// order separately.
func normalize(v any) any {
	switch x := v.(type) {
	case *record.Object:
		keys := []string{}
		m := map[string]any{}
		for p := x.Oldest(); p != nil; p = p.Next() {
			keys = append(keys, p.Key)
			m[p.Key] = normalize(p.Value)
		}
		return map[string]any{"__keys": keys, "__values": m}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func TestNormalizeQuotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "valid json is untouched",
			in:   `{"a": "it's"}`,
			want: `{"a": "it's"}`,
		},
		{
			name: "single quoted keys and values",
			in:   `{'a': 'x', 'b': True, 'c': None}`,
			want: `{"a": "x", "b": true, "c": null}`,
		},
		{
			name: "colon inside value",
			in:   `{'url': 'http://x/y'}`,
			want: `{"url": "http://x/y"}`,
		},
		{
			name: "double quotes inside become escaped",
			in:   `{'t': 'say "hi"'}`,
			want: `{"t": "say \"hi\""}`,
		},
		{
			name: "escaped single quote survives",
			in:   `{'t': 'it\'s'}`,
			want: `{"t": "it\'s"}`,
		},
		{
			name: "tokens inside strings are replaced too",
			in:   `{'t': 'Trueblue'}`,
			want: `{"t": "trueblue"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeQuotes(tt.in); got != tt.want {
				t.Fatalf("NormalizeQuotes(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeQuotes_OutputParses(t *testing.T) {
	t.Parallel()

	got, err := ParseJSON(NormalizeQuotes(`{'device': {'os': 'Linux', 'mobile': False}}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	want := obj("device", obj("os", "Linux", "mobile", false))
	if !reflect.DeepEqual(normalize(got), normalize(want)) {
		t.Fatalf("got %#v, want %#v", normalize(got), normalize(want))
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	got, err := ParseJSON(` {"z": 1.50, "a": [true, null, "xé"], "o": {}} `)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	want := obj("z", record.Number("1.50"), "a", []any{true, nil, "xé"}, "o", obj())
	if !reflect.DeepEqual(normalize(got), normalize(want)) {
		t.Fatalf("got %#v, want %#v", normalize(got), normalize(want))
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{``, `{'a': 1}`, `[1, 2`, `{"a": 1} extra`, `True`} {
		if _, err := ParseJSON(in); !errors.Is(err, ErrInvalidJSON) {
			t.Fatalf("ParseJSON(%q) err = %v, want ErrInvalidJSON", in, err)
		}
	}
}

func TestParseJSON_DuplicateKeyLastWins(t *testing.T) {
	t.Parallel()

	got, err := ParseJSON(`{"a": 1, "b": 2, "a": 3}`)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	want := obj("a", record.Number("3"), "b", record.Number("2"))
	if !reflect.DeepEqual(normalize(got), normalize(want)) {
		t.Fatalf("got %#v, want %#v", normalize(got), normalize(want))
	}
}

func TestParsePython(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want any
	}{
		{
			name: "hits list",
			in:   `[{'hitNumber': '1', 'isEntrance': True, 'page': {'title': 'Home'}}]`,
			want: []any{obj("hitNumber", "1", "isEntrance", true, "page", obj("title", "Home"))},
		},
		{
			name: "numbers and none",
			in:   `{'a': -3, 'b': 2.5, 'c': None, 'd': 1_000, 'e': 0x1F, 'f': 1e3}`,
			want: obj("a", record.Number("-3"), "b", record.Number("2.5"), "c", nil,
				"d", record.Number("1000"), "e", record.Number("31"), "f", record.Number("1e3")),
		},
		{
			name: "zero padded values that python accepts",
			in:   `{'a': 0, 'b': 00, 'c': 007.5, 'd': 010e1}`,
			want: obj("a", record.Number("0"), "b", record.Number("00"),
				"c", record.Number("007.5"), "d", record.Number("010e1")),
		},
		{
			name: "double quoted string with apostrophe",
			in:   `{"it's": "fine"}`,
			want: obj("it's", "fine"),
		},
		{
			name: "escapes",
			in:   `'a\'b\n\x41é\\'`,
			want: "a'b\nAé\\",
		},
		{
			name: "raw and concatenated strings",
			in:   `[r'\d+' 'x', u"y"]`,
			want: []any{`\d+x`, "y"},
		},
		{
			name: "tuples and trailing commas",
			in:   `{'t': (1, 2,), 'one': ('x',), 'paren': ('x'), 'empty': (), 'l': [1,],}`,
			want: obj("t", []any{record.Number("1"), record.Number("2")}, "one", []any{"x"},
				"paren", "x", "empty", []any{}, "l", []any{record.Number("1")}),
		},
		{
			name: "non string keys",
			in:   `{1: 'a', True: 'b', None: 'c'}`,
			want: obj("1", "a", "True", "b", "None", "c"),
		},
		{
			name: "whitespace and newlines",
			in:   "  [\n {'a' :\t'b'}\n]  ",
			want: []any{obj("a", "b")},
		},
		{
			name: "triple quoted",
			in:   `'''x'y'''`,
			want: "x'y",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePython(tt.in)
			if err != nil {
				t.Fatalf("ParsePython(%q): %v", tt.in, err)
			}
			if !reflect.DeepEqual(normalize(got), normalize(tt.want)) {
				t.Fatalf("got %#v, want %#v", normalize(got), normalize(tt.want))
			}
		})
	}
}

func TestParsePython_Errors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		``,
		`[{'a': 1}`,
		`{'a' 1}`,
		`'unterminated`,
		`[1, 2] tail`,
		`{'a': nan}`,
		`{'a': 1j}`,
		`{['x']: 1}`,
		`b'bytes'`,
		`{'a': 007}`,
		`[-01]`,
	} {
		_, err := ParsePython(in)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("ParsePython(%q) err = %v, want *SyntaxError", in, err)
		}
	}
}

func TestLooksLikePythonList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{`[{'a': True}]`, true},
		{`[{'a': False}]`, true},
		{`[{'a': None}]`, false},
		{`[{"a": true}]`, false},
		{` [{'a': True}]`, false},
	}
	for _, tt := range tests {
		if got := LooksLikePythonList(tt.in); got != tt.want {
			t.Fatalf("LooksLikePythonList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePython_NestingLimit(t *testing.T) {
	t.Parallel()

	deep := "[{'a': " + strings.Repeat("[", 5*maxDepth) + "True"
	_, err := ParsePython(deep)
	var se *SyntaxError
	if !errors.As(err, &se) || !strings.Contains(se.Msg, "nesting") {
		t.Fatalf("err = %v, want nesting SyntaxError", err)
	}

	ok := strings.Repeat("[", maxDepth) + strings.Repeat("]", maxDepth)
	if _, err := ParsePython(ok); err != nil {
		t.Fatalf("ParsePython at the limit: %v", err)
	}
	if _, err := ParsePython("[" + ok + "]"); err == nil {
		t.Fatalf("ParsePython one past the limit succeeded")
	}
}
