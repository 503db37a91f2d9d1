package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"hitsflat/internal/record"
)

// SyntaxError describes where ParsePython gave up.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("literal: python: %s at offset %d", e.Msg, e.Offset)
}

// ParsePython decodes the Python literal subset found in analytics exports:
// dicts, lists, tuples (decoded as lists), quoted strings with escapes and
// implicit concatenation, ints, floats, True, False and None. Leading and
// trailing whitespace is ignored. Anything else is a *SyntaxError.
func ParsePython(s string) (any, error) {
	p := &pyParser{src: strings.TrimSpace(s)}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing data")
	}
	return v, nil
}

// maxDepth bounds container nesting so hostile input fails with a
// SyntaxError instead of exhausting the stack.
const maxDepth = 10000

type pyParser struct {
	src   string
	pos   int
	depth int
}

func (p *pyParser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *pyParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		default:
			return
		}
	}
}

func (p *pyParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *pyParser) value() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	c := p.src[p.pos]
	switch {
	case c == '{' || c == '[' || c == '(':
		if p.depth >= maxDepth {
			return nil, p.errorf("nesting deeper than %d", maxDepth)
		}
		p.depth++
		defer func() { p.depth-- }()
		switch c {
		case '{':
			return p.dict()
		case '[':
			p.pos++
			return p.sequence(']')
		}
		return p.tuple()
	case c == '\'' || c == '"':
		return p.strings()
	case c == '-' || c == '+':
		p.pos++
		p.skipSpace()
		n, err := p.number()
		if err != nil {
			return nil, err
		}
		if c == '-' {
			if strings.HasPrefix(string(n), "-") {
				return n[1:], nil
			}
			return "-" + n, nil
		}
		return n, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.number()
	case isIdentStart(c):
		return p.name()
	}
	return nil, p.errorf("unexpected character %q", c)
}

func (p *pyParser) dict() (any, error) {
	p.pos++ // {
	obj := record.NewObject()
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return obj, nil
		}
		kv, err := p.value()
		if err != nil {
			return nil, err
		}
		key, err := p.dictKey(kv)
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after dict key")
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			return nil, p.errorf("expected ',' or '}' in dict")
		}
	}
}

// dictKey renders a decoded key the way str() would.
func (p *pyParser) dictKey(v any) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case record.Number:
		return string(k), nil
	case bool:
		if k {
			return "True", nil
		}
		return "False", nil
	case nil:
		return "None", nil
	}
	return "", p.errorf("unsupported dict key type %T", v)
}

func (p *pyParser) sequence(closer byte) ([]any, error) {
	out := []any{}
	for {
		p.skipSpace()
		if p.peek() == closer {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or %q", closer)
		}
	}
}

// tuple handles (), (x,), (x, y) and the parenthesized expression (x).
func (p *pyParser) tuple() (any, error) {
	p.pos++ // (
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return []any{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	switch p.peek() {
	case ')':
		p.pos++
		return first, nil
	case ',':
		p.pos++
		rest, err := p.sequence(')')
		if err != nil {
			return nil, err
		}
		return append([]any{first}, rest...), nil
	}
	return nil, p.errorf("expected ',' or ')' in tuple")
}

func (p *pyParser) name() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	word := p.src[start:p.pos]
	switch word {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	// String prefixes: r'..', u'..', R"..", etc.
	if p.pos < len(p.src) && (p.src[p.pos] == '\'' || p.src[p.pos] == '"') {
		switch strings.ToLower(word) {
		case "r", "u":
			p.pos = start
			return p.strings()
		}
	}
	p.pos = start
	return nil, p.errorf("unsupported name %q", word)
}

func (p *pyParser) number() (record.Number, error) {
	start := p.pos
	digits := func() int {
		n := 0
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '_') {
			p.pos++
			n++
		}
		return n
	}

	if strings.HasPrefix(p.src[p.pos:], "0x") || strings.HasPrefix(p.src[p.pos:], "0X") {
		p.pos += 2
		for p.pos < len(p.src) && isHex(p.src[p.pos]) || p.pos < len(p.src) && p.src[p.pos] == '_' {
			p.pos++
		}
		raw := strings.ReplaceAll(p.src[start:p.pos], "_", "")
		n, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return "", p.errorf("bad hex literal %q", raw)
		}
		return record.Number(strconv.FormatInt(n, 10)), nil
	}

	intDigits := digits()
	intPart := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	isFloat := false
	fracDigits := 0
	if p.peek() == '.' {
		p.pos++
		isFloat = true
		fracDigits = digits()
	}
	if intDigits == 0 && fracDigits == 0 {
		return "", p.errorf("malformed number")
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		p.pos++
		if c := p.peek(); c == '+' || c == '-' {
			p.pos++
		}
		if digits() == 0 {
			return "", p.errorf("malformed exponent")
		}
		isFloat = true
	}
	// 0, 00 and 007.5 are valid; 007 is not.
	if !isFloat && len(intPart) > 1 && intPart[0] == '0' && strings.Trim(intPart, "0") != "" {
		return "", p.errorf("leading zeros in integer literal %q", intPart)
	}
	if c := p.peek(); c == 'j' || c == 'J' || isIdentStart(c) {
		return "", p.errorf("unsupported numeric literal")
	}
	return record.Number(strings.ReplaceAll(p.src[start:p.pos], "_", "")), nil
}

// strings reads one or more adjacent string literals and concatenates them.
func (p *pyParser) strings() (any, error) {
	var sb strings.Builder
	n := 0
	for {
		save := p.pos
		if n > 0 {
			p.skipSpace()
		}
		raw := false
		if c := p.peek(); c == 'r' || c == 'R' || c == 'u' || c == 'U' {
			if p.pos+1 < len(p.src) && (p.src[p.pos+1] == '\'' || p.src[p.pos+1] == '"') {
				raw = c == 'r' || c == 'R'
				p.pos++
			}
		}
		c := p.peek()
		if c != '\'' && c != '"' {
			if n == 0 {
				return nil, p.errorf("expected string")
			}
			p.pos = save
			return sb.String(), nil
		}
		s, err := p.str(raw)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
		n++
	}
}

func (p *pyParser) str(raw bool) (string, error) {
	q := p.src[p.pos]
	triple := strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(q), 3))
	if triple {
		p.pos += 3
	} else {
		p.pos++
	}

	var sb strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case c == q && !triple:
			p.pos++
			return sb.String(), nil
		case c == q && triple && strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(q), 3)):
			p.pos += 3
			return sb.String(), nil
		case c == '\n' && !triple:
			return "", p.errorf("newline in string")
		case c == '\\':
			if raw {
				if p.pos+1 < len(p.src) {
					sb.WriteString(p.src[p.pos : p.pos+2])
					p.pos += 2
					continue
				}
				return "", p.errorf("unterminated string")
			}
			if err := p.escape(&sb); err != nil {
				return "", err
			}
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
}

func (p *pyParser) escape(sb *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\n':
	case '\\', '\'', '"':
		sb.WriteByte(c)
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case 'x':
		return p.hexEscape(sb, 2)
	case 'u':
		return p.hexEscape(sb, 4)
	case 'U':
		return p.hexEscape(sb, 8)
	case '0', '1', '2', '3', '4', '5', '6', '7':
		start := p.pos - 1
		for p.pos < len(p.src) && p.pos-start < 3 && p.src[p.pos] >= '0' && p.src[p.pos] <= '7' {
			p.pos++
		}
		n, _ := strconv.ParseUint(p.src[start:p.pos], 8, 32)
		sb.WriteRune(rune(n))
	default:
		// Unknown escapes are kept verbatim.
		sb.WriteByte('\\')
		sb.WriteByte(c)
	}
	return nil
}

func (p *pyParser) hexEscape(sb *strings.Builder, width int) error {
	if p.pos+width > len(p.src) {
		return p.errorf("truncated escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return p.errorf("bad escape %q", p.src[p.pos:p.pos+width])
	}
	p.pos += width
	sb.WriteRune(rune(n))
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
