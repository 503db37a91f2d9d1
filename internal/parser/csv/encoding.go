package csv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"hitsflat/internal/fsio"
)

// Encoding names the text encoding of an input file.
type Encoding string

const (
	UTF8   Encoding = "utf-8"
	Latin1 Encoding = "latin-1"
)

// Decode wraps r so that it yields UTF-8 regardless of the source encoding.
func (e Encoding) Decode(r io.Reader) io.Reader {
	if e == Latin1 {
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	return r
}

// FileInfo is what a first pass over an input file learns.
type FileInfo struct {
	Encoding Encoding
	Lines    int // physical lines, header included
}

// DetectEncoding streams path once. The file is UTF-8 if every byte sequence
// in it is valid UTF-8; otherwise it is read as Latin-1, which accepts any
// byte.
func DetectEncoding(ctx context.Context, path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fsio.AdviseSequential(f)

	info, err := scanEncoding(ctx, f)
	if err != nil {
		return FileInfo{}, fmt.Errorf("scan %s: %w", path, err)
	}
	return info, nil
}

func scanEncoding(ctx context.Context, r io.Reader) (FileInfo, error) {
	buf := make([]byte, 1<<20)
	var carry []byte
	valid := true
	lines := 0
	var last byte

	for {
		if err := ctx.Err(); err != nil {
			return FileInfo{}, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			lines += bytes.Count(chunk, []byte{'\n'})
			last = chunk[n-1]
			if valid {
				data := append(carry, chunk...)
				cut := incompleteTail(data)
				if !utf8.Valid(data[:cut]) {
					valid = false
				}
				carry = append(carry[:0], data[cut:]...)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return FileInfo{}, rerr
		}
	}
	if valid && len(carry) > 0 {
		valid = false
	}
	if last != 0 && last != '\n' {
		lines++
	}

	enc := UTF8
	if !valid {
		enc = Latin1
	}
	return FileInfo{Encoding: enc, Lines: lines}, nil
}

// incompleteTail returns the index where a multi-byte rune cut off by the
// chunk boundary starts, or len(b) when the chunk ends on a rune boundary.
func incompleteTail(b []byte) int {
	for j := len(b) - 1; j >= 0 && j >= len(b)-utf8.UTFMax; j-- {
		if utf8.RuneStart(b[j]) {
			if !utf8.FullRune(b[j:]) {
				return j
			}
			return len(b)
		}
	}
	return len(b)
}
