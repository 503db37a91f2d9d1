// Package csv reads analytics exports row by row.
//
// Each logical line is first parsed with encoding/csv. Lines the strict reader
// rejects, or that come out wider than the header, are retried with the loose
// splitter from csvutil. Lines that still do not fit the header are returned
// as *RowError so the caller can log them and keep the raw text.
package csv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"hitsflat/internal/csvutil"
)

const utf8BOM = "\uFEFF"

// ErrNoHeader is returned when the input has no header line.
var ErrNoHeader = errors.New("csv: missing header")

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

// Row is one data row.
type Row struct {
	Line     int    // physical line where the row starts (header is line 1)
	Raw      string // logical line as read, without the final terminator
	Cells    []string
	Repaired bool // the loose splitter was needed
}

// RowError reports a line that could not be split to the header width.
type RowError struct {
	Line  int
	Raw   string
	Cells int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ErrWidth is wrapped by RowError when a row has more cells than the header.
var ErrWidth = errors.New("row wider than header")

// Reader yields rows of a CSV export. It is not safe for concurrent use.
type Reader struct {
	br       *bufio.Reader
	header   []string
	line     int // physical lines consumed so far
	emitted  int
	LogEvery int // progress log interval in rows; 0 disables
}

// NewReader returns a Reader over r, decoding it from enc.
func NewReader(r io.Reader, enc Encoding) *Reader {
	return &Reader{br: bufio.NewReaderSize(enc.Decode(r), 1<<20)}
}

// ReadHeader consumes and returns the header line. Cells are trimmed and a
// leading BOM is dropped.
func (r *Reader) ReadHeader() ([]string, error) {
	for {
		raw, n, err := csvutil.ReadLogicalCSVLine(r.br)
		if err == io.EOF {
			return nil, ErrNoHeader
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read header: %w", err)
		}
		r.line += n
		if strings.TrimSpace(raw) == "" {
			continue
		}
		cells, err := parseStrict(raw)
		if err != nil {
			cells = csvutil.ParseCSVLineLoose(raw)
		}
		cells = StripHeaderBOM(cells)
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		r.header = cells
		return r.header, nil
	}
}

// Header returns the header read by ReadHeader.
func (r *Reader) Header() []string { return r.header }

// Next returns the next data row. Blank lines are skipped. At the end of
// input it returns io.EOF. A row that cannot be fitted to the header is
// returned as a *RowError; the reader stays usable afterwards.
func (r *Reader) Next() (Row, error) {
	for {
		raw, n, err := csvutil.ReadLogicalCSVLine(r.br)
		if err == io.EOF {
			return Row{}, io.EOF
		}
		if err != nil {
			return Row{}, fmt.Errorf("csv: read line %d: %w", r.line+1, err)
		}
		start := r.line + 1
		r.line += n
		if strings.TrimSpace(raw) == "" {
			continue
		}

		r.emitted++
		if r.LogEvery > 0 && r.emitted%r.LogEvery == 0 {
			log.Printf("reader: line=%d emitted=%d", r.line, r.emitted)
		}

		row := Row{Line: start, Raw: raw}
		cells, err := parseStrict(raw)
		if err == nil && len(cells) <= len(r.header) {
			row.Cells = cells
			return row, nil
		}

		loose := csvutil.ParseCSVLineLoose(raw)
		if len(loose) <= len(r.header) {
			row.Cells = loose
			row.Repaired = true
			return row, nil
		}
		cause := ErrWidth
		if err != nil {
			cause = fmt.Errorf("%w (strict: %v)", ErrWidth, err)
		}
		return row, &RowError{Line: start, Raw: raw, Cells: len(loose), Err: cause}
	}
}

// parseStrict parses a single logical line with encoding/csv.
func parseStrict(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cells, err := cr.Read()
	if err != nil {
		return nil, err
	}
	if _, err := cr.Read(); err != io.EOF {
		return nil, errors.New("line holds more than one record")
	}
	return cells, nil
}
