package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"hitsflat/internal/csvutil"
	"hitsflat/internal/fsio"
	csvparser "hitsflat/internal/parser/csv"
	"hitsflat/internal/report"
)

const (
	// Files larger than this have their last rows read from the tail only.
	tailThreshold = 10 << 20
	tailSize      = 1 << 20
)

var nowFunc = time.Now

type preview struct {
	Path   string
	Size   int64
	Header []string
	First  [][]string
	Last   [][]string
	Tail   bool // Last was read from the final tailSize bytes
}

// width is the largest cell count among rows.
func width(rows [][]string) int {
	w := 0
	for _, r := range rows {
		w = max(w, len(r))
	}
	return w
}

func peek(ctx context.Context, path string, n int) (*preview, error) {
	return peekWith(ctx, path, n, tailThreshold)
}

// peekWith reads the last rows from the tail when the file is larger than
// threshold bytes.
func peekWith(ctx context.Context, path string, n int, threshold int64) (*preview, error) {
	if n <= 0 {
		n = 5
	}
	info, err := csvparser.DetectEncoding(ctx, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	p := &preview{Path: path, Size: st.Size()}

	r := csvparser.NewReader(f, info.Encoding)
	if p.Header, err = r.ReadHeader(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if p.Size <= threshold {
		fsio.AdviseSequential(f)
		p.First, p.Last, err = collect(r, n, n)
		return p, err
	}

	if p.First, _, err = collect(r, n, 0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(max(0, p.Size-tailSize), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}
	br := bufio.NewReader(f)
	// The first line of the tail is most likely cut.
	if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var head strings.Builder
	cw := csv.NewWriter(&head)
	_ = cw.Write(p.Header)
	cw.Flush()
	tr := csvparser.NewReader(io.MultiReader(strings.NewReader(head.String()), info.Encoding.Decode(br)), csvparser.UTF8)
	if _, err := tr.ReadHeader(); err != nil {
		return nil, err
	}
	_, p.Last, err = collect(tr, 0, n)
	p.Tail = true
	return p, err
}

// collect returns the first nFirst and the last nLast rows of r. Rows wider
// than the header are kept, split loosely.
func collect(r *csvparser.Reader, nFirst, nLast int) (first, last [][]string, err error) {
	for {
		row, err := r.Next()
		if err == io.EOF {
			return first, last, nil
		}
		var re *csvparser.RowError
		if errors.As(err, &re) {
			row.Cells = csvutil.ParseCSVLineLoose(re.Raw)
		} else if err != nil {
			return nil, nil, err
		}
		if len(first) < nFirst {
			first = append(first, row.Cells)
			if nLast == 0 && len(first) == nFirst {
				return first, nil, nil
			}
		}
		if nLast > 0 {
			last = append(last, row.Cells)
			if len(last) > nLast {
				last = last[1:]
			}
		}
	}
}

func (p *preview) print(w io.Writer) {
	fmt.Fprintf(w, "File: %s (%.2f MB)\n", p.Path, float64(p.Size)/(1<<20))
	fmt.Fprintf(w, "Columns in header: %d\n", len(p.Header))
	fmt.Fprintf(w, "Columns in the first rows: %d\n", width(p.First))
	if p.Tail {
		fmt.Fprintf(w, "Columns in the last rows (read from the last %d bytes): %d\n", tailSize, width(p.Last))
	} else {
		fmt.Fprintf(w, "Columns in the last rows: %d\n", width(p.Last))
	}
}

var pageTmpl = template.Must(template.New("peek").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Path}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
.wrap { overflow-x: auto; margin-bottom: 30px; }
table { border-collapse: collapse; font-size: 13px; }
th, td { border: 1px solid #ddd; padding: 6px 8px; white-space: nowrap; }
th { background: #4CAF50; color: white; position: sticky; top: 0; }
tr:nth-child(even) { background: #f2f2f2; }
.info { color: #555; margin-bottom: 10px; }
</style>
</head>
<body>
<h1>{{.Path}}</h1>
<p class="info">Generated {{.Generated}}. Header columns: {{len .Header}}.</p>
<h2>First rows ({{.FirstWidth}} columns)</h2>
<div class="wrap"><table>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{range .First}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table></div>
<h2>Last rows ({{.LastWidth}} columns)</h2>
<div class="wrap"><table>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{range .Last}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table></div>
</body>
</html>
`))

type page struct {
	*preview
	Generated  string
	FirstWidth int
	LastWidth  int
}

func writeHTML(path string, p *preview) error {
	pg := page{preview: p, FirstWidth: width(p.First), LastWidth: width(p.Last)}
	pg.Generated = nowFunc().Format("02/01/2006 15:04:05")
	return report.WriteFile(path, func(w io.Writer) error { return pageTmpl.Execute(w, pg) })
}
