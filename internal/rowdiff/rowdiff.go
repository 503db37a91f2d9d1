// Package rowdiff finds data rows of one CSV file that are missing from
// another. Rows are compared by content under their header, so two files
// with the same data in a different column order, or with extra empty
// columns, compare equal.
package rowdiff

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"hitsflat/internal/fsio"
	csvparser "hitsflat/internal/parser/csv"
)

const (
	groupSize    = 4096
	writeBufSize = 4 << 20
)

// Result counts what Diff saw.
type Result struct {
	Rows1   int // data rows in the reference file
	Rows2   int // data rows in the compared file
	Missing int // rows of the compared file absent from the reference
	Wide    int // rows in either file that did not fit their header
}

// Fingerprint hashes the non-empty cells of a row together with their
// column names, in column name order.
func Fingerprint(header, cells []string) uint64 {
	order := make([]int, 0, len(cells))
	for i, c := range cells {
		if i < len(header) && c != "" {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return header[order[a]] < header[order[b]] })

	buf := make([]byte, 0, 256)
	for _, i := range order {
		buf = append(buf, header[i]...)
		buf = append(buf, 0x1f)
		buf = append(buf, cells[i]...)
		buf = append(buf, 0x1e)
	}
	return xxh3.Hash(buf)
}

// rawFingerprint is used for lines that could not be split to the header.
func rawFingerprint(raw string) uint64 {
	return xxh3.HashString("\x00raw\x00" + raw)
}

type row struct {
	fp  uint64
	raw string
}

// Diff writes the header of file2 followed by every data row of file2 whose
// content does not occur in file1. Rows are written as they appear in file2.
func Diff(ctx context.Context, file1, file2 string, w io.Writer) (Result, error) {
	var res Result

	hashes, wide, err := fingerprintFile(ctx, file1)
	if err != nil {
		return res, err
	}
	res.Rows1, res.Wide = len(hashes), wide
	idx := NewIndex(hashes)
	log.Printf("rowdiff: indexed %s rows=%d", file1, idx.Len())

	bw := bufio.NewWriterSize(w, writeBufSize)
	header, err := scanFile(ctx, file2, func(header []string) error {
		cw := csv.NewWriter(bw)
		if err := cw.Write(header); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}, func(r row, isWide bool) error {
		res.Rows2++
		if isWide {
			res.Wide++
		}
		if idx.Contains(r.fp) {
			return nil
		}
		res.Missing++
		_, err := bw.WriteString(r.raw + "\n")
		return err
	})
	if err != nil {
		return res, err
	}
	if err := bw.Flush(); err != nil {
		return res, fmt.Errorf("write: %w", err)
	}
	log.Printf("rowdiff: compared %s rows=%d columns=%d missing=%d", file2, res.Rows2, len(header), res.Missing)
	return res, nil
}

// fingerprintFile hashes every data row of path using a pool of workers.
func fingerprintFile(ctx context.Context, path string) ([]uint64, int, error) {
	f, r, err := open(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	header, err := r.ReadHeader()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	workers := runtime.GOMAXPROCS(0)
	g, gctx := errgroup.WithContext(ctx)
	groups := make(chan []csvparser.Row, workers)
	parts := make([][]uint64, workers)
	wide := 0

	g.Go(func() error {
		defer close(groups)
		batch := make([]csvparser.Row, 0, groupSize)
		for {
			rw, err := r.Next()
			if err == io.EOF {
				break
			}
			var re *csvparser.RowError
			if errors.As(err, &re) {
				wide++
				rw.Cells = nil
			} else if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			batch = append(batch, rw)
			if len(batch) == groupSize {
				select {
				case groups <- batch:
				case <-gctx.Done():
					return gctx.Err()
				}
				batch = make([]csvparser.Row, 0, groupSize)
			}
		}
		if len(batch) > 0 {
			select {
			case groups <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			for batch := range groups {
				for _, rw := range batch {
					parts[i] = append(parts[i], rowFingerprint(header, rw))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var all []uint64
	for _, p := range parts {
		all = append(all, p...)
	}
	return all, wide, nil
}

// scanFile streams path in order, calling onHeader once and onRow per row.
func scanFile(ctx context.Context, path string, onHeader func([]string) error, onRow func(row, bool) error) ([]string, error) {
	f, r, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header, err := r.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := onHeader(header); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rw, err := r.Next()
		if err == io.EOF {
			return header, nil
		}
		var re *csvparser.RowError
		isWide := errors.As(err, &re)
		if err != nil && !isWide {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if isWide {
			rw.Cells = nil
		}
		if err := onRow(row{fp: rowFingerprint(header, rw), raw: rw.Raw}, isWide); err != nil {
			return nil, fmt.Errorf("write: %w", err)
		}
	}
}

func rowFingerprint(header []string, rw csvparser.Row) uint64 {
	if rw.Cells == nil {
		return rawFingerprint(rw.Raw)
	}
	return Fingerprint(header, rw.Cells)
}

func open(ctx context.Context, path string) (*os.File, *csvparser.Reader, error) {
	info, err := csvparser.DetectEncoding(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	fsio.AdviseSequential(f)
	return f, csvparser.NewReader(f, info.Encoding), nil
}
