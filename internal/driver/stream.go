package driver

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// stream is one CSV output. The file is created on first use and the header
// goes out with the first row.
type stream struct {
	name string
	path string
	cols []string

	f      *os.File
	bw     *bufio.Writer
	cw     *csv.Writer
	header bool
	rows   int
}

func newStream(name, path string, cols []string) *stream {
	return &stream{name: name, path: path, cols: cols}
}

func (s *stream) open() error {
	if s.f != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	s.f = f
	s.bw = bufio.NewWriterSize(f, 1<<20)
	s.cw = csv.NewWriter(s.bw)
	return nil
}

func (s *stream) ensureHeader() error {
	if err := s.open(); err != nil {
		return err
	}
	if s.header {
		return nil
	}
	s.header = true
	if len(s.cols) == 0 {
		return nil
	}
	if err := s.cw.Write(s.cols); err != nil {
		return fmt.Errorf("%s: write header: %w", s.path, err)
	}
	return nil
}

// write appends one row of cells aligned to s.cols.
func (s *stream) write(cells []string) error {
	if err := s.ensureHeader(); err != nil {
		return err
	}
	if err := s.cw.Write(cells); err != nil {
		return fmt.Errorf("%s: write row: %w", s.path, err)
	}
	s.rows++
	return nil
}

// writeRaw appends line as-is followed by a newline.
func (s *stream) writeRaw(line string) error {
	if err := s.ensureHeader(); err != nil {
		return err
	}
	s.cw.Flush()
	if err := s.cw.Error(); err != nil {
		return fmt.Errorf("%s: flush: %w", s.path, err)
	}
	if _, err := s.bw.WriteString(line); err != nil {
		return fmt.Errorf("%s: write raw: %w", s.path, err)
	}
	if err := s.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("%s: write raw: %w", s.path, err)
	}
	s.rows++
	return nil
}

func (s *stream) flush() error {
	if s.f == nil {
		return nil
	}
	s.cw.Flush()
	if err := s.cw.Error(); err != nil {
		return fmt.Errorf("%s: flush: %w", s.path, err)
	}
	if err := s.bw.Flush(); err != nil {
		return fmt.Errorf("%s: flush: %w", s.path, err)
	}
	return nil
}

// close flushes and closes the file. It is a no-op for a stream that was
// never opened and safe to call twice.
func (s *stream) close() error {
	if s.f == nil {
		return nil
	}
	ferr := s.flush()
	cerr := s.f.Close()
	s.f = nil
	if cerr != nil {
		cerr = fmt.Errorf("close %s: %w", s.path, cerr)
	}
	return errors.Join(ferr, cerr)
}
