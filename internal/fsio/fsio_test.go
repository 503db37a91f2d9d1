package fsio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAdviseSequential_DoesNotDisturbReads(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	AdviseSequential(f)
	AdviseSequential(nil)

	buf := make([]byte, 3)
	if _, err := f.Read(buf); err != nil || string(buf) != "a,b" {
		t.Fatalf("read = %q, %v; want %q", buf, err, "a,b")
	}
}
