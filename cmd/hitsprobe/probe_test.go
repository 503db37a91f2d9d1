package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestProbeCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        string
		wantHits  int
		wantNums  []int
		wantRegex bool
		wantErr   bool
	}{
		{"python repr", "[{'hitNumber': '1'}, {'hitNumber': '7'}]", 2, []int{1, 7}, false, false},
		{"json numbers", `[{"hitNumber": 3}, {"page": "/a"}]`, 2, []int{3}, false, false},
		{"empty list", "[]", 0, nil, false, false},
		{"pattern fallback", "[{'hitNumber': '4', 'x': <broken", 1, []int{4}, true, false},
		{"not a list", "{'a': 1}", 0, nil, false, true},
		{"garbage", "garbage", 0, nil, false, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hits, nums, regex, err := probeCell(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if hits != tt.wantHits || regex != tt.wantRegex || !reflect.DeepEqual(nums, tt.wantNums) {
				t.Fatalf("got (%d, %v, %v), want (%d, %v, %v)", hits, nums, regex, tt.wantHits, tt.wantNums, tt.wantRegex)
			}
		})
	}
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "visitas.csv")
	content := "id,hits\n" +
		"1,\"[{'hitNumber': '1'}, {'hitNumber': '2'}]\"\n" +
		"2,\n" +
		"3,\"[{'hitNumber': '9'}\"\n" +
		"4,x,y\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestProbeFile(t *testing.T) {
	t.Parallel()

	p, err := probeFile(context.Background(), writeCSV(t), "hits", 0)
	if err != nil {
		t.Fatalf("probeFile: %v", err)
	}
	if p.Scanned != 4 || p.WithHits != 2 || p.Failed != 1 {
		t.Fatalf("scanned=%d withHits=%d failed=%d", p.Scanned, p.WithHits, p.Failed)
	}
	if p.MaxHits != 2 || p.MaxHitsRow != 1 || p.MaxHitNumber != 9 || p.MaxHitNumberRow != 3 {
		t.Fatalf("max hits %d@%d, max hitNumber %d@%d", p.MaxHits, p.MaxHitsRow, p.MaxHitNumber, p.MaxHitNumberRow)
	}
	if !p.Rows[2].Regex {
		t.Fatalf("row 3 should use the pattern fallback")
	}

	var out bytes.Buffer
	p.print(&out, true)
	for _, s := range []string{
		"Row 1 (line 2): 2 hits, hitNumbers: [1 2]",
		"Row 3 (line 4): 1 hits (pattern), hitNumbers: [9]",
		"Row 4 (line 5): error:",
		"Rows inspected: 4",
		"Max hitNumber: 9 (row 3)",
	} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("output missing %q:\n%s", s, out.String())
		}
	}
}

func TestProbeFile_Limit(t *testing.T) {
	t.Parallel()

	p, err := probeFile(context.Background(), writeCSV(t), "hits", 2)
	if err != nil {
		t.Fatalf("probeFile: %v", err)
	}
	if p.Scanned != 2 || len(p.Rows) != 2 {
		t.Fatalf("scanned = %d, want 2", p.Scanned)
	}
}

func TestProbeFile_MissingColumn(t *testing.T) {
	t.Parallel()

	_, err := probeFile(context.Background(), writeCSV(t), "events", 0)
	if err == nil || !strings.Contains(err.Error(), `column "events" not found`) {
		t.Fatalf("err = %v", err)
	}
}
