package zone

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// corruptibleZone returns a zone holding a used block a at 32, a used
// block b at 176 and the free tail at 320.
func corruptibleZone(t *testing.T) (*Zone, Ptr, Ptr) {
	t.Helper()
	z, err := New(Config{Size: 1024, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a := mustAllocate(t, z, 100)
	b := mustAllocate(t, z, 100)
	requireBlocks(t, z,
		BlockInfo{Offset: 32, Size: 144},
		BlockInfo{Offset: 176, Size: 144},
		BlockInfo{Offset: 320, Size: 704, Free: true},
	)
	return z, a, b
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		corrupt func(z *Zone)
		want    string
	}{
		{"consecutive free blocks", func(z *Zone) { z.hdr(176).setTag(tagFree) }, "two consecutive free blocks"},
		{"back link", func(z *Zone) { z.hdr(320).setPrev(32) }, "links back"},
		{"size gap", func(z *Zone) { z.hdr(32).setSize(160) }, "does not touch"},
		{"size past arena", func(z *Zone) { z.hdr(320).setSize(2048) }, "has size"},
		{"short chain", func(z *Zone) { z.hdr(176).setNext(sentinel) }, "sentinel links back"},
		{"cycle", func(z *Zone) { z.hdr(320).setNext(32) }, "does not touch"},
		{"sentinel", func(z *Zone) { z.hdr(sentinel).setTag(tagFree) }, "sentinel"},
		{"tag", func(z *Zone) { z.hdr(32).setTag(7) }, "has tag"},
		{"zone id", func(z *Zone) { z.hdr(176).setID(0) }, "no zone id"},
		{"rover", func(z *Zone) { z.rover = 48 }, "rover"},
		{"accounting", func(z *Zone) { z.used += 16 }, "accounted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, _, _ := corruptibleZone(t)
			if err := z.Validate(); err != nil {
				t.Fatalf("Validate() before corruption = %v", err)
			}
			tt.corrupt(z)
			err := z.Validate()
			if !errors.Is(err, ErrHeapInconsistent) {
				t.Fatalf("Validate() = %v, want ErrHeapInconsistent", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.want)
			}
			expectFatal(t, ErrHeapInconsistent, z.Check)
		})
	}
}

func TestVerifyEachCall(t *testing.T) {
	if !debugBuild {
		t.Skip("per-call verification is compiled out")
	}
	t.Parallel()
	z := newTestZone(t, 1024)
	a := mustAllocate(t, z, 100)
	z.used = 0
	expectFatal(t, ErrHeapInconsistent, func() { z.Free(a) })
}

func TestInspect(t *testing.T) {
	t.Parallel()
	z, a, b := corruptibleZone(t)
	defer z.Shutdown()

	z.Free(a)
	requireBlocks(t, z,
		BlockInfo{Offset: 32, Size: 144, Free: true},
		BlockInfo{Offset: 176, Size: 144},
		BlockInfo{Offset: 320, Size: 704, Free: true},
	)
	z.Free(b)
	requireBlocks(t, z, BlockInfo{Offset: 32, Size: 992, Free: true})
}

func TestReport(t *testing.T) {
	t.Parallel()
	z, a, b := corruptibleZone(t)
	defer z.Shutdown()

	var buf bytes.Buffer
	if err := z.Report(&buf); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 {
		t.Fatalf("Report() printed %d lines, want 6:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "MEMORY REPORT START") || !strings.Contains(lines[5], "MEMORY REPORT END") {
		t.Errorf("Report() is missing its frame:\n%s", out)
	}
	for i, want := range []string{"32 144 used", "176 144 used", "320 704 free"} {
		if got := strings.Join(strings.Fields(lines[i+1])[:3], " "); got != want {
			t.Errorf("Report() line %d = %q, want %q", i+1, got, want)
		}
	}
	if !strings.Contains(lines[4], "used 288 / 1024 bytes in 3 blocks") {
		t.Errorf("Report() summary = %q", lines[4])
	}
	z.Free(a)
	z.Free(b)
}

func TestJSON(t *testing.T) {
	t.Parallel()
	z, a, b := corruptibleZone(t)
	defer z.Shutdown()

	data, err := z.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var got struct {
		TotalBytes         int
		OverheadBytes      int
		UsedBytes          int
		UnusedBytes        int
		Allocations        int
		UnusedRanges       int
		LargestUnusedRange int
		Blocks             []struct {
			Offset int
			Size   int
			Type   string
			Ptr    int
		}
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("JSON() produced invalid JSON %s: %v", data, err)
	}
	if got.TotalBytes != 1024 || got.OverheadBytes != 32 || got.UsedBytes != 288 || got.UnusedBytes != 704 {
		t.Errorf("JSON() byte counts = %+v", got)
	}
	if got.Allocations != 2 || got.UnusedRanges != 1 || got.LargestUnusedRange != 704 {
		t.Errorf("JSON() block counts = %+v", got)
	}
	if len(got.Blocks) != 3 {
		t.Fatalf("JSON() blocks = %+v, want 3", got.Blocks)
	}
	if b0 := got.Blocks[0]; b0.Type != "USED" || b0.Ptr != int(a) || b0.Offset != 32 {
		t.Errorf("JSON() first block = %+v", b0)
	}
	if b2 := got.Blocks[2]; b2.Type != "FREE" || b2.Size != 704 {
		t.Errorf("JSON() last block = %+v", b2)
	}
	z.Free(a)
	z.Free(b)
}

func TestLogAllocations(t *testing.T) {
	t.Parallel()
	z, a, b := corruptibleZone(t)
	defer z.Shutdown()

	var buf bytes.Buffer
	z.LogAllocations(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	if n := strings.Count(out, "live allocation"); n != 2 {
		t.Errorf("LogAllocations() logged %d allocations, want 2:\n%s", n, out)
	}
	if !strings.Contains(out, "ptr=64") || !strings.Contains(out, "ptr=208") {
		t.Errorf("LogAllocations() output missing pointers:\n%s", out)
	}
	z.Free(a)
	z.Free(b)
}
