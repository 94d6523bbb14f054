package zone

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// BlockInfo describes one block of the chain.
type BlockInfo struct {
	Offset int  // Offset of the block header within the arena
	Size   int  // Block size, header included
	Free   bool // Whether the block is free
}

// Validate walks the chain from head to tail without modifying it and
// returns an error matching ErrHeapInconsistent for the first violated
// invariant: blocks must tile the arena, back links must mirror forward
// links, no two neighbours may both be free and the rover must point at a
// block.
func (z *Zone) Validate() error {
	if z.mem == nil {
		return ErrReleased
	}
	s := z.hdr(sentinel)
	if s.size() != 0 || s.id() != zoneID || s.tag() != tagInUse {
		return errors.Wrap(ErrHeapInconsistent, "chain sentinel has been overwritten")
	}

	var (
		prev      = sentinel
		end       = z.hdrSize
		used      int
		roverSeen = z.rover == sentinel
		maxBlocks = len(z.mem) / z.cfg.Alignment
	)
	for b, n := s.next(), 0; b != sentinel; n++ {
		if n > maxBlocks {
			return errors.Wrap(ErrHeapInconsistent, "block chain does not return to the sentinel")
		}
		if b != end {
			return errors.Wrapf(ErrHeapInconsistent, "block at %d does not touch the previous block ending at %d", b, end)
		}
		if !z.isBlockOffset(b) {
			return errors.Wrapf(ErrHeapInconsistent, "block at %d lies outside the arena", b)
		}
		h := z.hdr(b)
		if h.id() != zoneID {
			return errors.Wrapf(ErrHeapInconsistent, "block at %d has no zone id", b)
		}
		if tag := h.tag(); tag != tagFree && tag != tagInUse {
			return errors.Wrapf(ErrHeapInconsistent, "block at %d has tag %#x", b, tag)
		}
		if h.prev() != prev {
			return errors.Wrapf(ErrHeapInconsistent, "block at %d links back to %d, want %d", b, h.prev(), prev)
		}
		size := h.size()
		if size < z.hdrSize || size > len(z.mem)-b {
			return errors.Wrapf(ErrHeapInconsistent, "block at %d has size %d", b, size)
		}
		if prev != sentinel && h.isFree() && z.hdr(prev).isFree() {
			return errors.Wrapf(ErrHeapInconsistent, "two consecutive free blocks at %d and %d", prev, b)
		}
		if !h.isFree() {
			used += size
		}
		if b == z.rover {
			roverSeen = true
		}
		prev, end = b, b+size
		b = h.next()
	}

	if s.prev() != prev {
		return errors.Wrapf(ErrHeapInconsistent, "sentinel links back to %d, want last block %d", s.prev(), prev)
	}
	if end != len(z.mem) {
		return errors.Wrapf(ErrHeapInconsistent, "blocks cover %d of %d bytes", end, len(z.mem))
	}
	if !roverSeen {
		return errors.Wrapf(ErrHeapInconsistent, "rover %d is not the head of a block", z.rover)
	}
	if used != z.used {
		return errors.Wrapf(ErrHeapInconsistent, "used blocks hold %d bytes, accounted %d", used, z.used)
	}
	return nil
}

// Check is Validate with violations escalated to the fatal hook.
func (z *Zone) Check() {
	if err := z.Validate(); err != nil {
		z.fatal(err)
	}
}

// Inspect returns a snapshot of the chain from head to tail.
func (z *Zone) Inspect() []BlockInfo {
	if z.mem == nil {
		return nil
	}
	var (
		blocks    []BlockInfo
		maxBlocks = len(z.mem) / z.cfg.Alignment
	)
	for b := z.hdr(sentinel).next(); b != sentinel && z.isBlockOffset(b) && len(blocks) <= maxBlocks; {
		h := z.hdr(b)
		blocks = append(blocks, BlockInfo{Offset: b, Size: h.size(), Free: h.isFree()})
		b = h.next()
	}
	return blocks
}

// Report writes a human readable block map to w.
func (z *Zone) Report(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString("-----------------MEMORY REPORT START-----------------\n")
	for _, b := range z.Inspect() {
		state := "used"
		if b.Free {
			state = "free"
		}
		fmt.Fprintf(&buf, "%10d %10d %s %f MiB\n", b.Offset, b.Size, state, float64(b.Size)/1024/1024)
	}
	s := z.Stats()
	fmt.Fprintf(&buf, "used %d / %d bytes in %d blocks, largest free %d\n", s.UsedBytes, s.Size, s.Blocks, s.LargestFree)
	buf.WriteString("------------------MEMORY REPORT END------------------\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteJSON writes the stats and the block map as one JSON object.
func (z *Zone) WriteJSON(w *jwriter.Writer) {
	s := z.Stats()
	obj := w.Object()
	obj.Name("TotalBytes").Int(s.Size)
	obj.Name("OverheadBytes").Int(s.Overhead)
	obj.Name("UsedBytes").Int(s.UsedBytes)
	obj.Name("UnusedBytes").Int(s.FreeBytes)
	obj.Name("Allocations").Int(s.UsedBlocks)
	obj.Name("UnusedRanges").Int(s.FreeBlocks)
	obj.Name("LargestUnusedRange").Int(s.LargestFree)

	arr := obj.Name("Blocks").Array()
	for _, b := range z.Inspect() {
		bo := arr.Object()
		bo.Name("Offset").Int(b.Offset)
		bo.Name("Size").Int(b.Size)
		if b.Free {
			bo.Name("Type").String("FREE")
		} else {
			bo.Name("Type").String("USED")
			bo.Name("Ptr").Int(b.Offset + z.hdrSize)
		}
		bo.End()
	}
	arr.End()
	obj.End()
}

// JSON renders WriteJSON into a byte slice.
func (z *Zone) JSON() ([]byte, error) {
	w := jwriter.NewWriter()
	z.WriteJSON(&w)
	return w.Bytes(), w.Error()
}

// LogAllocations logs every live allocation at info level.
func (z *Zone) LogAllocations(log *slog.Logger) {
	for _, b := range z.Inspect() {
		if b.Free {
			continue
		}
		log.Info("zone: live allocation", "ptr", b.Offset+z.hdrSize, "block", b.Offset, "size", b.Size)
	}
}
