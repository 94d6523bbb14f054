//go:build goexperiment.arenas

package zone

import (
	"arena"
	"fmt"

	"github.com/cockroachdb/errors"
)

// ArenaHeap backs a zone with a runtime arena. The whole arena is returned
// to the runtime in one step when the zone shuts down.
type ArenaHeap struct {
	a *arena.Arena
}

// NewArenaHeap creates an ArenaHeap good for exactly one zone.
func NewArenaHeap() *ArenaHeap {
	return &ArenaHeap{a: arena.NewArena()}
}

// Alloc carves the zone's buffer out of the runtime arena.
func (h *ArenaHeap) Alloc(size, align int) (buf []byte, err error) {
	if h.a == nil {
		return nil, errors.Wrap(ErrSystemAlloc, "arena already freed")
	}
	if size <= 0 {
		return nil, errors.Wrapf(ErrSystemAlloc, "invalid size %d", size)
	}
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, errors.Wrapf(ErrSystemAlloc, "%d bytes: %s", size, fmt.Sprint(r))
		}
	}()
	raw := arena.MakeSlice[byte](h.a, size+align-1, size+align-1)
	off := 0
	for !isAligned(addrOf(raw[off:]), uintptr(align)) {
		off++
	}
	return raw[off : off+size : off+size], nil
}

// Free releases the runtime arena. Any slice obtained from it must not be
// touched afterwards.
func (h *ArenaHeap) Free([]byte) {
	if h.a == nil {
		return
	}
	h.a.Free()
	h.a = nil
}
