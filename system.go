package zone

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// SystemAllocator supplies the single arena a zone carves all of its
// blocks from. Alloc is called once per zone and Free once, at Shutdown.
type SystemAllocator interface {
	// Alloc returns size bytes whose first byte is aligned to align.
	Alloc(size, align int) ([]byte, error)

	// Free releases a buffer previously returned by Alloc.
	Free(buf []byte)
}

// GoHeap obtains the arena from the Go heap. Free drops the reference and
// leaves reclamation to the garbage collector.
type GoHeap struct{}

// Alloc over-allocates by align-1 bytes and slices from the first aligned
// address, so payload offsets are aligned in absolute terms too.
func (GoHeap) Alloc(size, align int) (buf []byte, err error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrSystemAlloc, "invalid size %d", size)
	}
	defer func() {
		// make panics on lengths the runtime cannot represent.
		if r := recover(); r != nil {
			buf, err = nil, errors.Wrapf(ErrSystemAlloc, "%d bytes: %s", size, fmt.Sprint(r))
		}
	}()
	raw := make([]byte, size+align-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	off := int(roundUp(base, uintptr(align)) - base)
	return raw[off : off+size : off+size], nil
}

// Free is a no-op; the buffer becomes garbage once the zone forgets it.
func (GoHeap) Free([]byte) {}
