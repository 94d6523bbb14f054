/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

// Package zone implements a next-fit free-list allocator over a single
// arena obtained once from a SystemAllocator.
//
// Every block in the arena, free or used, starts with a header holding its
// size and the offsets of its neighbours, so the blocks form a circular
// doubly linked chain that tiles the arena exactly. Allocate splits the
// first large enough free block found from the rover onwards; Free merges
// the released block with free neighbours on both sides.
//
// Violated invariants (double free, foreign pointers, corrupted headers)
// are reported through Config.Fatal and are never silently repaired.
//
// IMPORTANT: This package is NOT goroutine-safe.
// Callers sharing a Zone between goroutines must serialise every call.
package zone

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Ptr is the offset of an allocation's payload within the arena.
type Ptr uint64

// Nil is the failure sentinel returned alongside Allocate errors. The
// arena starts with the chain sentinel, so no payload ever lives at 0.
const Nil Ptr = 0

// Zone is a free-list allocator over one arena.
//
// WARNING: This type is NOT goroutine-safe.
type Zone struct {
	cfg Config
	log *slog.Logger

	// Backing arena, nil after Shutdown.
	mem []byte

	// Header stride; payloads start this many bytes into their block.
	hdrSize int

	// Block where the next search starts.
	rover int

	// Sum of used block sizes, headers included.
	used int
}

// New obtains the arena from cfg.System and formats it as a single free
// block. Configuration problems are returned as errors; failure to obtain
// the arena is fatal and goes through cfg.Fatal first.
func New(cfg Config) (*Zone, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}
	z := &Zone{
		cfg:     cfg,
		log:     cfg.Logger,
		hdrSize: headerSizeFor(cfg.Alignment),
	}

	mem, err := cfg.System.Alloc(cfg.Size, cfg.Alignment)
	if err == nil && len(mem) != cfg.Size {
		err = errors.Newf("system allocator returned %d bytes", len(mem))
	}
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "zone: failed to obtain a %d byte arena", cfg.Size), ErrSystemAlloc)
		z.fatal(err)
		return nil, err
	}
	if debugBuild && !isAligned(addrOf(mem), uintptr(cfg.Alignment)) {
		cfg.System.Free(mem)
		err = errors.Wrapf(ErrHeapInconsistent, "arena base %#x is not %d-byte aligned", addrOf(mem), cfg.Alignment)
		z.fatal(err)
		return nil, err
	}

	z.mem = mem
	first := z.hdrSize
	z.hdr(sentinel).format(0, first, first, tagInUse)
	z.hdr(first).format(len(mem)-first, sentinel, sentinel, tagFree)
	z.rover = first

	z.log.Debug("zone: initialized",
		"size", len(mem),
		"usable", len(mem)-first,
		"alignment", cfg.Alignment,
		"min_fragment", cfg.MinFragment)
	return z, nil
}

// Allocate returns a pointer to at least n bytes. The payload is aligned
// to Config.Alignment. When no free block is large enough it returns Nil
// and an error matching ErrOutOfMemory; the zone is left untouched.
func (z *Zone) Allocate(n int) (Ptr, error) {
	if z.mem == nil {
		z.fatal(ErrReleased)
		return Nil, ErrReleased
	}
	if n <= 0 {
		return Nil, ErrZeroSize
	}
	if n > len(z.mem) {
		return Nil, z.outOfMemory(n)
	}
	need := roundUp(n, z.cfg.Alignment) + z.hdrSize

	// Next fit: walk the ring once, starting at the rover.
	b := z.rover
	start := z.hdr(b).prev()
	for {
		h := z.hdr(b)
		if h.isFree() && h.size() >= need {
			break
		}
		if b == start {
			return Nil, z.outOfMemory(n)
		}
		b = h.next()
	}

	h := z.hdr(b)
	if extra := h.size() - need; extra >= z.cfg.MinFragment {
		nb := b + need
		next := h.next()
		z.hdr(nb).format(extra, b, next, tagFree)
		z.hdr(next).setPrev(nb)
		h.setNext(nb)
		h.setSize(need)
	}
	h.setTag(tagInUse)
	z.rover = h.next()
	z.used += h.size()

	z.verify()
	return Ptr(b + z.hdrSize), nil
}

// MustAllocate is Allocate for callers that cannot continue without the
// memory: exhaustion is escalated to the fatal hook.
func (z *Zone) MustAllocate(n int) Ptr {
	p, err := z.Allocate(n)
	if err != nil {
		z.fatal(errors.Wrap(err, "zone: failed to allocate memory"))
		return Nil
	}
	return p
}

// Free releases an allocation and merges it with free neighbours.
// Passing Nil, a pointer not returned by Allocate, or a pointer that was
// already freed is fatal.
func (z *Zone) Free(p Ptr) {
	if z.mem == nil {
		z.fatal(ErrReleased)
		return
	}
	b, err := z.blockOf(p)
	if err != nil {
		z.fatal(err)
		return
	}
	h := z.hdr(b)
	h.setTag(tagFree)
	z.used -= h.size()

	if prev := h.prev(); z.hdr(prev).isFree() {
		z.absorb(prev, b)
		b, h = prev, z.hdr(prev)
	}
	if next := h.next(); z.hdr(next).isFree() {
		z.absorb(b, next)
	}

	z.verify()
}

// Bytes returns the payload of a live allocation. Its length is the usable
// size of the block, which may exceed what was requested.
func (z *Zone) Bytes(p Ptr) []byte {
	if z.mem == nil {
		z.fatal(ErrReleased)
		return nil
	}
	b, err := z.blockOf(p)
	if err != nil {
		z.fatal(err)
		return nil
	}
	end := b + z.hdr(b).size()
	return z.mem[int(p):end:end]
}

// Shutdown returns the arena to the system allocator. Debug builds first
// assert that the arena is back to a single free block.
func (z *Zone) Shutdown() {
	if z.mem == nil {
		z.fatal(ErrReleased)
		return
	}
	if debugBuild {
		if err := z.leakCheck(); err != nil {
			z.fatal(err)
			return
		}
	}
	z.cfg.System.Free(z.mem)
	z.mem = nil
	z.rover = 0
	z.used = 0
	z.log.Debug("zone: shut down")
}

// Size returns the arena size in bytes, or 0 after Shutdown.
func (z *Zone) Size() int {
	return len(z.mem)
}

// UsedSize returns the total block size (NOT allocation size) in use,
// headers included.
func (z *Zone) UsedSize() int {
	return z.used
}

// absorb merges the block at victim into the block at into, which must
// directly precede it in the chain.
func (z *Zone) absorb(into, victim int) {
	ih, vh := z.hdr(into), z.hdr(victim)
	ih.setSize(ih.size() + vh.size())
	ih.setNext(vh.next())
	z.hdr(vh.next()).setPrev(into)
	if z.rover == victim {
		z.rover = into
	}
}

// blockOf recovers the used block behind a payload pointer, rejecting
// anything that is not the head of a live allocation.
func (z *Zone) blockOf(p Ptr) (int, error) {
	if p == Nil {
		return 0, errors.Wrap(ErrInvalidPointer, "nil pointer")
	}
	if uint64(p) < uint64(2*z.hdrSize) || uint64(p) >= uint64(len(z.mem)) {
		return 0, errors.Wrapf(ErrInvalidPointer, "offset %d outside the arena [%d, %d)", p, 2*z.hdrSize, len(z.mem))
	}
	b := int(p) - z.hdrSize
	if !isAligned(b, z.cfg.Alignment) {
		return 0, errors.Wrapf(ErrInvalidPointer, "offset %d is not %d-byte aligned", p, z.cfg.Alignment)
	}

	h := z.hdr(b)
	if h.id() != zoneID {
		return 0, errors.Wrapf(ErrInvalidPointer, "no block header at offset %d", b)
	}
	switch h.tag() {
	case tagInUse:
	case tagFree:
		return 0, errors.Wrapf(ErrDoubleFree, "block at offset %d", b)
	default:
		return 0, errors.Wrapf(ErrCorrupt, "block at offset %d has tag %#x", b, h.tag())
	}
	if size := h.size(); size < z.hdrSize || size > len(z.mem)-b {
		return 0, errors.Wrapf(ErrCorrupt, "block at offset %d has size %d", b, size)
	}
	prev, next := h.prev(), h.next()
	if !z.isBlockOffset(prev) || !z.isBlockOffset(next) {
		return 0, errors.Wrapf(ErrCorrupt, "block at offset %d links to %d and %d", b, prev, next)
	}
	if z.hdr(prev).next() != b || z.hdr(next).prev() != b {
		return 0, errors.Wrapf(ErrCorrupt, "block at offset %d is not linked back by its neighbours", b)
	}
	return b, nil
}

// isBlockOffset reports whether a header could start at off.
func (z *Zone) isBlockOffset(off int) bool {
	return off >= 0 && off <= len(z.mem)-rawHeaderSize && isAligned(off, z.cfg.Alignment)
}

func (z *Zone) outOfMemory(n int) error {
	z.log.Debug("zone: allocation failed", "requested", n, "used", z.used, "size", len(z.mem))
	return errors.Wrapf(ErrOutOfMemory, "%d bytes requested", n)
}

func (z *Zone) leakCheck() error {
	first := z.hdr(sentinel).next()
	h := z.hdr(first)
	if h.isFree() && h.next() == sentinel && first+h.size() == len(z.mem) {
		return nil
	}
	s := z.Stats()
	return errors.Wrapf(ErrLeak, "%d blocks holding %d bytes still in use", s.UsedBlocks, s.UsedBytes)
}

func (z *Zone) verify() {
	if debugBuild && z.cfg.VerifyEachCall {
		z.Check()
	}
}
