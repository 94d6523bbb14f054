package zone

import (
	"encoding/binary"
	"unsafe"
)

// Block header layout. Every block, free or used, starts with one:
//
//	[0:8]   size, header included
//	[8:16]  offset of the previous block (0 is the sentinel)
//	[16:24] offset of the next block (0 is the sentinel)
//	[24:28] zone id, identifies a block header
//	[28:32] tag, tagFree or tagInUse
const (
	rawHeaderSize = 32

	offSize = 0
	offPrev = 8
	offNext = 16
	offID   = 24
	offTag  = 28
)

const (
	zoneID   uint32 = 0xdeadbeef
	tagFree  uint32 = 0
	tagInUse uint32 = 0x55534544
)

// sentinel is the offset of the zero-sized, permanently used header that
// closes the circular block chain.
const sentinel = 0

// headerSizeFor returns the header stride for an alignment. Payloads start
// one stride after their block, so the stride must keep them aligned.
func headerSizeFor(align int) int {
	return roundUp(rawHeaderSize, align)
}

// header is a view of one block header inside the arena.
type header []byte

func (h header) size() int     { return int(binary.LittleEndian.Uint64(h[offSize:])) }
func (h header) prev() int     { return int(binary.LittleEndian.Uint64(h[offPrev:])) }
func (h header) next() int     { return int(binary.LittleEndian.Uint64(h[offNext:])) }
func (h header) id() uint32    { return binary.LittleEndian.Uint32(h[offID:]) }
func (h header) tag() uint32   { return binary.LittleEndian.Uint32(h[offTag:]) }
func (h header) isFree() bool  { return h.tag() == tagFree }
func (h header) setSize(n int) { binary.LittleEndian.PutUint64(h[offSize:], uint64(n)) }
func (h header) setPrev(o int) { binary.LittleEndian.PutUint64(h[offPrev:], uint64(o)) }
func (h header) setNext(o int) { binary.LittleEndian.PutUint64(h[offNext:], uint64(o)) }
func (h header) setID(id uint32) {
	binary.LittleEndian.PutUint32(h[offID:], id)
}
func (h header) setTag(tag uint32) {
	binary.LittleEndian.PutUint32(h[offTag:], tag)
}

// format writes a complete header.
func (h header) format(size, prev, next int, tag uint32) {
	h.setSize(size)
	h.setPrev(prev)
	h.setNext(next)
	h.setID(zoneID)
	h.setTag(tag)
}

// hdr returns the header view of the block at off.
func (z *Zone) hdr(off int) header {
	return header(z.mem[off : off+rawHeaderSize : off+rawHeaderSize])
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
