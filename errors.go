package zone

import (
	"github.com/cockroachdb/errors"
)

// Recoverable errors. Allocate reports them together with Nil.
var (
	// ErrZeroSize is returned for requests of zero or negative bytes.
	ErrZeroSize = errors.New("zone: allocation size must be greater than 0")

	// ErrOutOfMemory is returned when no free block can hold the request.
	// It is not transient: retrying only helps after intervening frees.
	ErrOutOfMemory = errors.New("zone: out of memory")
)

// Fatal errors. These are handed to the FatalFunc and never returned from
// Allocate or Free in the ordinary way.
var (
	ErrSystemAlloc      = errors.New("zone: system allocator could not provide the arena")
	ErrInvalidPointer   = errors.New("zone: pointer is not owned by the zone")
	ErrDoubleFree       = errors.New("zone: block is already free")
	ErrCorrupt          = errors.New("zone: block header is corrupted")
	ErrHeapInconsistent = errors.New("zone: heap consistency violation")
	ErrLeak             = errors.New("zone: allocations outstanding at shutdown")
	ErrReleased         = errors.New("zone: use after Shutdown")
)

// FatalFunc reports an unrecoverable invariant violation. It is expected not
// to return; if it does, the zone abandons the operation without touching
// the block chain.
type FatalFunc func(err error)

// DefaultFatal panics with err. Nothing in this package recovers it, so an
// unhandled violation terminates the process with the violated invariant in
// the panic message.
func DefaultFatal(err error) {
	panic(err)
}

func (z *Zone) fatal(err error) {
	z.log.Error("zone: fatal", "err", err)
	z.cfg.Fatal(err)
}
