package zone

import "golang.org/x/exp/constraints"

const (
	// DefaultAlignment is the payload alignment guaranteed by Allocate.
	DefaultAlignment = 16

	// DefaultMinFragment is the smallest leftover worth splitting off a
	// free block as a block of its own.
	DefaultMinFragment = 64

	// DefaultSize is the arena budget used when Config.Size is zero (24 MiB).
	DefaultSize = 24 << 20

	// minAlignment keeps the 64-bit header fields naturally aligned.
	minAlignment = 8
)

// roundUp rounds size up to the nearest multiple of align.
// align must be a power of two.
func roundUp[T constraints.Integer](size, align T) T {
	return (size + align - 1) &^ (align - 1)
}

func isPowerOfTwo[T constraints.Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}

func isAligned[T constraints.Integer](n, align T) bool {
	return n&(align-1) == 0
}
