package zone

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Config describes a zone. The zero value is usable: every unset field
// takes its default.
type Config struct {
	Size        int // Arena bytes, header overhead included (default: DefaultSize)
	Alignment   int // Payload alignment, a power of two (default: DefaultAlignment)
	MinFragment int // Smallest split-off remainder (default: DefaultMinFragment)

	System SystemAllocator // Source of the arena (default: GoHeap{})
	Fatal  FatalFunc       // Invariant violation hook (default: DefaultFatal)
	Logger *slog.Logger    // (default: slog.Default())

	// VerifyEachCall audits the whole chain after every Allocate and Free.
	// Only honoured in debug builds.
	VerifyEachCall bool
}

func normalizeConfig(cfg Config) (Config, error) {
	if cfg.Size < 0 {
		return Config{}, errors.Newf("zone: Size must be >= 0, got %d", cfg.Size)
	}
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Alignment == 0 {
		cfg.Alignment = DefaultAlignment
	}
	if !isPowerOfTwo(cfg.Alignment) || cfg.Alignment < minAlignment {
		return Config{}, errors.Newf("zone: Alignment must be a power of two >= %d, got %d", minAlignment, cfg.Alignment)
	}
	if cfg.MinFragment == 0 {
		cfg.MinFragment = DefaultMinFragment
	}
	hdr := headerSizeFor(cfg.Alignment)
	if cfg.MinFragment < hdr+cfg.Alignment {
		return Config{}, errors.Newf("zone: MinFragment must be >= %d (header plus one aligned unit), got %d", hdr+cfg.Alignment, cfg.MinFragment)
	}
	if cfg.Size < 2*hdr+cfg.Alignment {
		return Config{}, errors.Newf("zone: Size must be >= %d, got %d", 2*hdr+cfg.Alignment, cfg.Size)
	}
	if cfg.System == nil {
		cfg.System = GoHeap{}
	}
	if cfg.Fatal == nil {
		cfg.Fatal = DefaultFatal
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg, nil
}
