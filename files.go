package zone

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// ReadFile reads the named file into a fresh allocation and returns it
// with the file length. The allocation belongs to the caller, who must
// Free it.
func (z *Zone) ReadFile(name string) (Ptr, int, error) {
	f, err := os.Open(name)
	if err != nil {
		return Nil, 0, errors.Wrap(err, "zone: open")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Nil, 0, errors.Wrapf(err, "zone: stat %s", name)
	}
	n := int(fi.Size())
	p, err := z.Allocate(n)
	if err != nil {
		return Nil, 0, errors.Wrapf(err, "zone: read %s", name)
	}
	if _, err := io.ReadFull(f, z.Bytes(p)[:n]); err != nil {
		z.Free(p)
		return Nil, 0, errors.Wrapf(err, "zone: read %s", name)
	}
	return p, n, nil
}
