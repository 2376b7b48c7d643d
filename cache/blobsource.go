// Package cache implements BlockCache: a refill-unit-granular,
// LRU-evicting local cache in front of a BlobSource (an abstract
// byte-addressable remote object, e.g. a registry blob).
package cache

import (
	"os"

	"github.com/KarpelesLab/lsmtfs"
)

// BlobSource abstracts a byte-addressable remote object: aligned
// pread(offset, len) -> bytes. Concrete backings (local file, HTTP
// range-GET) are collaborators outside this package's scope; this
// package only consumes the interface.
type BlobSource interface {
	Pread(buf []byte, offset int64) (int, error)
	Size() int64
}

// LocalFileBlobSource adapts an already-local *os.File to BlobSource,
// letting tests and single-host deployments skip the network path
// entirely.
type LocalFileBlobSource struct {
	f    *os.File
	size int64
}

// NewLocalFileBlobSource wraps f, whose size is read once at open time.
func NewLocalFileBlobSource(f *os.File) (*LocalFileBlobSource, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &LocalFileBlobSource{f: f, size: st.Size()}, nil
}

func (s *LocalFileBlobSource) Pread(buf []byte, offset int64) (int, error) {
	return s.f.ReadAt(buf, offset)
}

func (s *LocalFileBlobSource) Size() int64 { return s.size }

func invalidArg(op string, cause error) error {
	return lsmtfs.NewError(lsmtfs.KindInvalidArgument, op, cause)
}
