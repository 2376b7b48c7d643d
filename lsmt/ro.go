package lsmt

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KarpelesLab/lsmtfs"
)

// DefaultMaxIOSize is the default chunk size pread splits oversized
// requests into: 4 MiB, a multiple of 4 KiB.
const DefaultMaxIOSize = 4 << 20

// ReadOnly is the read path over a (possibly stacked) LSMT view: an
// index plus one BlobHandle per tag.
type ReadOnly struct {
	index       lsmtfs.LayerIndex
	files       []BlobHandle
	virtualSize uint64
	uuids       []uuid.UUID
	maxIOSize   int
	logger      *zap.Logger
}

// NewReadOnly builds a single-layer RO view. uuids[i] corresponds to
// files[i] and may be left as uuid.Nil when chain verification isn't
// needed (e.g. in tests).
func NewReadOnly(index lsmtfs.LayerIndex, files []BlobHandle, virtualSize uint64, uuids []uuid.UUID) *ReadOnly {
	return &ReadOnly{index: index, files: files, virtualSize: virtualSize, uuids: uuids, maxIOSize: DefaultMaxIOSize, logger: zap.NewNop()}
}

// SetLogger attaches a logger for short-read warnings; the default is a
// no-op logger.
func (f *ReadOnly) SetLogger(l *zap.Logger) { f.logger = l }

// SetMaxIOSize overrides the default chunking size for Pread; it must
// be a positive multiple of 4 KiB.
func (f *ReadOnly) SetMaxIOSize(n int) error {
	if n <= 0 || n%(4<<10) != 0 {
		return invalidArg("ReadOnly.SetMaxIOSize", nil)
	}
	f.maxIOSize = n
	return nil
}

func (f *ReadOnly) Kind() FileKind { return KindRO }

// Pread reads count bytes at offset, both of which must be sector
// aligned. Requests larger than maxIOSize are split and recursed.
func (f *ReadOnly) Pread(buf []byte, offset int64) (int, error) {
	count := len(buf)
	if offset%lsmtfs.SectorSize != 0 || int64(count)%lsmtfs.SectorSize != 0 {
		return 0, invalidArg("ReadOnly.Pread", nil)
	}

	if count > f.maxIOSize {
		done := 0
		for done < count {
			chunk := f.maxIOSize
			if count-done < chunk {
				chunk = count - done
			}
			n, err := f.Pread(buf[done:done+chunk], offset+int64(done))
			done += n
			if err != nil {
				return done, err
			}
			if n < chunk {
				return done, nil
			}
		}
		return done, nil
	}

	if uint64(offset) >= f.virtualSize {
		return 0, nil
	}
	if uint64(offset)+uint64(count) > f.virtualSize {
		count = int(f.virtualSize - uint64(offset))
		buf = buf[:count]
	}

	q := lsmtfs.Segment{Offset: uint64(offset) / lsmtfs.SectorSize, Length: uint64(count) / lsmtfs.SectorSize}
	base := uint64(offset)
	total := 0

	err := lsmtfs.ForeachSegments(f.index, q,
		func(hole lsmtfs.Segment) error {
			start := hole.Offset*lsmtfs.SectorSize - base
			n := hole.Length * lsmtfs.SectorSize
			for i := uint64(0); i < n; i++ {
				buf[start+i] = 0
			}
			total += int(n)
			return nil
		},
		func(m lsmtfs.SegmentMapping) error {
			if int(m.Tag) >= len(f.files) {
				return corrupt("ReadOnly.Pread", nil)
			}
			start := m.Offset*lsmtfs.SectorSize - base
			n := int(m.Length * lsmtfs.SectorSize)
			dst := buf[start : start+uint64(n)]
			got, err := f.readFrom(f.files[m.Tag], dst, int64(m.Moffset*lsmtfs.SectorSize))
			total += got
			if err != nil {
				return err
			}
			if got < n {
				// Short read: the retry already happened in readFrom;
				// zero the unreadable tail and keep going rather than
				// failing the whole request.
				f.logger.Warn("short read past retry, zero-filling remainder",
					zap.Int("tag", int(m.Tag)), zap.Int("got", got), zap.Int("want", n))
				for i := got; i < n; i++ {
					dst[i] = 0
				}
			}
			return nil
		},
	)
	if err != nil {
		return total, err
	}
	return total, nil
}

// readFrom issues one pread against h, retrying the short tail once
// before giving up per the propagation policy.
func (f *ReadOnly) readFrom(h BlobHandle, dst []byte, offset int64) (int, error) {
	n, err := h.Pread(dst, offset)
	if err != nil {
		return n, err
	}
	if n < len(dst) {
		more, err2 := h.Pread(dst[n:], offset+int64(n))
		n += more
		if err2 != nil {
			return n, err2
		}
	}
	return n, nil
}

func (f *ReadOnly) Pwrite(buf []byte, offset int64) (int, error) {
	return 0, unsupported("ReadOnly.Pwrite", nil)
}

func (f *ReadOnly) Fstat() (Stat, error) {
	var blocks int64
	if idx, ok := f.index.(interface{ Entries() []lsmtfs.SegmentMapping }); ok {
		for _, m := range idx.Entries() {
			if !m.Zeroed {
				blocks += int64(m.Length)
			}
		}
	}
	return Stat{Size: int64(f.virtualSize), BlkSize: lsmtfs.SectorSize, Blocks: blocks}, nil
}

func (f *ReadOnly) Fsync() error     { return nil }
func (f *ReadOnly) Fdatasync() error { return nil }

func (f *ReadOnly) Fallocate(mode FallocateMode, offset, length int64) error {
	return unsupported("ReadOnly.Fallocate", nil)
}

// VirtualSize returns the logical size of this view.
func (f *ReadOnly) VirtualSize() uint64 { return f.virtualSize }

// Index returns the view's LayerIndex, for the Compactor and tests.
func (f *ReadOnly) Index() lsmtfs.LayerIndex { return f.index }

// Files returns the per-tag backing handles, for the Compactor.
func (f *ReadOnly) Files() []BlobHandle { return f.files }
