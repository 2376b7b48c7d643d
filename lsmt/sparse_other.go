//go:build !linux

package lsmt

import (
	"os"

	"github.com/KarpelesLab/lsmtfs"
)

// deriveSparseIndex has no SEEK_HOLE/SEEK_DATA equivalent outside
// Linux; it falls back to treating everything past headerSize as one
// data extent, which is correct (if not space-optimal) since reads of
// an unwritten region of a regular file already return zeros. moffset
// is offset by headerSize, matching how Pwrite addresses sparse writes.
func deriveSparseIndex(f *os.File, headerSize, size uint64) (*lsmtfs.Index0, error) {
	idx := lsmtfs.NewIndex0(1)
	if size <= headerSize {
		return idx, nil
	}
	m := lsmtfs.SegmentMapping{
		Segment: lsmtfs.Segment{Offset: 0, Length: (size - headerSize) / lsmtfs.SectorSize},
		Moffset: headerSize / lsmtfs.SectorSize,
		Tag:     0,
	}
	if err := idx.Insert(m); err != nil {
		return nil, err
	}
	return idx, nil
}
