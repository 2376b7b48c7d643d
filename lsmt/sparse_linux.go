//go:build linux

package lsmt

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/KarpelesLab/lsmtfs"
)

// deriveSparseIndex rebuilds the Index0 of a sparse RW layer from the
// underlying file's hole/data extents via SEEK_HOLE/SEEK_DATA, instead
// of replaying a journal (a sparse layer has none). Scanning starts
// past headerSize (the header record at the front of the file is never
// data), and every data extent becomes a single-tag mapping with
// moffset = headerSize + logical_offset, matching how Pwrite addresses
// sparse writes.
func deriveSparseIndex(f *os.File, headerSize, size uint64) (*lsmtfs.Index0, error) {
	idx := lsmtfs.NewIndex0(0)
	fd := int(f.Fd())

	pos := int64(headerSize)
	for uint64(pos) < size {
		dataStart, err := unix.Seek(fd, pos, unix.SEEK_DATA)
		if err != nil {
			if err == unix.ENXIO {
				break // no more data past pos
			}
			return nil, corrupt("deriveSparseIndex", err)
		}
		holeStart, err := unix.Seek(fd, dataStart, unix.SEEK_HOLE)
		if err != nil {
			if err == unix.ENXIO {
				holeStart = int64(size)
			} else {
				return nil, corrupt("deriveSparseIndex", err)
			}
		}
		if uint64(holeStart) > size {
			holeStart = int64(size)
		}

		start := alignDown(uint64(dataStart), lsmtfs.SectorSize)
		end := alignUp(uint64(holeStart), lsmtfs.SectorSize)
		if start < headerSize {
			start = headerSize
		}
		if end > start {
			m := lsmtfs.SegmentMapping{
				Segment: lsmtfs.Segment{Offset: (start - headerSize) / lsmtfs.SectorSize, Length: (end - start) / lsmtfs.SectorSize},
				Moffset: start / lsmtfs.SectorSize,
				Tag:     0,
			}
			if err := idx.Insert(m); err != nil {
				return nil, err
			}
		}
		pos = holeStart
	}

	return idx, nil
}

func alignDown(v, a uint64) uint64 { return v - v%a }
func alignUp(v, a uint64) uint64 {
	if v%a == 0 {
		return v
	}
	return v + (a - v%a)
}
