package lsmt

import "github.com/KarpelesLab/lsmtfs"

// compactReadBatch bounds how many mappings Compact pulls per Lookup
// call while walking the source index front to back.
const compactReadBatch = 64

// Compactor rewrites a (possibly stacked) source view into a single
// flat RO layer: one contiguous data stream plus a merged Index with
// one tag. Zeroed mappings and genuinely all-zero data blocks are both
// dropped from the output rather than copied, shrinking a layer whose
// writer never called Fallocate to punch holes it could have.
type Compactor struct {
	src lsmtfs.LayerIndex
	// readFiles resolves a source mapping's tag to a BlobHandle to read
	// its bytes from.
	readFiles []BlobHandle
	vsize     uint64
}

// NewCompactor builds a Compactor over src, reading data-bearing
// mappings through readFiles (indexed by Tag).
func NewCompactor(src lsmtfs.LayerIndex, readFiles []BlobHandle, vsize uint64) *Compactor {
	return &Compactor{src: src, readFiles: readFiles, vsize: vsize}
}

// Compact streams the flattened content to dst (a fresh append-only
// data file) and returns the merged, single-tag Index describing it.
// dst receives only data-bearing, non-all-zero ranges: each source
// mapping is read whole and dropped when isZeroBlock finds every byte of
// it zero (unlike the original implementation, which always returned
// false and so never actually detected zero blocks). A mapping with any
// nonzero byte is copied in full.
func (c *Compactor) Compact(dst *dataFile) (*lsmtfs.Index, error) {
	out := lsmtfs.NewIndex0(0)

	q := lsmtfs.Segment{Offset: 0, Length: (c.vsize + lsmtfs.SectorSize - 1) / lsmtfs.SectorSize}
	err := lsmtfs.ForeachSegments(c.src, q,
		func(lsmtfs.Segment) error { return nil }, // holes: nothing to copy
		func(m lsmtfs.SegmentMapping) error {
			if int(m.Tag) >= len(c.readFiles) {
				return corrupt("Compactor.Compact", nil)
			}
			buf := make([]byte, m.Length*lsmtfs.SectorSize)
			if _, err := c.readFiles[m.Tag].Pread(buf, int64(m.Moffset*lsmtfs.SectorSize)); err != nil {
				return err
			}
			if isZeroBlock(buf) {
				return nil
			}
			moffset, err := dst.Append(buf)
			if err != nil {
				return err
			}
			return out.Insert(lsmtfs.SegmentMapping{
				Segment: m.Segment,
				Moffset: moffset / lsmtfs.SectorSize,
				Tag:     0,
			})
		},
	)
	if err != nil {
		return nil, err
	}

	dump := mergeAdjacent(out.Dump(0))
	dump = padToSector(dump)
	return lsmtfs.NewIndex(dump, 0, dst.Size()/lsmtfs.SectorSize, true, c.vsize)
}

// isZeroBlock reports whether buf is entirely zero bytes.
func isZeroBlock(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// mergeAdjacent coalesces consecutive mappings that are contiguous in
// both logical and physical space, sharing a tag and zeroed state, into
// a single entry (capped at MaxSegmentLength). This is the index
// compression pass a Compactor runs before handing its output off as a
// layer's final Index: a writer that appended one mapping per Pwrite
// otherwise leaves the flattened layer with far more entries than the
// data actually needs.
func mergeAdjacent(arr []lsmtfs.SegmentMapping) []lsmtfs.SegmentMapping {
	if len(arr) == 0 {
		return arr
	}
	out := make([]lsmtfs.SegmentMapping, 0, len(arr))
	cur := arr[0]
	for _, m := range arr[1:] {
		contiguous := cur.Tag == m.Tag &&
			cur.Zeroed == m.Zeroed &&
			cur.End() == m.Offset &&
			(cur.Zeroed || cur.Mend() == m.Moffset) &&
			cur.Length+m.Length <= lsmtfs.MaxSegmentLength
		if contiguous {
			cur.Length += m.Length
			continue
		}
		out = append(out, cur)
		cur = m
	}
	return append(out, cur)
}

// padToSector appends InvalidMapping padding entries so len(arr) is a
// multiple of the number of SegmentMapping entries per sector, matching
// the on-disk index layout every index reader/writer in this package
// assumes.
func padToSector(arr []lsmtfs.SegmentMapping) []lsmtfs.SegmentMapping {
	const perSector = lsmtfs.SectorSize / lsmtfs.SegmentMappingSize
	if rem := len(arr) % perSector; rem != 0 {
		for i := rem; i < perSector; i++ {
			arr = append(arr, lsmtfs.InvalidMapping())
		}
	}
	return arr
}
