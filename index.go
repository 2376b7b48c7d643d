package lsmtfs

import "sort"

// Index is the immutable LayerIndex backing a RO layer: a sorted,
// disjoint array built once from a raw mapping list and never mutated
// again. Lookup is a binary search followed by forward iteration.
type Index struct {
	arr         []SegmentMapping
	moffsetLow  uint64
	moffsetHigh uint64
	vsize       uint64
}

// NewIndex validates raw (must be sorted, disjoint, and every non-zeroed
// entry's physical range must fall within [moffsetLow, moffsetHigh)) and
// returns an Index wrapping it. If own is true, raw is kept without
// copying; otherwise NewIndex copies it first.
func NewIndex(raw []SegmentMapping, moffsetLow, moffsetHigh uint64, own bool, vsize uint64) (*Index, error) {
	arr := raw
	if !own {
		arr = make([]SegmentMapping, len(raw))
		copy(arr, raw)
	}

	var prevEnd uint64
	for i, m := range arr {
		if m.IsInvalid() {
			// Sector-boundary padding (InvalidMapping, Length 0) is only
			// ever appended after every real entry; it carries no
			// logical or physical range to validate.
			continue
		}
		if m.Length == 0 || m.Length > MaxSegmentLength {
			return nil, NewError(KindCorrupt, "NewIndex", nil)
		}
		if i > 0 && m.Offset < prevEnd {
			return nil, NewError(KindCorrupt, "NewIndex", nil)
		}
		if !m.Zeroed {
			if m.Moffset < moffsetLow || m.Mend() > moffsetHigh {
				return nil, NewError(KindCorrupt, "NewIndex", nil)
			}
		}
		prevEnd = m.End()
	}

	return &Index{arr: arr, moffsetLow: moffsetLow, moffsetHigh: moffsetHigh, vsize: vsize}, nil
}

// Entries returns the underlying sorted, disjoint mapping array. Callers
// must not mutate it.
func (idx *Index) Entries() []SegmentMapping { return idx.arr }

// VirtualSize returns the logical size recorded when idx was built.
func (idx *Index) VirtualSize() uint64 { return idx.vsize }

// Lookup writes mappings covering q into out, clipped to q on both ends,
// and returns the count written. Only up to len(out) mappings are
// written; callers that need the full result should size out generously
// or call Lookup again with an adjusted q.
func (idx *Index) Lookup(q Segment, out []SegmentMapping) int {
	start := sort.Search(len(idx.arr), func(i int) bool {
		return idx.arr[i].End() > q.Offset
	})

	n := 0
	for i := start; i < len(idx.arr) && n < len(out); i++ {
		e := idx.arr[i]
		if e.Offset >= q.End() {
			break
		}
		out[n] = e.clippedTo(q)
		n++
	}
	return n
}

// Merge produces a single-level immutable view of a bottom-to-top stack
// of indexes. Each result mapping's Tag is set to its position in
// indexes (bottom = 0). Overlaps resolve upper-wins, exactly as
// Index0.Insert would.
func Merge(indexes []*Index) (*Index, error) {
	tmp := NewIndex0(0)
	var vsize uint64
	for tag, ix := range indexes {
		for _, m := range ix.arr {
			if m.IsInvalid() {
				continue // sector-boundary padding of a sealed index
			}
			m.Tag = uint8(tag)
			if err := tmp.Insert(m); err != nil {
				return nil, err
			}
		}
		if ix.vsize > vsize {
			vsize = ix.vsize
		}
	}
	dump := tmp.Dump(0)
	// moffset bounds are meaningless for a merged multi-tag index; every
	// entry's moffset was already validated by its source Index.
	return NewIndex(dump, 0, 1<<63, true, vsize)
}
