package lsmtfs

import (
	"sort"
	"sync"
)

// Index0 is the mutable LayerIndex backing a RW layer: a sorted, disjoint
// set of SegmentMappings. Insert clips or removes any existing mapping
// that overlaps the new one, so the invariant "sorted and disjoint"
// holds after every call. Index0 is safe for concurrent use; callers
// that need a consistent multi-operation view (e.g. pwrite + journal
// append) still take their own lock around the pair, as described in
// the concurrency model.
type Index0 struct {
	mu  sync.RWMutex
	arr []SegmentMapping
}

// NewIndex0 returns an empty Index0. capacity is a hint for the backing
// slice, not a hard limit.
func NewIndex0(capacity int) *Index0 {
	return &Index0{arr: make([]SegmentMapping, 0, capacity)}
}

// search returns the index of the first mapping whose End() is greater
// than offset (i.e. the first mapping that could overlap a segment
// starting at offset).
func (idx *Index0) search(offset uint64) int {
	return sort.Search(len(idx.arr), func(i int) bool {
		return idx.arr[i].End() > offset
	})
}

// Insert adds m, removing or clipping every existing mapping whose
// logical range overlaps m. m.Length must be greater than zero and at
// most MaxSegmentLength.
func (idx *Index0) Insert(m SegmentMapping) error {
	if m.Length == 0 {
		return NewError(KindInvalidArgument, "Index0.Insert", nil)
	}
	if m.Length > MaxSegmentLength {
		return NewError(KindInvalidArgument, "Index0.Insert", nil)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := idx.search(m.Offset)
	end := start
	var replacement []SegmentMapping
	for end < len(idx.arr) && idx.arr[end].Offset < m.End() {
		e := idx.arr[end]
		if e.Offset < m.Offset {
			// e straddles m's start: keep the left remainder.
			left := e.clippedTo(Segment{Offset: e.Offset, Length: m.Offset - e.Offset})
			replacement = append(replacement, left)
		}
		if e.End() > m.End() {
			// e straddles m's end: keep the right remainder.
			right := e.clippedTo(Segment{Offset: m.End(), Length: e.End() - m.End()})
			replacement = append(replacement, right)
		}
		end++
	}

	newArr := make([]SegmentMapping, 0, len(idx.arr)-(end-start)+len(replacement)+1)
	newArr = append(newArr, idx.arr[:start]...)
	newArr = append(newArr, replacement...)
	newArr = append(newArr, m)
	newArr = append(newArr, idx.arr[end:]...)
	sort.Slice(newArr, func(i, j int) bool { return newArr[i].Offset < newArr[j].Offset })
	idx.arr = newArr
	return nil
}

// Dump returns a sorted snapshot of idx, optionally padded with
// InvalidMapping entries so the returned slice's length is a multiple of
// alignment (alignment <= 0 means no padding).
func (idx *Index0) Dump(alignment int) []SegmentMapping {
	idx.mu.RLock()
	out := make([]SegmentMapping, len(idx.arr))
	copy(out, idx.arr)
	idx.mu.RUnlock()

	if alignment > 0 {
		if rem := len(out) % alignment; rem != 0 {
			pad := alignment - rem
			for i := 0; i < pad; i++ {
				out = append(out, InvalidMapping())
			}
		}
	}
	return out
}

// Size returns the number of non-padding mappings currently in idx.
func (idx *Index0) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.arr)
}

// Clear removes every mapping from idx.
func (idx *Index0) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.arr = idx.arr[:0]
}

// Lookup writes mappings covering q into out, clipped to q on both ends,
// and returns the count written. It mirrors Index.Lookup's contract so
// ComboIndex and ForeachSegments can treat Index0 and Index uniformly.
func (idx *Index0) Lookup(q Segment, out []SegmentMapping) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	start := idx.search(q.Offset)
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
