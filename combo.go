package lsmtfs

// ComboIndex overlays a mutable Index0 ("top") on top of an immutable
// Index ("bottom"). Lookup queries top first; any gaps within the query
// are filled from bottom. Insert delegates to top. The effective
// mapping for any sector is "top if present, else bottom", matching the
// design note's guidance to model stacking as an explicit tagged
// composition rather than the original's pointer-graph overlay.
//
// Composite file ordering is bottom.files ++ top.files (bottom's own
// tags already index correctly into the first len(bottom.files) slots,
// unchanged); TagDelta is added to every entry Lookup returns from top,
// shifting top's locally-zero-based tags past bottom's files. See
// DESIGN.md for why this is the reverse of a literal reading of the
// spec's "tag_delta is added to bottom" phrasing: with the stated
// composite order (lower.files ++ upper.files) and tag_delta =
// len(lower.files), only shifting top's tags produces valid composite
// indices.
type ComboIndex struct {
	Top      *Index0
	Bottom   *Index
	TagDelta uint8
}

// NewComboIndex returns a ComboIndex over top and bottom.
func NewComboIndex(top *Index0, bottom *Index, tagDelta uint8) *ComboIndex {
	return &ComboIndex{Top: top, Bottom: bottom, TagDelta: tagDelta}
}

// Insert delegates to the top (mutable) layer.
func (c *ComboIndex) Insert(m SegmentMapping) error {
	return c.Top.Insert(m)
}

// Lookup queries Top for q, then fills any gaps with Bottom entries,
// writing up to len(out) mappings covering q in offset order.
func (c *ComboIndex) Lookup(q Segment, out []SegmentMapping) int {
	topBuf := make([]SegmentMapping, len(out))
	topN := c.Top.Lookup(q, topBuf)
	topBuf = topBuf[:topN]

	n := 0
	cursor := q.Offset
	for _, tm := range topBuf {
		if cursor < tm.Offset {
			n += c.fillBottom(Segment{Offset: cursor, Length: tm.Offset - cursor}, out[n:])
		}
		if n >= len(out) {
			return n
		}
		tm.Tag += c.TagDelta
		out[n] = tm
		n++
		cursor = tm.End()
		if n >= len(out) {
			return n
		}
	}
	if cursor < q.End() {
		n += c.fillBottom(Segment{Offset: cursor, Length: q.End() - cursor}, out[n:])
	}
	return n
}

func (c *ComboIndex) fillBottom(gap Segment, out []SegmentMapping) int {
	if gap.Length == 0 || c.Bottom == nil {
		return 0
	}
	return c.Bottom.Lookup(gap, out)
}
