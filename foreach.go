package lsmtfs

// LayerIndex is the common lookup contract shared by Index0, Index, and
// ComboIndex, letting consumers (pread, the Compactor, tests) walk any
// of the three uniformly.
type LayerIndex interface {
	Lookup(q Segment, out []SegmentMapping) int
}

// foreachLookupBatch bounds how many mappings ForeachSegments requests
// per Lookup call; it loops for larger queries.
const foreachLookupBatch = 64

// ForeachSegments walks the mappings index returns for q in offset
// order, calling cbZero for holes within q (and for mappings with
// Zeroed=true) and cbData for every data-bearing mapping. Consumers
// must handle both callbacks: reads fill holes with zeros. Either
// callback returning a non-nil error stops the walk and returns it.
func ForeachSegments(index LayerIndex, q Segment, cbZero func(Segment) error, cbData func(SegmentMapping) error) error {
	cursor := q.Offset
	buf := make([]SegmentMapping, foreachLookupBatch)

	for cursor < q.End() {
		remaining := Segment{Offset: cursor, Length: q.End() - cursor}
		n := index.Lookup(remaining, buf)
		if n == 0 {
			return cbZero(remaining)
		}

		for i := 0; i < n; i++ {
			m := buf[i]
			if cursor < m.Offset {
				if err := cbZero(Segment{Offset: cursor, Length: m.Offset - cursor}); err != nil {
					return err
				}
			}
			if m.Zeroed {
				if err := cbZero(m.Segment); err != nil {
					return err
				}
			} else {
				if err := cbData(m); err != nil {
					return err
				}
			}
			cursor = m.End()
		}

		if n < foreachLookupBatch {
			// Lookup returned fewer than the batch size: it reached the
			// end of what it has for this range. Any remainder of q is
			// a hole.
			if cursor < q.End() {
				if err := cbZero(Segment{Offset: cursor, Length: q.End() - cursor}); err != nil {
					return err
				}
				cursor = q.End()
			}
		}
	}
	return nil
}
