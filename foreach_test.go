package lsmtfs_test

import (
	"testing"

	"github.com/KarpelesLab/lsmtfs"
)

func TestForeachSegmentsHolesAndData(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)
	if err := idx.Insert(mapping(10, 10, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(lsmtfs.SegmentMapping{Segment: lsmtfs.Segment{Offset: 30, Length: 10}, Zeroed: true}); err != nil {
		t.Fatal(err)
	}

	var holes []lsmtfs.Segment
	var data []lsmtfs.SegmentMapping
	err := lsmtfs.ForeachSegments(idx, seg(0, 40),
		func(s lsmtfs.Segment) error { holes = append(holes, s); return nil },
		func(m lsmtfs.SegmentMapping) error { data = append(data, m); return nil },
	)
	if err != nil {
		t.Fatalf("ForeachSegments: %s", err)
	}

	if len(data) != 1 || data[0].Offset != 10 {
		t.Fatalf("unexpected data mappings: %+v", data)
	}
	// Holes: [0,10) and [20,30) implicit, and [30,40) explicit zeroed.
	wantHoleSectors := uint64(0)
	for _, h := range holes {
		wantHoleSectors += h.Length
	}
	if wantHoleSectors != 30 {
		t.Fatalf("total hole sectors = %d, want 30: %+v", wantHoleSectors, holes)
	}
}

func TestForeachSegmentsPropagatesCallbackError(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)
	if err := idx.Insert(mapping(0, 10, 0)); err != nil {
		t.Fatal(err)
	}
	sentinel := lsmtfs.NewError(lsmtfs.KindInvalidArgument, "test", nil)
	err := lsmtfs.ForeachSegments(idx, seg(0, 10),
		func(lsmtfs.Segment) error { return nil },
		func(lsmtfs.SegmentMapping) error { return sentinel },
	)
	if err != sentinel {
		t.Fatalf("expected sentinel error propagated, got %v", err)
	}
}
