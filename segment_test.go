package lsmtfs_test

import (
	"testing"

	"github.com/KarpelesLab/lsmtfs"
)

func TestSegmentMappingRoundTrip(t *testing.T) {
	cases := []lsmtfs.SegmentMapping{
		{Segment: lsmtfs.Segment{Offset: 0, Length: 1}, Moffset: 0, Tag: 0},
		{Segment: lsmtfs.Segment{Offset: 12345, Length: lsmtfs.MaxSegmentLength}, Moffset: 1 << 40, Tag: 255},
		{Segment: lsmtfs.Segment{Offset: 7, Length: 3}, Zeroed: true, Moffset: 99},
		lsmtfs.InvalidMapping(),
	}

	for i, want := range cases {
		buf, err := want.MarshalBinary()
		if err != nil {
			t.Fatalf("case %d: MarshalBinary: %s", i, err)
		}
		if len(buf) != lsmtfs.SegmentMappingSize {
			t.Fatalf("case %d: encoded size = %d, want %d", i, len(buf), lsmtfs.SegmentMappingSize)
		}

		var got lsmtfs.SegmentMapping
		if err := got.UnmarshalBinary(buf); err != nil {
			t.Fatalf("case %d: UnmarshalBinary: %s", i, err)
		}
		if got != want {
			t.Fatalf("case %d: round-trip mismatch: got %+v, want %+v", i, got, want)
		}
	}
}

func TestSegmentOverlaps(t *testing.T) {
	a := lsmtfs.Segment{Offset: 10, Length: 5} // [10,15)
	cases := []struct {
		b    lsmtfs.Segment
		want bool
	}{
		{lsmtfs.Segment{Offset: 0, Length: 10}, false},  // [0,10)
		{lsmtfs.Segment{Offset: 15, Length: 5}, false},  // [15,20)
		{lsmtfs.Segment{Offset: 14, Length: 5}, true},   // [14,19) overlaps at 14
		{lsmtfs.Segment{Offset: 12, Length: 1}, true},   // fully inside
		{lsmtfs.Segment{Offset: 5, Length: 20}, true},   // fully covers
	}
	for _, c := range cases {
		if got := a.Overlaps(c.b); got != c.want {
			t.Errorf("Overlaps(%+v, %+v) = %v, want %v", a, c.b, got, c.want)
		}
	}
}

func TestInvalidMapping(t *testing.T) {
	m := lsmtfs.InvalidMapping()
	if !m.IsInvalid() {
		t.Fatal("InvalidMapping().IsInvalid() = false")
	}
	real := lsmtfs.SegmentMapping{Segment: lsmtfs.Segment{Offset: 0, Length: 1}}
	if real.IsInvalid() {
		t.Fatal("a zero-offset real mapping reported as invalid")
	}
}
