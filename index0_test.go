package lsmtfs_test

import (
	"testing"

	"github.com/KarpelesLab/lsmtfs"
)

func seg(offset, length uint64) lsmtfs.Segment { return lsmtfs.Segment{Offset: offset, Length: length} }

func mapping(offset, length, moffset uint64) lsmtfs.SegmentMapping {
	return lsmtfs.SegmentMapping{Segment: seg(offset, length), Moffset: moffset}
}

func dumpNonInvalid(idx *lsmtfs.Index0) []lsmtfs.SegmentMapping {
	var out []lsmtfs.SegmentMapping
	for _, m := range idx.Dump(0) {
		if !m.IsInvalid() {
			out = append(out, m)
		}
	}
	return out
}

func assertDisjointSorted(t *testing.T, arr []lsmtfs.SegmentMapping) {
	t.Helper()
	for i := 1; i < len(arr); i++ {
		if arr[i].Offset < arr[i-1].End() {
			t.Fatalf("entries %d,%d overlap or out of order: %+v, %+v", i-1, i, arr[i-1], arr[i])
		}
	}
}

func TestIndex0InsertSplitsOnOverlap(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)

	if err := idx.Insert(mapping(0, 100, 0)); err != nil {
		t.Fatalf("insert base: %s", err)
	}
	// Straddles the middle: [40,60) should clip the base into [0,40) and [60,100).
	if err := idx.Insert(mapping(40, 20, 1000)); err != nil {
		t.Fatalf("insert middle: %s", err)
	}

	got := dumpNonInvalid(idx)
	assertDisjointSorted(t, got)

	want := []lsmtfs.SegmentMapping{
		mapping(0, 40, 0),
		mapping(40, 20, 1000),
		mapping(60, 40, 60),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestIndex0InsertFullyCoversExisting(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)
	if err := idx.Insert(mapping(10, 5, 0)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(mapping(20, 5, 0)); err != nil {
		t.Fatal(err)
	}
	// Covers both prior entries entirely.
	if err := idx.Insert(mapping(0, 100, 500)); err != nil {
		t.Fatal(err)
	}

	got := dumpNonInvalid(idx)
	if len(got) != 1 || got[0] != mapping(0, 100, 500) {
		t.Fatalf("expected single covering mapping, got %+v", got)
	}
}

func TestIndex0RejectsZeroLength(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)
	if err := idx.Insert(mapping(0, 0, 0)); err == nil {
		t.Fatal("expected error inserting zero-length mapping")
	}
}

func TestIndex0DumpPadding(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)
	if err := idx.Insert(mapping(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	dump := idx.Dump(32)
	if len(dump)%32 != 0 {
		t.Fatalf("dump length %d not a multiple of 32", len(dump))
	}
	for i, m := range dump {
		if i == 0 {
			continue
		}
		if !m.IsInvalid() {
			t.Fatalf("expected padding at index %d, got %+v", i, m)
		}
	}
}

func TestIndex0Lookup(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)
	if err := idx.Insert(mapping(0, 10, 0)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(mapping(20, 10, 100)); err != nil {
		t.Fatal(err)
	}

	out := make([]lsmtfs.SegmentMapping, 8)
	n := idx.Lookup(seg(5, 20), out)
	if n != 2 {
		t.Fatalf("Lookup returned %d entries, want 2: %+v", n, out[:n])
	}
	if out[0].Offset != 5 || out[0].Length != 5 {
		t.Errorf("first result clipped wrong: %+v", out[0])
	}
	if out[1].Offset != 20 || out[1].Length != 5 {
		t.Errorf("second result clipped wrong: %+v", out[1])
	}
}

func TestIndex0ClearAndSize(t *testing.T) {
	idx := lsmtfs.NewIndex0(0)
	for i := 0; i < 5; i++ {
		if err := idx.Insert(mapping(uint64(i*10), 5, 0)); err != nil {
			t.Fatal(err)
		}
	}
	if idx.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", idx.Size())
	}
	idx.Clear()
	if idx.Size() != 0 {
		t.Fatalf("Size() after Clear() = %d, want 0", idx.Size())
	}
}
