package lsmtfs_test

import (
	"testing"

	"github.com/KarpelesLab/lsmtfs"
)

// TestComboIndexTagDelta exercises spec scenario C: a single RO layer L
// stacked under a single RW upper U (tag_delta = len(lower.files) = 1).
// Reads through U's own mapping must land on composite file index 1
// (U's own data file), not be shifted into L's.
func TestComboIndexTagDelta(t *testing.T) {
	bottom, err := lsmtfs.NewIndex([]lsmtfs.SegmentMapping{mapping(0, 20, 0)}, 0, 20, false, 20*512)
	if err != nil {
		t.Fatal(err)
	}
	top := lsmtfs.NewIndex0(0)
	if err := top.Insert(mapping(10, 5, 500)); err != nil {
		t.Fatal(err)
	}

	combo := lsmtfs.NewComboIndex(top, bottom, 1)

	out := make([]lsmtfs.SegmentMapping, 8)
	n := combo.Lookup(seg(0, 20), out)
	assertDisjointSorted(t, out[:n])

	for i := 0; i < n; i++ {
		m := out[i]
		if m.Offset >= 10 && m.Offset < 15 {
			if m.Tag != 1 {
				t.Fatalf("top entry got tag %d, want 1 (composite files = [lower, upper]): %+v", m.Tag, m)
			}
		} else {
			if m.Tag != 0 {
				t.Fatalf("bottom entry got tag %d, want 0: %+v", m.Tag, m)
			}
		}
	}
}

func TestComboIndexFillsGapsFromBottom(t *testing.T) {
	bottom, err := lsmtfs.NewIndex([]lsmtfs.SegmentMapping{
		mapping(0, 10, 0),
		mapping(10, 10, 10),
	}, 0, 20, false, 20*512)
	if err != nil {
		t.Fatal(err)
	}
	top := lsmtfs.NewIndex0(0)
	if err := top.Insert(mapping(10, 5, 500)); err != nil {
		t.Fatal(err)
	}

	combo := lsmtfs.NewComboIndex(top, bottom, 1)
	out := make([]lsmtfs.SegmentMapping, 8)
	n := combo.Lookup(seg(0, 20), out)

	var total uint64
	for i := 0; i < n; i++ {
		total += out[i].Length
	}
	if total != 20 {
		t.Fatalf("combo lookup covered %d sectors, want 20: %+v", total, out[:n])
	}
}
