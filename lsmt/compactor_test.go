package lsmt

import (
	"bytes"
	"testing"

	"github.com/KarpelesLab/lsmtfs"
)

type compactorFakeHandle struct {
	buf []byte
}

func (h *compactorFakeHandle) Pread(buf []byte, offset int64) (int, error) {
	if int(offset) >= len(h.buf) {
		return 0, nil
	}
	n := copy(buf, h.buf[offset:])
	return n, nil
}

func TestCompactorDropsZeroBlocksAndHoles(t *testing.T) {
	src := lsmtfs.NewIndex0(0)
	payload := bytes.Repeat([]byte{'D'}, 512)
	handle := &compactorFakeHandle{buf: append(append([]byte{}, payload...), make([]byte, 512)...)}

	if err := src.Insert(lsmtfs.SegmentMapping{Segment: lsmtfs.Segment{Offset: 0, Length: 1}, Moffset: 0, Tag: 0}); err != nil {
		t.Fatal(err)
	}
	// A mapping whose backing bytes are all zero, even though it's not
	// flagged Zeroed, should still be dropped from compaction output.
	if err := src.Insert(lsmtfs.SegmentMapping{Segment: lsmtfs.Segment{Offset: 2, Length: 1}, Moffset: 1, Tag: 0}); err != nil {
		t.Fatal(err)
	}

	dst := &memFileInternal{}
	compactor := NewCompactor(src, []BlobHandle{handle}, 4*512)
	idx, err := compactor.Compact(newDataFile(dst, 0))
	if err != nil {
		t.Fatalf("Compact: %s", err)
	}

	out := make([]lsmtfs.SegmentMapping, 8)
	n := idx.Lookup(lsmtfs.Segment{Offset: 0, Length: 4}, out)
	dataCount := 0
	for i := 0; i < n; i++ {
		if !out[i].Zeroed {
			dataCount++
		}
	}
	if dataCount != 1 {
		t.Fatalf("expected exactly 1 data-bearing mapping after dropping the all-zero block, got %d: %+v", dataCount, out[:n])
	}
}

func TestIsZeroBlock(t *testing.T) {
	if !isZeroBlock(make([]byte, 64)) {
		t.Error("all-zero buffer should be detected as zero block")
	}
	nonzero := make([]byte, 64)
	nonzero[63] = 1
	if isZeroBlock(nonzero) {
		t.Error("buffer with a trailing nonzero byte should not be detected as zero block")
	}
}
