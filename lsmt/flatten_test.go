package lsmt_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"github.com/KarpelesLab/lsmtfs/lsmt"
)

func TestFlattenUnstackedDelegatesToCommit(t *testing.T) {
	data := &memFile{}
	journal := &memFile{}
	rw := lsmt.NewRW(data, journal, 0, 4096, uuid.New(), uuid.Nil, 0)
	if _, err := rw.Pwrite(bytes.Repeat([]byte{'F'}, 512), 0); err != nil {
		t.Fatal(err)
	}

	dest := &memFile{}
	ro, err := lsmt.Flatten(rw, dest, 0)
	if err != nil {
		t.Fatalf("Flatten: %s", err)
	}

	buf := make([]byte, 512)
	if _, err := ro.Pread(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{'F'}, 512)) {
		t.Errorf("flattened readback = %q, want all 'F'", buf)
	}
}

func TestFlattenStackedMergesLayers(t *testing.T) {
	lowerData := &memFile{}
	lowerJournal := &memFile{}
	lowerID := uuid.New()
	lowerRW := lsmt.NewRW(lowerData, lowerJournal, 0, 1024, lowerID, uuid.Nil, 0)
	if _, err := lowerRW.Pwrite(bytes.Repeat([]byte{'L'}, 512), 0); err != nil {
		t.Fatal(err)
	}
	lower, err := lowerRW.CloseSeal(true)
	if err != nil {
		t.Fatal(err)
	}

	upperData := &memFile{}
	upperJournal := &memFile{}
	upper := lsmt.NewRW(upperData, upperJournal, 0, 1024, uuid.New(), lowerID, 0)
	if _, err := upper.Pwrite(bytes.Repeat([]byte{'U'}, 512), 512); err != nil {
		t.Fatal(err)
	}
	stacked, err := upper.Stack(lower, true)
	if err != nil {
		t.Fatal(err)
	}

	dest := &memFile{}
	flat, err := lsmt.Flatten(stacked, dest, 0)
	if err != nil {
		t.Fatalf("Flatten stacked: %s", err)
	}

	buf := make([]byte, 512)
	if _, err := flat.Pread(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{'L'}, 512)) {
		t.Errorf("flattened[0:512] = %q, want lower's 'L'", buf)
	}
	if _, err := flat.Pread(buf, 512); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{'U'}, 512)) {
		t.Errorf("flattened[512:1024] = %q, want upper's 'U'", buf)
	}
}

func TestCommitRejectsStackedLayer(t *testing.T) {
	lowerData := &memFile{}
	lowerJournal := &memFile{}
	lowerID := uuid.New()
	lowerRW := lsmt.NewRW(lowerData, lowerJournal, 0, 1024, lowerID, uuid.Nil, 0)
	lower, err := lowerRW.CloseSeal(true)
	if err != nil {
		t.Fatal(err)
	}

	upperData := &memFile{}
	upperJournal := &memFile{}
	upper := lsmt.NewRW(upperData, upperJournal, 0, 1024, uuid.New(), lowerID, 0)
	stacked, err := upper.Stack(lower, true)
	if err != nil {
		t.Fatal(err)
	}

	dest := &memFile{}
	if _, err := stacked.Commit(dest, 0); err == nil {
		t.Error("Commit on a stacked RW should be unsupported")
	}
}
