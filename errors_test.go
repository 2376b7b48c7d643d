package lsmtfs_test

import (
	"errors"
	"testing"

	"github.com/KarpelesLab/lsmtfs"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	cause := errors.New("boom")
	err := lsmtfs.NewError(lsmtfs.KindCorrupt, "Test.Op", cause)

	if !errors.Is(err, lsmtfs.ErrCorrupt) {
		t.Error("errors.Is should match same-Kind sentinel")
	}
	if errors.Is(err, lsmtfs.ErrChecksumMismatch) {
		t.Error("errors.Is should not match a different Kind sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should still find the wrapped cause")
	}
}

func TestShortIOErrorTransferred(t *testing.T) {
	err := lsmtfs.NewShortIOError("Test.Read", 42, nil)
	if err.Kind != lsmtfs.KindShortIO {
		t.Fatalf("Kind = %v, want KindShortIO", err.Kind)
	}
	if err.Transferred != 42 {
		t.Fatalf("Transferred = %d, want 42", err.Transferred)
	}
}
