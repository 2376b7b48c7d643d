package zfile

import (
	"errors"

	"github.com/KarpelesLab/lsmtfs"
)

var (
	errBadMagic          = errors.New("bad magic")
	errShortRecord       = errors.New("short record")
	errJumpTableOverflow = errors.New("jump table delta overflow")
)

func corrupt(op string, cause error) error {
	return lsmtfs.NewError(lsmtfs.KindCorrupt, op, cause)
}

func invalidArg(op string, cause error) error {
	return lsmtfs.NewError(lsmtfs.KindInvalidArgument, op, cause)
}

func checksumMismatch(op string, cause error) error {
	return lsmtfs.NewError(lsmtfs.KindChecksumMismatch, op, cause)
}
