package lsmt

import (
	"errors"

	"github.com/KarpelesLab/lsmtfs"
)

var errBadMagic = errors.New("bad magic")

func corrupt(op string, cause error) error {
	return lsmtfs.NewError(lsmtfs.KindCorrupt, op, cause)
}

func invalidArg(op string, cause error) error {
	return lsmtfs.NewError(lsmtfs.KindInvalidArgument, op, cause)
}

func unsupported(op string, cause error) error {
	return lsmtfs.NewError(lsmtfs.KindUnsupported, op, cause)
}
