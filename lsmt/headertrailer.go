// Package lsmt implements the LSMT (Log-Structured Merge Table) layer
// format: a stacked, block-addressed virtual disk made of immutable RO
// layers with an optional mutable RW top, backed by a LayerIndex per
// layer (see the parent lsmtfs package for Segment/Index0/Index/
// ComboIndex).
package lsmt

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// RecordSize is the fixed size of every HeaderTrailer record, at the
// start and (for sealed files) the end of an LSMT file.
const RecordSize = 512

// Magic0 is the little-endian u64 magic stamped at the start of every
// HeaderTrailer record.
const Magic0 uint64 = 0x00020100544d534c // "LSMT\0\1\2\0" as little-endian u64

// Magic1 is the fixed UUID stamped alongside Magic0.
var Magic1 = uuid.MustParse("d2637e65-4494-4c08-d2a2-c8ec4fcfae8a")

// Flag bits for HeaderTrailer.Flags.
const (
	FlagIsHeader Flags = 1 << iota
	FlagIsDataFile
	FlagIsSealed
	FlagIsSparseRW
)

// Flags is the HeaderTrailer flag bitset.
type Flags uint32

func (f Flags) Has(bit Flags) bool { return f&bit == bit }

// HeaderTrailer is the 512-byte record written at an LSMT file's start
// (the header) and, for sealed files, also at its end (the trailer).
type HeaderTrailer struct {
	Flags       Flags
	IndexOffset uint64 // byte offset of the index within the file
	IndexSize   uint64 // entry count, not bytes
	VirtualSize uint64 // logical size in bytes
	UUID        uuid.UUID
	ParentUUID  uuid.UUID
	UserTag     [256]byte
}

// MarshalBinary encodes ht as a RecordSize-byte record.
func (ht *HeaderTrailer) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], Magic0)
	copy(buf[8:24], Magic1[:])
	binary.LittleEndian.PutUint32(buf[24:28], uint32(ht.Flags))
	binary.LittleEndian.PutUint64(buf[28:36], ht.IndexOffset)
	binary.LittleEndian.PutUint64(buf[36:44], ht.IndexSize)
	binary.LittleEndian.PutUint64(buf[44:52], ht.VirtualSize)
	copy(buf[52:68], ht.UUID[:])
	copy(buf[68:84], ht.ParentUUID[:])
	copy(buf[84:84+len(ht.UserTag)], ht.UserTag[:])
	return buf, nil
}

// UnmarshalBinary decodes ht from buf, failing KindCorrupt if the magic
// values don't match.
func (ht *HeaderTrailer) UnmarshalBinary(buf []byte) error {
	if len(buf) < RecordSize {
		return corrupt("HeaderTrailer.UnmarshalBinary", nil)
	}
	if binary.LittleEndian.Uint64(buf[0:8]) != Magic0 {
		return corrupt("HeaderTrailer.UnmarshalBinary", errBadMagic)
	}
	var gotMagic1 uuid.UUID
	copy(gotMagic1[:], buf[8:24])
	if gotMagic1 != Magic1 {
		return corrupt("HeaderTrailer.UnmarshalBinary", errBadMagic)
	}
	ht.Flags = Flags(binary.LittleEndian.Uint32(buf[24:28]))
	ht.IndexOffset = binary.LittleEndian.Uint64(buf[28:36])
	ht.IndexSize = binary.LittleEndian.Uint64(buf[36:44])
	ht.VirtualSize = binary.LittleEndian.Uint64(buf[44:52])
	copy(ht.UUID[:], buf[52:68])
	copy(ht.ParentUUID[:], buf[68:84])
	copy(ht.UserTag[:], buf[84:84+len(ht.UserTag)])
	return nil
}
