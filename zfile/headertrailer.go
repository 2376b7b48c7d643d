// Package zfile implements the ZFile compressed block container: a
// random-access reader over a blob whose content is split into
// fixed-size logical blocks, each compressed independently, with an
// in-memory jump table reconstructed from a trailing length array.
package zfile

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// RecordSize is the fixed size of a ZFile HeaderTrailer record.
const RecordSize = 512

// Magic0 is the little-endian u64 magic stamped at the start of every
// ZFile HeaderTrailer record. Distinct from lsmt.Magic0 so a reader
// never confuses an LSMT data file for a ZFile blob.
const Magic0 uint64 = 0x000100656c69465a // "ZFile\0\1\0" little-endian u64

// Magic1 is the fixed UUID stamped alongside Magic0.
var Magic1 = uuid.MustParse("d24ce9d7-826c-4e09-a168-b8b5a9b5d8a5")

// Flags bits for HeaderTrailer.Flags.
const (
	FlagIsHeader Flags = 1 << iota
	FlagIsSealed
	FlagHeaderOverwrite
)

type Flags uint32

func (f Flags) Has(bit Flags) bool { return f&bit == bit }

// Algo selects the per-block compression codec.
type Algo uint8

const (
	AlgoLZ4 Algo = iota + 1
	AlgoZSTD
)

func (a Algo) String() string {
	switch a {
	case AlgoLZ4:
		return "lz4"
	case AlgoZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// Verify selects whether blocks carry a trailing CRC32C.
type Verify uint8

const (
	VerifyOff Verify = iota
	VerifyCRC32C
)

// CompressOptions configures a ZFile builder and is stored verbatim in
// the HeaderTrailer so a reader can reconstruct compatible settings.
type CompressOptions struct {
	Algo      Algo
	BlockSize uint32 // must be a power of two, typically 4 KiB
	Verify    Verify
	DictSize  uint32 // reserved: dictionary-assisted compression
}

// HeaderTrailer is the 512-byte record written at a ZFile's start (the
// header) and, once sealed, also at its end (the trailer).
type HeaderTrailer struct {
	Flags       Flags
	IndexOffset uint64 // byte offset of the trailing u32 length array
	IndexSize   uint64 // number of blocks (entries in the length array)
	RawDataSize uint64 // uncompressed logical size in bytes
	UUID        uuid.UUID
	Options     CompressOptions
}

func (ht *HeaderTrailer) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], Magic0)
	copy(buf[8:24], Magic1[:])
	binary.LittleEndian.PutUint32(buf[24:28], uint32(ht.Flags))
	binary.LittleEndian.PutUint64(buf[28:36], ht.IndexOffset)
	binary.LittleEndian.PutUint64(buf[36:44], ht.IndexSize)
	binary.LittleEndian.PutUint64(buf[44:52], ht.RawDataSize)
	copy(buf[52:68], ht.UUID[:])
	buf[68] = byte(ht.Options.Algo)
	binary.LittleEndian.PutUint32(buf[69:73], ht.Options.BlockSize)
	buf[73] = byte(ht.Options.Verify)
	binary.LittleEndian.PutUint32(buf[74:78], ht.Options.DictSize)
	return buf, nil
}

func (ht *HeaderTrailer) UnmarshalBinary(buf []byte) error {
	if len(buf) < RecordSize {
		return corrupt("HeaderTrailer.UnmarshalBinary", errShortRecord)
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
	ht.RawDataSize = binary.LittleEndian.Uint64(buf[44:52])
	copy(ht.UUID[:], buf[52:68])
	ht.Options.Algo = Algo(buf[68])
	ht.Options.BlockSize = binary.LittleEndian.Uint32(buf[69:73])
	ht.Options.Verify = Verify(buf[73])
	ht.Options.DictSize = binary.LittleEndian.Uint32(buf[74:78])
	return nil
}
