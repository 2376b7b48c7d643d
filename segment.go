package lsmtfs

import "encoding/binary"

// SectorSize is the logical addressing unit for every LSMT offset and
// length: 512 bytes, matching the on-disk SegmentMapping bit widths.
const SectorSize = 512

const (
	offsetBits = 50
	lengthBits = 14
	moffsetBits = 55

	// MaxSegmentLength is the largest sector count a single Segment can
	// carry (14 bits): 16383 sectors, just under 8 MiB. Longer ranges
	// must be split by the caller before Index0.Insert.
	MaxSegmentLength = 1<<lengthBits - 1

	// InvalidOffset marks padding/tombstone entries in an on-disk index
	// dump; it is never a valid logical offset.
	InvalidOffset = 1<<offsetBits - 1
)

// Segment is a half-open sector range [Offset, Offset+Length).
type Segment struct {
	Offset uint64 // fits in 50 bits
	Length uint64 // fits in 14 bits, max MaxSegmentLength
}

// End returns Offset+Length.
func (s Segment) End() uint64 { return s.Offset + s.Length }

// Overlaps reports whether s and o share any sector.
func (s Segment) Overlaps(o Segment) bool {
	return s.Offset < o.End() && o.Offset < s.End()
}

// SegmentMapping is a logical sector range mapped to a physical sector
// offset inside a tagged data file, or marked as an implicit hole.
type SegmentMapping struct {
	Segment
	Moffset uint64 // sector offset into the owning data file; fits in 55 bits
	Zeroed  bool
	Tag     uint8
}

// Mend returns the end of the mapped physical range: Moffset+Length for
// a data mapping, or just Moffset for a zeroed one (there is nothing
// mapped to advance past).
func (m SegmentMapping) Mend() uint64 {
	if m.Zeroed {
		return m.Moffset
	}
	return m.Moffset + m.Length
}

// IsInvalid reports whether m is a padding/tombstone entry.
func (m SegmentMapping) IsInvalid() bool {
	return m.Offset == InvalidOffset
}

// InvalidMapping returns a padding entry suitable for index dump padding.
func InvalidMapping() SegmentMapping {
	return SegmentMapping{Segment: Segment{Offset: InvalidOffset, Length: 0}}
}

// clippedTo returns m clipped to q on both ends. q must overlap m.
// moffset advances by the same delta offset advances, unless m is
// zeroed (moffset is meaningless for a hole).
func (m SegmentMapping) clippedTo(q Segment) SegmentMapping {
	out := m
	if q.Offset > m.Offset {
		delta := q.Offset - m.Offset
		out.Offset += delta
		out.Length -= delta
		if !out.Zeroed {
			out.Moffset += delta
		}
	}
	if q.End() < out.End() {
		out.Length = q.End() - out.Offset
	}
	return out
}

// SegmentMappingSize is the on-disk encoded size of a SegmentMapping: 16
// bytes, chosen so that 512/SegmentMappingSize is an integer (32 entries
// per sector) as required by Index0.Dump's alignment padding. See
// DESIGN.md for why the single "24B" mention elsewhere is not followed.
const SegmentMappingSize = 16

// MarshalBinary encodes m as the two little-endian u64 words described
// in the data model: word0 packs {offset:50, length:14}, word1 packs
// {moffset:55, zeroed:1, tag:8}.
func (m SegmentMapping) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SegmentMappingSize)
	m.PutBinary(buf)
	return buf, nil
}

// PutBinary encodes m into buf, which must be at least
// SegmentMappingSize bytes.
func (m SegmentMapping) PutBinary(buf []byte) {
	word0 := (m.Offset & (1<<offsetBits - 1)) | (m.Length&(1<<lengthBits-1))<<offsetBits
	var zbit uint64
	if m.Zeroed {
		zbit = 1
	}
	word1 := (m.Moffset & (1<<moffsetBits - 1)) | zbit<<moffsetBits | uint64(m.Tag)<<(moffsetBits+1)
	binary.LittleEndian.PutUint64(buf[0:8], word0)
	binary.LittleEndian.PutUint64(buf[8:16], word1)
}

// UnmarshalBinary decodes m from buf (at least SegmentMappingSize bytes).
func (m *SegmentMapping) UnmarshalBinary(buf []byte) error {
	if len(buf) < SegmentMappingSize {
		return NewError(KindCorrupt, "SegmentMapping.UnmarshalBinary", nil)
	}
	word0 := binary.LittleEndian.Uint64(buf[0:8])
	word1 := binary.LittleEndian.Uint64(buf[8:16])
	m.Offset = word0 & (1<<offsetBits - 1)
	m.Length = word0 >> offsetBits
	m.Moffset = word1 & (1<<moffsetBits - 1)
	m.Zeroed = (word1>>moffsetBits)&1 == 1
	m.Tag = uint8(word1 >> (moffsetBits + 1))
	return nil
}
