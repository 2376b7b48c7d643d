package zfile

// jumpGroupMax caps the in-memory group size regardless of how large the
// worst-case bound would allow, so a table of all-zero-length blocks
// doesn't collapse every block into one absurdly large group.
const jumpGroupMax = 1 << 16

// JumpTable maps block index -> absolute file offset, reconstructed in
// memory from the trailing per-block length array. Memory is bounded by
// storing one full offset per group of blocks (partialOffset) plus a
// u16 delta per block relative to its group's partial offset.
//
// The group size is not fixed: it is chosen per table from the largest
// block length actually present, so that no delta within a group can
// exceed what a u16 holds regardless of block size.
type JumpTable struct {
	partialOffset []uint64
	delta         []uint16
	groupSize     int
	blockCount    int
	dataStart     uint64
}

// groupSizeFor returns the largest power-of-two group size G such that G
// blocks of length maxLen span less than 65536 bytes, the range a u16
// delta can encode. When maxLen is 65536 or more no such G exists and it
// returns 1: every block gets its own group, whose only delta is 0.
// maxLen == 0 (an empty or all-zero-length table) degenerates to the
// largest allowed group, since every delta is then 0.
func groupSizeFor(maxLen uint32) int {
	if maxLen == 0 {
		return jumpGroupMax
	}
	g := 1
	for g*2*int(maxLen) < 0x10000 && g*2 <= jumpGroupMax {
		g *= 2
	}
	return g
}

// BuildJumpTable constructs a JumpTable from the per-block compressed
// lengths (as stored in the on-disk length array) and the absolute file
// offset the first block's data starts at.
func BuildJumpTable(lengths []uint32, dataStart uint64) (*JumpTable, error) {
	n := len(lengths)

	var maxLen uint32
	for _, l := range lengths {
		if l > maxLen {
			maxLen = l
		}
	}
	groupSize := groupSizeFor(maxLen)

	groups := (n + groupSize - 1) / groupSize
	if groups == 0 {
		groups = 1
	}
	jt := &JumpTable{
		partialOffset: make([]uint64, groups+1),
		delta:         make([]uint16, n+1),
		groupSize:     groupSize,
		blockCount:    n,
		dataStart:     dataStart,
	}

	offset := dataStart
	for i := 0; i <= n; i++ {
		if i%groupSize == 0 {
			jt.partialOffset[i/groupSize] = offset
		}
		rel := offset - jt.partialOffset[i/groupSize]
		if rel > 0xffff {
			// groupSizeFor guarantees this cannot happen for any block
			// actually present in lengths; surviving corrupt input (e.g.
			// a forged length array) is still reported rather than
			// silently truncated.
			return nil, corrupt("BuildJumpTable", errJumpTableOverflow)
		}
		jt.delta[i] = uint16(rel)
		if i < n {
			offset += uint64(lengths[i])
		}
	}
	return jt, nil
}

// Offset returns the absolute file offset of block i's data. Passing
// blockCount returns the offset one past the last block (the index
// array's own starting offset), letting callers compute [jt.Offset(i),
// jt.Offset(i+1)) as block i's on-disk byte range.
func (jt *JumpTable) Offset(i int) uint64 {
	group := i / jt.groupSize
	return jt.partialOffset[group] + uint64(jt.delta[i])
}

// BlockCount returns the number of logical blocks the table covers.
func (jt *JumpTable) BlockCount() int { return jt.blockCount }
