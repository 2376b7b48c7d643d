package lsmt

import (
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/KarpelesLab/lsmtfs"
)

// RW is a mutable LSMT top layer: an append-only data file plus an
// Index0, optionally journaled to a separate index file (group-commit
// buffered) and optionally stacked on top of a ReadOnly lower view.
//
// Concurrency: pwrite, discard/fallocate, and the group-commit flush are
// serialized by mu. Reads take mu only to snapshot virtualSize — Index0
// guards its own state and the data file is append-only, so a concurrent reader never
// observes a torn write (it either sees the mapping or it doesn't yet).
type RW struct {
	mu sync.Mutex

	data    *dataFile
	journal *journal // nil in sparse mode
	index0  *lsmtfs.Index0

	virtualSize uint64
	uuid        uuid.UUID
	parentUUID  uuid.UUID
	sparse      bool
	// headerSize is only meaningful in sparse mode: sparse writes are
	// addressed as moffset = headerSize + logical_offset, so the header
	// record at the front of the file is never overwritten by a write at
	// logical offset 0.
	headerSize uint64

	lower     *ReadOnly
	combo     *lsmtfs.ComboIndex // non-nil iff stacked
	maxIOSize int
}

// NewRW creates an empty RW layer. data is the append-only backing
// file (already positioned past a written header, i.e. its ReadAt/
// WriteAt offsets start at headerSize); journalFile is nil for a sparse
// layer.
func NewRW(data backingFile, journalFile backingFile, headerSize uint64, virtualSize uint64, id, parentID uuid.UUID, groupCommit int) *RW {
	rw := &RW{
		data:        newDataFile(data, headerSize),
		index0:      lsmtfs.NewIndex0(0),
		virtualSize: virtualSize,
		uuid:        id,
		parentUUID:  parentID,
		headerSize:  headerSize,
		maxIOSize:   DefaultMaxIOSize,
	}
	if journalFile != nil {
		rw.journal = newJournal(journalFile, groupCommit)
	} else {
		rw.sparse = true
	}
	return rw
}

func (f *RW) Kind() FileKind {
	if f.combo != nil {
		return KindRW
	}
	if f.sparse {
		return KindSparseRW
	}
	return KindRW
}

func (f *RW) UUID() uuid.UUID       { return f.uuid }
func (f *RW) ParentUUID() uuid.UUID { return f.parentUUID }
func (f *RW) VirtualSize() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.virtualSize
}

// activeIndex returns whichever LayerIndex read/insert should target:
// the ComboIndex if stacked, else the plain Index0.
func (f *RW) activeIndex() interface {
	lsmtfs.LayerIndex
	Insert(lsmtfs.SegmentMapping) error
} {
	if f.combo != nil {
		return f.combo
	}
	return f.index0
}

// Pwrite appends count bytes at offset, both sector-aligned, chunking
// on maxIOSize like the read path.
func (f *RW) Pwrite(buf []byte, offset int64) (int, error) {
	count := len(buf)
	if offset%lsmtfs.SectorSize != 0 || int64(count)%lsmtfs.SectorSize != 0 {
		return 0, invalidArg("RW.Pwrite", nil)
	}
	if count > f.maxIOSize {
		done := 0
		for done < count {
			chunk := f.maxIOSize
			if count-done < chunk {
				chunk = count - done
			}
			n, err := f.Pwrite(buf[done:done+chunk], offset+int64(done))
			done += n
			if err != nil {
				return done, err
			}
		}
		return done, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var moffset uint64
	if f.sparse {
		// Sparse layers write at headerSize+offset: the filesystem's own
		// hole/data extents double as the index (see deriveSparseIndex),
		// and reopening needs no journal. Offsetting by headerSize keeps
		// the leading header record from being overwritten by a write at
		// logical offset 0.
		moffset = f.headerSize + uint64(offset)
		if _, err := f.data.WriteAt(buf, int64(moffset)); err != nil {
			return 0, err
		}
	} else {
		var err error
		moffset, err = f.data.Append(buf)
		if err != nil {
			return 0, err
		}
	}

	m := lsmtfs.SegmentMapping{
		Segment: lsmtfs.Segment{Offset: uint64(offset) / lsmtfs.SectorSize, Length: uint64(count) / lsmtfs.SectorSize},
		Moffset: moffset / lsmtfs.SectorSize,
		Tag:     0,
	}
	if err := f.activeIndex().Insert(m); err != nil {
		return 0, err
	}
	if uint64(offset)+uint64(count) > f.virtualSize {
		f.virtualSize = uint64(offset) + uint64(count)
	}
	if err := f.appendIndexLocked(m); err != nil {
		return count, err
	}
	return count, nil
}

// Pread reads from this layer's own mappings (and, if stacked, the
// lower view too) exactly as ReadOnly.Pread does.
func (f *RW) Pread(buf []byte, offset int64) (int, error) {
	count := len(buf)
	if offset%lsmtfs.SectorSize != 0 || int64(count)%lsmtfs.SectorSize != 0 {
		return 0, invalidArg("RW.Pread", nil)
	}

	f.mu.Lock()
	vsize := f.virtualSize
	f.mu.Unlock()

	if uint64(offset) >= vsize {
		return 0, nil
	}
	if uint64(offset)+uint64(count) > vsize {
		count = int(vsize - uint64(offset))
		buf = buf[:count]
	}

	q := lsmtfs.Segment{Offset: uint64(offset) / lsmtfs.SectorSize, Length: uint64(count) / lsmtfs.SectorSize}
	base := uint64(offset)
	total := 0

	err := lsmtfs.ForeachSegments(f.activeIndex(), q,
		func(hole lsmtfs.Segment) error {
			start := hole.Offset*lsmtfs.SectorSize - base
			n := hole.Length * lsmtfs.SectorSize
			for i := uint64(0); i < n; i++ {
				buf[start+i] = 0
			}
			total += int(n)
			return nil
		},
		func(m lsmtfs.SegmentMapping) error {
			start := m.Offset*lsmtfs.SectorSize - base
			n := int(m.Length * lsmtfs.SectorSize)
			dst := buf[start : start+uint64(n)]
			h := f.handleForTag(m.Tag)
			if h == nil {
				return corrupt("RW.Pread", nil)
			}
			got, err := h.Pread(dst, int64(m.Moffset*lsmtfs.SectorSize))
			total += got
			if err != nil {
				return err
			}
			if got < n {
				more, err2 := h.Pread(dst[got:], int64(m.Moffset*lsmtfs.SectorSize)+int64(got))
				total += more
				got += more
				if err2 != nil {
					return err2
				}
				for i := got; i < n; i++ {
					dst[i] = 0
				}
			}
			return nil
		},
	)
	return total, err
}

func (f *RW) handleForTag(tag uint8) BlobHandle {
	if f.combo == nil {
		return f.data
	}
	lowerN := len(f.lower.Files())
	if int(tag) < lowerN {
		return f.lower.Files()[tag]
	}
	return f.data
}

// Discard (aka fallocate PUNCH_HOLE|KEEP_SIZE) marks [offset, offset+len)
// as an implicit hole without changing virtual size.
func (f *RW) Discard(offset, length int64) error {
	return f.Fallocate(FallocatePunchHole|FallocateKeepSize, offset, length)
}

// Fallocate implements both hole-punching (PunchHole|KeepSize) and
// zero-fill growth (neither flag set: virtual size extends to
// offset+length without writing data).
func (f *RW) Fallocate(mode FallocateMode, offset, length int64) error {
	if offset%lsmtfs.SectorSize != 0 || length%lsmtfs.SectorSize != 0 || length <= 0 {
		return invalidArg("RW.Fallocate", nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	m := lsmtfs.SegmentMapping{
		Segment: lsmtfs.Segment{Offset: uint64(offset) / lsmtfs.SectorSize, Length: uint64(length) / lsmtfs.SectorSize},
		Moffset: f.data.Size() / lsmtfs.SectorSize,
		Zeroed:  true,
		Tag:     0,
	}
	if err := f.activeIndex().Insert(m); err != nil {
		return err
	}

	if !mode.Has(FallocateKeepSize) {
		if end := uint64(offset) + uint64(length); end > f.virtualSize {
			f.virtualSize = end
		}
	}

	return f.appendIndexLocked(m)
}

// Truncate clips virtual_size down to size, marking every sector that
// starts at or past size as zeroed so that growing the layer again later
// reads zeros there. Growing via Truncate is not supported (spec.md
// §4.7): use Pwrite or Fallocate to grow.
func (f *RW) Truncate(size uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size > f.virtualSize {
		return invalidArg("RW.Truncate", nil)
	}
	start := (size + lsmtfs.SectorSize - 1) / lsmtfs.SectorSize
	end := (f.virtualSize + lsmtfs.SectorSize - 1) / lsmtfs.SectorSize
	for start < end {
		length := min(end-start, uint64(lsmtfs.MaxSegmentLength))
		m := lsmtfs.SegmentMapping{Segment: lsmtfs.Segment{Offset: start, Length: length}, Moffset: f.data.Size() / lsmtfs.SectorSize, Zeroed: true}
		if err := f.activeIndex().Insert(m); err != nil {
			return err
		}
		if err := f.appendIndexLocked(m); err != nil {
			return err
		}
		start += length
	}
	f.virtualSize = size
	return nil
}

// appendIndexLocked journals m; caller must hold mu. No-op in sparse
// mode, where the index is derived from the data file's holes instead.
func (f *RW) appendIndexLocked(m lsmtfs.SegmentMapping) error {
	if f.journal == nil {
		return nil
	}
	return f.journal.Append(m)
}

func (f *RW) Fstat() (Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var blocks int64
	for _, m := range f.index0.Dump(0) {
		if !m.Zeroed {
			blocks += int64(m.Length)
		}
	}
	return Stat{Size: int64(f.virtualSize), BlkSize: lsmtfs.SectorSize, Blocks: blocks}, nil
}

// Fsync flushes the group-commit buffer (if any), then syncs the index
// journal and the data file.
func (f *RW) Fsync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal != nil {
		if err := f.journal.Fsync(); err != nil {
			return err
		}
	}
	return f.data.Sync()
}

func (f *RW) Fdatasync() error { return f.data.Sync() }

// Stack composes upper (f) on top of lower, returning a new RW whose
// reads see "f's own mappings if present, else lower's". See
// DESIGN.md/combo.go for the tag-shift convention: composite files are
// lower.Files() ++ f's own file, tag_delta = len(lower.Files()), and
// Lookup results sourced from the top get +tagDelta (not bottom, as a
// literal reading of spec.md §4.1 would suggest).
func (f *RW) Stack(lower *ReadOnly, checkOrder bool) (*RW, error) {
	if checkOrder {
		if err := checkUUIDChain(lower, f.parentUUID); err != nil {
			return nil, err
		}
	}
	tagDelta := uint8(len(lower.Files()))
	stacked := &RW{
		mu:          sync.Mutex{},
		data:        f.data,
		journal:     f.journal,
		index0:      f.index0,
		virtualSize: f.virtualSize,
		uuid:        f.uuid,
		parentUUID:  f.parentUUID,
		sparse:      f.sparse,
		headerSize:  f.headerSize,
		lower:       lower,
		combo:       lsmtfs.NewComboIndex(f.index0, lower.index.(*lsmtfs.Index), tagDelta),
		maxIOSize:   f.maxIOSize,
	}
	if lower.VirtualSize() > stacked.virtualSize {
		stacked.virtualSize = lower.VirtualSize()
	}
	return stacked, nil
}

// CloseSeal finalizes this RW layer in place: it flushes any staged
// journal entries, then writes the current index (dumped and padded to
// a sector boundary) and a sealed trailer to fdata's current EOF. If
// reopen is true, the in-memory dump becomes a fresh RO view without
// re-reading the file.
func (f *RW) CloseSeal(reopen bool) (*ReadOnly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.journal != nil {
		if err := f.journal.flushStage(); err != nil {
			return nil, err
		}
	}

	dump := f.index0.Dump(lsmtfs.SectorSize / lsmtfs.SegmentMappingSize)
	indexOffset := f.data.Size()

	buf := make([]byte, len(dump)*lsmtfs.SegmentMappingSize)
	for i, m := range dump {
		m.PutBinary(buf[i*lsmtfs.SegmentMappingSize:])
	}
	if _, err := f.data.WriteAt(buf, int64(indexOffset)); err != nil {
		return nil, err
	}

	trailer := &HeaderTrailer{
		Flags:       FlagIsSealed | FlagIsDataFile,
		IndexOffset: indexOffset,
		IndexSize:   uint64(len(dump)),
		VirtualSize: f.virtualSize,
		UUID:        f.uuid,
		ParentUUID:  f.parentUUID,
	}
	tbuf, _ := trailer.MarshalBinary()
	if _, err := f.data.WriteAt(tbuf, int64(f.data.Size())); err != nil {
		return nil, err
	}
	if err := f.data.Sync(); err != nil {
		return nil, err
	}

	if !reopen {
		return nil, nil
	}

	idx, err := lsmtfs.NewIndex(dump, 0, indexOffset/lsmtfs.SectorSize, true, f.virtualSize)
	if err != nil {
		return nil, err
	}
	return NewReadOnly(idx, []BlobHandle{f.data}, f.virtualSize, []uuid.UUID{f.uuid}), nil
}

// Commit produces the same logical content as CloseSeal but writes it
// to a fresh file, copying only data the current index still
// references — the RO analogue of squashing a layer's
// history into one. Stacked RW layers cannot be committed; close_seal
// them individually or flatten() the stack instead.
func (f *RW) Commit(dest backingFile, headerSize uint64) (*ReadOnly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.combo != nil {
		return nil, unsupported("RW.Commit", nil)
	}
	return f.commitLocked(dest, headerSize)
}

// OpenSparseRW reopens a sparse RW layer from disk, rebuilding its
// Index0 from the data file's hole/data extents (a sparse layer keeps
// no journal: the filesystem's own hole-punching IS the index).
func OpenSparseRW(f *os.File, headerSize, virtualSize uint64, id, parentID uuid.UUID) (*RW, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := uint64(stat.Size())
	if size < headerSize {
		size = headerSize
	}
	idx, err := deriveSparseIndex(f, headerSize, size)
	if err != nil {
		return nil, err
	}
	return &RW{
		data:        newDataFile(f, size),
		index0:      idx,
		virtualSize: virtualSize,
		uuid:        id,
		parentUUID:  parentID,
		sparse:      true,
		headerSize:  headerSize,
		maxIOSize:   DefaultMaxIOSize,
	}, nil
}

// ChainError reports a broken parent_uuid chain found while stacking
// with order checking.
type ChainError struct {
	Got, Want uuid.UUID
}

func (e *ChainError) Error() string {
	return "lsmt: uuid chain broken: got parent " + e.Got.String() + ", want " + e.Want.String()
}

func checkUUIDChain(lower *ReadOnly, wantParent uuid.UUID) error {
	if len(lower.uuids) == 0 {
		return nil
	}
	top := lower.uuids[len(lower.uuids)-1]
	if top != wantParent {
		return &ChainError{Got: top, Want: wantParent}
	}
	return nil
}
