package lsmt

import (
	"github.com/google/uuid"

	"github.com/KarpelesLab/lsmtfs"
)

// Flatten produces a single-layer RO equivalent of a stacked RW view
// (one built via RW.Stack): it walks every data mapping of the combined
// index in offset order, copies bytes into dest, and writes a sealed
// header/index/trailer describing the result. Unlike Commit, this is
// the operation that's expected to run on a stacked file.
func Flatten(f *RW, dest backingFile, headerSize uint64) (*ReadOnly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.combo == nil {
		return f.commitLocked(dest, headerSize)
	}

	files := make([]BlobHandle, 0, len(f.lower.Files())+1)
	files = append(files, f.lower.Files()...)
	files = append(files, f.data)

	return writeCompacted(dest, headerSize, f.combo, files, f.virtualSize, f.uuid, f.parentUUID)
}

// commitLocked is Commit's body, factored out so Flatten can fall back
// to it for an unstacked layer without re-taking f.mu.
func (f *RW) commitLocked(dest backingFile, headerSize uint64) (*ReadOnly, error) {
	return writeCompacted(dest, headerSize, f.index0, []BlobHandle{f.data}, f.virtualSize, f.uuid, f.parentUUID)
}

// writeCompacted runs the Compactor over src/files and writes the
// resulting header, data, index, and sealed trailer to dest.
func writeCompacted(dest backingFile, headerSize uint64, src lsmtfs.LayerIndex, files []BlobHandle, vsize uint64, id, parentID uuid.UUID) (*ReadOnly, error) {
	header := &HeaderTrailer{
		Flags:       FlagIsHeader | FlagIsDataFile,
		VirtualSize: vsize,
		UUID:        id,
		ParentUUID:  parentID,
	}
	hbuf, _ := header.MarshalBinary()
	if _, err := dest.WriteAt(hbuf, 0); err != nil {
		return nil, err
	}

	dst := newDataFile(dest, headerSize)
	compactor := NewCompactor(src, files, vsize)
	newIdx, err := compactor.Compact(dst)
	if err != nil {
		return nil, err
	}

	dump := newIdx.Entries()
	indexOffset := dst.Size()
	ibuf := make([]byte, len(dump)*lsmtfs.SegmentMappingSize)
	for i, m := range dump {
		m.PutBinary(ibuf[i*lsmtfs.SegmentMappingSize:])
	}
	if _, err := dst.WriteAt(ibuf, int64(indexOffset)); err != nil {
		return nil, err
	}

	trailer := &HeaderTrailer{
		Flags:       FlagIsSealed | FlagIsDataFile,
		IndexOffset: indexOffset,
		IndexSize:   uint64(len(dump)),
		VirtualSize: vsize,
		UUID:        id,
		ParentUUID:  parentID,
	}
	tbuf, _ := trailer.MarshalBinary()
	if _, err := dst.WriteAt(tbuf, int64(dst.Size())); err != nil {
		return nil, err
	}
	if err := dst.Sync(); err != nil {
		return nil, err
	}

	sealedIdx, err := lsmtfs.NewIndex(dump, 0, indexOffset/lsmtfs.SectorSize, true, vsize)
	if err != nil {
		return nil, err
	}
	return NewReadOnly(sealedIdx, []BlobHandle{dst}, vsize, []uuid.UUID{id}), nil
}
