package lsmt

import "github.com/KarpelesLab/lsmtfs"

// journalAlignment is the block size group-commit flushes are padded to.
const journalAlignment = 4096

// journal is the append-only index-entry log a non-sparse RW layer
// writes alongside its data file. With groupCommit > 0, entries are
// staged in memory and flushed as one aligned block once the stage
// fills, on Fsync, or when the layer is sealed (RW.CloseSeal); with
// groupCommit == 0 every entry is
// written through immediately.
type journal struct {
	f           backingFile
	eof         uint64
	groupCommit int // 0 = write-through
	staged      []lsmtfs.SegmentMapping
}

func newJournal(f backingFile, groupCommit int) *journal {
	return &journal{f: f, groupCommit: groupCommit}
}

// Append stages (or writes through) one mapping.
func (j *journal) Append(m lsmtfs.SegmentMapping) error {
	if j.groupCommit == 0 {
		return j.writeEntry(m)
	}
	j.staged = append(j.staged, m)
	if len(j.staged) >= j.groupCommit {
		return j.flushStage()
	}
	return nil
}

func (j *journal) writeEntry(m lsmtfs.SegmentMapping) error {
	buf, _ := m.MarshalBinary()
	_, err := j.f.WriteAt(buf, int64(j.eof))
	j.eof += uint64(len(buf))
	return err
}

// flushStage pads the staged entries up to a journalAlignment-sized
// block with invalid_mapping padding and writes it as one aligned
// write, then resets the stage.
func (j *journal) flushStage() error {
	if len(j.staged) == 0 {
		return nil
	}
	entriesPerBlock := journalAlignment / lsmtfs.SegmentMappingSize
	blocks := (len(j.staged) + entriesPerBlock - 1) / entriesPerBlock
	total := blocks * entriesPerBlock

	buf := make([]byte, total*lsmtfs.SegmentMappingSize)
	for i := 0; i < total; i++ {
		m := lsmtfs.InvalidMapping()
		if i < len(j.staged) {
			m = j.staged[i]
		}
		m.PutBinary(buf[i*lsmtfs.SegmentMappingSize:])
	}

	if _, err := j.f.WriteAt(buf, int64(j.eof)); err != nil {
		return err
	}
	j.eof += uint64(len(buf))
	j.staged = j.staged[:0]
	return nil
}

// Fsync flushes the staging buffer, then fsyncs the journal file. The
// caller (RW.Fsync) is responsible for also syncing fdata.
func (j *journal) Fsync() error {
	if err := j.flushStage(); err != nil {
		return err
	}
	return j.f.Sync()
}
