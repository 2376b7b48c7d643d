package lsmt

import "io"

// backingFile is the minimal file surface a dataFile needs: positional
// read/write plus sync and size discovery. *os.File satisfies this.
type backingFile interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
}

// dataFile is the append-only (or sparse) data file a RW layer writes
// new bytes to. Appends are serialized by the caller (RW.mu); dataFile
// itself only tracks the current end-of-file byte offset.
type dataFile struct {
	f   backingFile
	eof uint64
}

func newDataFile(f backingFile, initialSize uint64) *dataFile {
	return &dataFile{f: f, eof: initialSize}
}

// Append writes buf at the current EOF and returns the byte offset it
// was written at.
func (d *dataFile) Append(buf []byte) (uint64, error) {
	off := d.eof
	n, err := d.f.WriteAt(buf, int64(off))
	d.eof += uint64(n)
	if err != nil {
		return off, err
	}
	return off, nil
}

// WriteAt writes buf at an explicit offset, extending eof if it grows
// past the current end. Used for the sealed index/trailer appends,
// where the caller already knows the exact offset to write at.
func (d *dataFile) WriteAt(buf []byte, offset int64) (int, error) {
	n, err := d.f.WriteAt(buf, offset)
	if end := uint64(offset) + uint64(n); end > d.eof {
		d.eof = end
	}
	return n, err
}

func (d *dataFile) Pread(buf []byte, offset int64) (int, error) {
	return d.f.ReadAt(buf, offset)
}

func (d *dataFile) Size() uint64 { return d.eof }

func (d *dataFile) Sync() error { return d.f.Sync() }
