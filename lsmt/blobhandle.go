package lsmt

// BlobHandle is the minimal read surface LsmtReadOnlyFile needs from
// each layer's backing data file: a tagged entry in files[] is anything
// that can serve pread against its own byte space. Concrete
// implementations include a raw *os.File, a *zfile.Reader (ZFile
// decompression), or a cache-wrapped BlobSource — the read path doesn't
// care which, it only dispatches by tag.
type BlobHandle interface {
	Pread(buf []byte, offset int64) (int, error)
}

// osFileHandle adapts an io.ReaderAt (typically *os.File) to BlobHandle.
type osFileHandle struct {
	r interface {
		ReadAt(p []byte, off int64) (int, error)
	}
}

// NewBlobHandle wraps an io.ReaderAt-shaped backing file as a
// BlobHandle.
func NewBlobHandle(r interface {
	ReadAt(p []byte, off int64) (int, error)
}) BlobHandle {
	return &osFileHandle{r: r}
}

func (h *osFileHandle) Pread(buf []byte, offset int64) (int, error) {
	return h.r.ReadAt(buf, offset)
}
