package zfile

import (
	"encoding/binary"
	"hash/crc32"

	"go.uber.org/zap"
)

// maxReadSize bounds how many contiguous on-disk bytes Reader.Pread
// sweeps into one backing read before decompressing; not exposed to
// callers.
const maxReadSize = 64 << 10

// readerBackend is the minimal file surface Reader needs. A backend that
// also implements Invalidator is told to drop everything it caches
// (Invalidate(0, -1), the fallocate(0,0,-1) convention) after a checksum
// failure.
type readerBackend interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Invalidator is implemented by cache-backed readers that can drop a
// byte range on a checksum failure, forcing a refetch on retry.
type Invalidator interface {
	Invalidate(offset, length int64) error
}

// Reader is a random-access reader over a sealed ZFile blob.
type Reader struct {
	f      readerBackend
	ht     HeaderTrailer
	jt     *JumpTable
	codec  codec
	logger *zap.Logger
}

// SetLogger attaches a logger for checksum-retry warnings; the default
// is a no-op logger.
func (r *Reader) SetLogger(l *zap.Logger) { r.logger = l }

// Open reads the header (or trailer, if the header wasn't overwritten)
// and the trailing length array, and builds the JumpTable.
func Open(f readerBackend, fileSize int64) (*Reader, error) {
	hbuf := make([]byte, RecordSize)
	if _, err := f.ReadAt(hbuf, 0); err != nil {
		return nil, err
	}
	var ht HeaderTrailer
	if err := ht.UnmarshalBinary(hbuf); err != nil {
		return nil, err
	}
	if !ht.Flags.Has(FlagHeaderOverwrite) {
		tbuf := make([]byte, RecordSize)
		if _, err := f.ReadAt(tbuf, fileSize-RecordSize); err != nil {
			return nil, err
		}
		if err := ht.UnmarshalBinary(tbuf); err != nil {
			return nil, err
		}
	}
	if !ht.Flags.Has(FlagIsSealed) {
		return nil, corrupt("Open", nil)
	}
	if ht.IndexOffset+ht.IndexSize*4+RecordSize > uint64(fileSize) {
		return nil, corrupt("Open", nil)
	}

	ibuf := make([]byte, ht.IndexSize*4)
	if _, err := f.ReadAt(ibuf, int64(ht.IndexOffset)); err != nil {
		return nil, err
	}
	lengths := make([]uint32, ht.IndexSize)
	for i := range lengths {
		lengths[i] = binary.LittleEndian.Uint32(ibuf[i*4:])
	}

	jt, err := BuildJumpTable(lengths, RecordSize)
	if err != nil {
		return nil, err
	}

	c, err := newCodec(ht.Options.Algo)
	if err != nil {
		return nil, err
	}

	return &Reader{f: f, ht: ht, jt: jt, codec: c, logger: zap.NewNop()}, nil
}

// RawDataSize returns the uncompressed logical size of the blob.
func (r *Reader) RawDataSize() uint64 { return r.ht.RawDataSize }

// Pread reads count bytes of decompressed content at offset, clipped
// to RawDataSize. offset/count need not be block-aligned.
func (r *Reader) Pread(buf []byte, offset int64) (int, error) {
	count := len(buf)
	if uint64(offset) >= r.ht.RawDataSize {
		return 0, nil
	}
	if uint64(offset)+uint64(count) > r.ht.RawDataSize {
		count = int(r.ht.RawDataSize - uint64(offset))
		buf = buf[:count]
	}

	bs := int64(r.ht.Options.BlockSize)
	first := int(offset / bs)
	last := int((offset + int64(count) - 1) / bs)

	total := 0
	i := first
	for i <= last {
		j := i
		sweepBytes := int64(0)
		for j <= last {
			blockBytes := int64(r.jt.Offset(j+1) - r.jt.Offset(j))
			if sweepBytes+blockBytes > maxReadSize && j > i {
				break
			}
			sweepBytes += blockBytes
			j++
		}
		// sweep covers blocks [i, j)
		n, err := r.readSweep(buf, offset, i, j)
		total += n
		if err != nil {
			return total, err
		}
		i = j
	}
	return total, nil
}

// readSweep reads and decompresses blocks [lo, hi) in one backing
// read, copying the requested sub-range into buf (whose logical
// window starts at winOffset).
func (r *Reader) readSweep(buf []byte, winOffset int64, lo, hi int) (int, error) {
	bs := int64(r.ht.Options.BlockSize)
	start := r.jt.Offset(lo)
	end := r.jt.Offset(hi)

	raw := make([]byte, end-start)
	if _, err := r.f.ReadAt(raw, int64(start)); err != nil {
		return 0, err
	}

	total := 0
	blockBuf := make([]byte, 0, bs)
	for i := lo; i < hi; i++ {
		blockStart := r.jt.Offset(i) - start
		blockEnd := r.jt.Offset(i+1) - start
		block := raw[blockStart:blockEnd]

		plain, err := r.decompressOne(block, int64(r.jt.Offset(i)), blockBuf)
		if err != nil {
			return total, err
		}

		logicalStart := int64(i) * bs
		logicalEnd := logicalStart + int64(len(plain))

		copyFrom := winOffset
		if logicalStart > copyFrom {
			copyFrom = logicalStart
		}
		copyTo := winOffset + int64(len(buf))
		if logicalEnd < copyTo {
			copyTo = logicalEnd
		}
		if copyTo <= copyFrom {
			continue
		}
		src := plain[copyFrom-logicalStart : copyTo-logicalStart]
		dst := buf[copyFrom-winOffset : copyTo-winOffset]
		n := copy(dst, src)
		total += n
	}
	return total, nil
}

// decompressOne verifies (if enabled) and decompresses one block,
// retrying once on a checksum mismatch after invalidating the backing
// cache.
func (r *Reader) decompressOne(block []byte, absOffset int64, scratch []byte) ([]byte, error) {
	plain, err := r.verifyAndDecompress(block, scratch)
	if err == nil {
		return plain, nil
	}
	if _, ok := err.(checksumErr); !ok {
		return nil, err
	}
	r.logger.Warn("block checksum mismatch, retrying once", zap.Int64("offset", absOffset))

	if inv, ok := r.f.(Invalidator); ok {
		_ = inv.Invalidate(0, -1)
	}
	refetched := make([]byte, len(block))
	if _, rerr := r.f.ReadAt(refetched, absOffset); rerr != nil {
		return nil, rerr
	}
	plain, err = r.verifyAndDecompress(refetched, scratch)
	if err != nil {
		if _, ok := err.(checksumErr); ok {
			return nil, checksumMismatch("Reader.Pread", nil)
		}
		return nil, err
	}
	return plain, nil
}

type checksumErr struct{}

func (checksumErr) Error() string { return "checksum mismatch" }

// verifyAndDecompress checks (if enabled) the trailing CRC32C and
// decompresses payload into scratch, reusing its backing array when it
// has enough capacity. The codec is built once per Reader in Open and
// reused across every block, rather than per call.
func (r *Reader) verifyAndDecompress(block []byte, scratch []byte) ([]byte, error) {
	payload := block
	if r.ht.Options.Verify == VerifyCRC32C {
		if len(block) < 4 {
			return nil, corrupt("Reader.Pread", nil)
		}
		payload = block[:len(block)-4]
		want := binary.LittleEndian.Uint32(block[len(block)-4:])
		got := crc32.Checksum(payload, crc32cTable)
		if got != want {
			return nil, checksumErr{}
		}
	}
	return r.codec.decompressBlock(scratch[:0], payload)
}
