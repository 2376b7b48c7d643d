package zfile

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// writerBackend is the minimal file surface Builder needs.
type writerBackend interface {
	WriteAt(p []byte, off int64) (int, error)
}

// batchSize bounds how many blocks Builder compresses per errgroup
// round; batching amortizes goroutine spawn cost without unbounding
// memory for very large inputs.
const batchSize = 32

// Builder produces a ZFile in a single forward pass over src, writing
// directly to dst. Writer options configure block size, codec, and
// integrity checking.
type Builder struct {
	dst     writerBackend
	id      uuid.UUID
	opts    CompressOptions
	workers int

	offset      uint64 // next byte offset to write data at
	lengths     []uint32
	rawDataSize uint64 // true uncompressed byte count written so far
}

// Option configures a Builder.
type Option func(*Builder)

// WithBlockSize sets the logical block size (must be a power of two).
func WithBlockSize(n uint32) Option {
	return func(b *Builder) { b.opts.BlockSize = n }
}

// WithAlgo selects the compression codec.
func WithAlgo(a Algo) Option {
	return func(b *Builder) { b.opts.Algo = a }
}

// WithVerify enables or disables the trailing per-block CRC32C.
func WithVerify(v Verify) Option {
	return func(b *Builder) { b.opts.Verify = v }
}

// WithWorkers sets how many blocks Builder compresses concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// NewBuilder creates a Builder writing to dst, stamped with id.
func NewBuilder(dst writerBackend, id uuid.UUID, opts ...Option) (*Builder, error) {
	b := &Builder{
		dst:     dst,
		id:      id,
		opts:    CompressOptions{Algo: AlgoZSTD, BlockSize: 4096, Verify: VerifyCRC32C},
		workers: 4,
	}
	for _, o := range opts {
		o(b)
	}
	if b.opts.BlockSize == 0 || b.opts.BlockSize&(b.opts.BlockSize-1) != 0 {
		return nil, invalidArg("NewBuilder", nil)
	}

	placeholder := make([]byte, RecordSize)
	if _, err := dst.WriteAt(placeholder, 0); err != nil {
		return nil, err
	}
	b.offset = RecordSize
	return b, nil
}

// WriteAll compresses and writes src in full-block-sized chunks (plus a
// residual tail block), batching compression across Builder.workers
// goroutines per round.
func (b *Builder) WriteAll(src []byte) error {
	bs := int(b.opts.BlockSize)
	var chunks [][]byte
	for off := 0; off < len(src); off += bs {
		end := off + bs
		if end > len(src) {
			end = len(src)
		}
		chunks = append(chunks, src[off:end])
	}
	b.rawDataSize += uint64(len(src))

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := b.writeBatch(chunks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writeBatch(batch [][]byte) error {
	compressed := make([][]byte, len(batch))

	var eg errgroup.Group
	eg.SetLimit(b.workers)
	for i, chunk := range batch {
		i, chunk := i, chunk
		eg.Go(func() error {
			c, err := newCodec(b.opts.Algo)
			if err != nil {
				return err
			}
			out, err := c.compressBlock(nil, chunk)
			if err != nil {
				return err
			}
			if b.opts.Verify == VerifyCRC32C {
				sum := crc32.Checksum(out, crc32cTable)
				var tail [4]byte
				binary.LittleEndian.PutUint32(tail[:], sum)
				out = append(out, tail[:]...)
			}
			compressed[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, c := range compressed {
		if _, err := b.dst.WriteAt(c, int64(b.offset)); err != nil {
			return err
		}
		b.offset += uint64(len(c))
		b.lengths = append(b.lengths, uint32(len(c)))
	}
	return nil
}

// Close writes the trailing length array, a sealed trailer, and
// overwrites the header with the finalized fields, returning the
// HeaderTrailer now describing the file.
func (b *Builder) Close() (*HeaderTrailer, error) {
	indexOffset := b.offset
	ibuf := make([]byte, len(b.lengths)*4)
	for i, l := range b.lengths {
		binary.LittleEndian.PutUint32(ibuf[i*4:], l)
	}
	if _, err := b.dst.WriteAt(ibuf, int64(indexOffset)); err != nil {
		return nil, err
	}
	b.offset += uint64(len(ibuf))

	ht := &HeaderTrailer{
		Flags:       FlagIsSealed,
		IndexOffset: indexOffset,
		IndexSize:   uint64(len(b.lengths)),
		RawDataSize: b.rawDataSize,
		UUID:        b.id,
		Options:     b.opts,
	}

	tbuf, _ := ht.MarshalBinary()
	if _, err := b.dst.WriteAt(tbuf, int64(b.offset)); err != nil {
		return nil, err
	}
	b.offset += uint64(len(tbuf))

	header := *ht
	header.Flags |= FlagIsHeader | FlagHeaderOverwrite
	hbuf, _ := header.MarshalBinary()
	if _, err := b.dst.WriteAt(hbuf, 0); err != nil {
		return nil, err
	}

	return ht, nil
}
