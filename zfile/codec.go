package zfile

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// codec compresses and decompresses single independent blocks. Unlike
// a streaming compressor, every call is self-contained: ZFile blocks
// are compressed and later read back in any order.
type codec interface {
	compressBlock(dst, src []byte) ([]byte, error)
	decompressBlock(dst, src []byte) ([]byte, error)
}

// newCodec returns a fresh codec instance for algo. A fresh instance is
// handed to each builder worker goroutine: lz4's block compressor keeps
// a reusable hash table that isn't safe to share across goroutines.
func newCodec(algo Algo) (codec, error) {
	switch algo {
	case AlgoLZ4:
		return &lz4Codec{}, nil
	case AlgoZSTD:
		return newZstdCodec()
	default:
		return nil, invalidArg("newCodec", nil)
	}
}

type lz4Codec struct {
	c lz4.Compressor
}

// lz4 block compression can report "incompressible" by writing
// nothing; a leading flag byte (0 = stored raw, 1 = lz4 block) lets
// decompressBlock tell the two cases apart without guessing from size.
const (
	lz4FlagRaw        = 0
	lz4FlagCompressed = 1
)

func (z *lz4Codec) compressBlock(dst, src []byte) ([]byte, error) {
	need := lz4.CompressBlockBound(len(src)) + 1
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	n, err := z.c.CompressBlock(src, dst[1:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		out := dst[:1+len(src)]
		out[0] = lz4FlagRaw
		copy(out[1:], src)
		return out, nil
	}
	dst[0] = lz4FlagCompressed
	return dst[:1+n], nil
}

func (z *lz4Codec) decompressBlock(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}
	flag, body := src[0], src[1:]
	if flag == lz4FlagRaw {
		return append(dst[:0], body...), nil
	}
	n, err := lz4.UncompressBlock(body, dst[:cap(dst)])
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (z *zstdCodec) compressBlock(dst, src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst[:0]), nil
}

func (z *zstdCodec) decompressBlock(dst, src []byte) ([]byte, error) {
	return z.dec.DecodeAll(src, dst[:0])
}
