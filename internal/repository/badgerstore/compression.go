// internal/repository/badgerstore/compression.go
package badgerstore

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Insertion payload blobs below this size are stored raw; small values
// compress poorly and the frame header alone costs bytes.
const compressMinSize = 1024

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// compressor wraps a shared zstd encoder/decoder pair for insertion blobs.
type compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCompressor() (*compressor, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &compressor{enc: enc, dec: dec}, nil
}

func (c *compressor) compress(data []byte) []byte {
	if len(data) < compressMinSize {
		return data
	}
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)))
}

// decompress inflates data if it carries the zstd frame magic, and returns
// it untouched otherwise.
func (c *compressor) decompress(data []byte) ([]byte, error) {
	if len(data) < len(zstdMagic) || !bytes.Equal(data[:len(zstdMagic)], zstdMagic) {
		return data, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing insertion payload: %w", err)
	}
	return out, nil
}

func (c *compressor) close() {
	c.enc.Close()
	c.dec.Close()
}
