// Package zlib adapts github.com/klauspost/compress/zlib to the
// compress/decompress pair the PNG pipelines depend on. PNG wraps every
// DEFLATE stream (IDAT, zTXt, compressed iTXt) in a zlib container.
package zlib

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	kzlib "github.com/klauspost/compress/zlib"
)

// Compression levels accepted by Compress.
const (
	NoCompression      = kzlib.NoCompression
	BestSpeed          = kzlib.BestSpeed
	BestCompression    = kzlib.BestCompression
	DefaultCompression = kzlib.DefaultCompression
	HuffmanOnly        = kzlib.HuffmanOnly
)

// Common errors
var (
	ErrCompressionFailure   = errors.New("zlib: compression failed")
	ErrDecompressionFailure = errors.New("zlib: decompression failed")
	ErrOutputLimit          = errors.New("zlib: output exceeds limit")
)

// Codec is the zlib implementation used by default for IDAT and text chunks.
type Codec struct{}

// Compress deflates data at the given level.
func (Codec) Compress(data []byte, level int) ([]byte, error) {
	return Compress(data, level)
}

// Decompress inflates data, refusing to produce more than limit bytes
// when limit > 0.
func (Codec) Decompress(data []byte, limit int) ([]byte, error) {
	return Decompress(data, limit)
}

// Compress deflates data into a zlib stream.
func Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := kzlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: level %d: %v", ErrCompressionFailure, level, err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompressionFailure, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompressionFailure, err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream. With limit > 0 at most limit bytes are
// produced; a stream that would inflate past it fails with ErrOutputLimit.
func Decompress(data []byte, limit int) ([]byte, error) {
	zr, err := kzlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailure, err)
	}
	defer zr.Close()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, int64(limit)+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailure, err)
	}
	if limit > 0 && len(out) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrOutputLimit, limit)
	}
	return out, nil
}
