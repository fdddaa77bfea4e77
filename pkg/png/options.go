package png

import (
	"fmt"
	"runtime"

	"github.com/jpfielding/png.go/pkg/compress/zlib"
	"github.com/jpfielding/png.go/pkg/png/chunk"
	"github.com/jpfielding/png.go/pkg/png/filter"
)

// EncodeOptions tunes the packer. The zero value is not usable; start from
// DefaultEncodeOptions.
type EncodeOptions struct {
	// Level is the zlib level, -2 (Huffman only) through 9.
	Level int
	// ChunkSize caps each IDAT payload.
	ChunkSize int
	// Interlace forces Adam7 regardless of the header's interlace method.
	Interlace bool
	// Filter lists the filter types tried per row; empty means adaptive.
	Filter filter.Selector
	// Workers is the number of row stripes filtered concurrently.
	Workers int
	// Background is composited under translucent pixels when the target
	// color type has no alpha.
	Background *RGBColor
	Compressor Compressor
}

// DefaultEncodeOptions returns best compression, 32 KiB IDAT chunks and
// adaptive filtering across GOMAXPROCS stripes.
func DefaultEncodeOptions() *EncodeOptions {
	return &EncodeOptions{
		Level:      zlib.BestCompression,
		ChunkSize:  chunk.DefaultIDATSize,
		Filter:     filter.Adaptive(),
		Workers:    runtime.GOMAXPROCS(0),
		Compressor: zlib.Codec{},
	}
}

// Validate checks ranges and fills nil collaborators with defaults.
func (o *EncodeOptions) Validate() error {
	switch {
	case o.Level < zlib.HuffmanOnly || o.Level > zlib.BestCompression:
		return fmt.Errorf("%w: compression level %d", ErrInvalidOption, o.Level)
	case o.ChunkSize <= 0 || o.ChunkSize > chunk.MaxLength:
		return fmt.Errorf("%w: chunk size %d", ErrInvalidOption, o.ChunkSize)
	case o.Workers < 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidOption, o.Workers)
	}
	if err := o.Filter.Validate(); err != nil {
		return fmt.Errorf("%w: filter: %w", ErrInvalidOption, err)
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	if o.Compressor == nil {
		o.Compressor = zlib.Codec{}
	}
	return nil
}

// DecodeOptions tunes Decode.
type DecodeOptions struct {
	// Rescale8 narrows 16-bit images to 8-bit output.
	Rescale8 bool
	// KeepUnknown retains unrecognized ancillary chunks in Metadata.Unknown.
	KeepUnknown bool
	Compressor  Compressor
}

// DefaultDecodeOptions keeps 16-bit precision and unknown chunks.
func DefaultDecodeOptions() *DecodeOptions {
	return &DecodeOptions{
		KeepUnknown: true,
		Compressor:  zlib.Codec{},
	}
}
