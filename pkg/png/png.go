// Package png decodes PNG byte streams into pixel buffers plus metadata and
// encodes pixel buffers back into PNG streams.
//
// Decoding always produces an RGBA buffer: 8-bit for bit depths up to 8 and
// 16-bit for 16-bit images unless DecodeOptions.Rescale8 is set. Encoding
// accepts any Layout and converts it to the color type and bit depth named
// by the Metadata header.
package png

import (
	"errors"

	"github.com/jpfielding/png.go/pkg/compress/zlib"
	"github.com/jpfielding/png.go/pkg/png/bitmap"
	"github.com/jpfielding/png.go/pkg/png/chunk"
	"github.com/jpfielding/png.go/pkg/png/filter"
)

// Errors returned by Decode and Encode. Each wraps or aliases the error of
// the stage that produced it, so errors.Is works against either.
var (
	ErrSignatureMismatch          = chunk.ErrSignatureMismatch
	ErrMissingChunk               = chunk.ErrMissingChunk
	ErrUnexpectedChunkOrder       = chunk.ErrUnexpectedChunkOrder
	ErrChunkCrcMismatch           = chunk.ErrChunkCrcMismatch
	ErrTruncatedChunk             = chunk.ErrTruncatedChunk
	ErrInvalidHeader              = chunk.ErrInvalidHeader
	ErrMalformedChunk             = chunk.ErrMalformedChunk
	ErrUnknownCritical            = chunk.ErrUnknownCritical
	ErrPaletteRequired            = bitmap.ErrPaletteRequired
	ErrPaletteIndexOutOfRange     = bitmap.ErrPaletteIndexOutOfRange
	ErrUnsupportedColorConversion = bitmap.ErrUnsupportedColorConversion
	ErrInsufficientPixelData      = bitmap.ErrInsufficientPixelData
	ErrCompressionFailure         = zlib.ErrCompressionFailure
	ErrDecompressionFailure       = zlib.ErrDecompressionFailure
	ErrUnknownFilter              = filter.ErrUnknownFilter
	ErrInvalidOption              = errors.New("png: invalid option")
)

// Metadata is everything in a PNG besides the pixels.
type Metadata struct {
	Header         chunk.Header           `json:"header"`
	Palette        chunk.Palette          `json:"palette,omitempty"`
	Transparency   *chunk.Transparency    `json:"transparency,omitempty"`
	Gamma          *chunk.Gamma           `json:"gamma,omitempty"`
	Chromaticities *chunk.Chromaticities  `json:"chromaticities,omitempty"`
	Intent         *chunk.RenderingIntent `json:"renderingIntent,omitempty"`
	Text           []chunk.Text           `json:"text,omitempty"`
	// Unknown holds unrecognized ancillary chunks by type code. Encode
	// writes back only the safe-to-copy ones.
	Unknown map[chunk.Type][][]byte `json:"unknown,omitempty"`
}

// Layout aliases so callers need only this package.
type Layout = bitmap.Layout

const (
	Gray      = bitmap.Gray
	GrayAlpha = bitmap.GrayAlpha
	RGB       = bitmap.RGB
	RGBA      = bitmap.RGBA
	Indexed   = bitmap.Indexed
)

// Compressor is the DEFLATE collaborator behind IDAT. zlib.Codec is the
// default.
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	// Decompress must fail rather than produce more than limit bytes.
	Decompress(data []byte, limit int) ([]byte, error)
}

// RGBColor is an 8-bit background color.
type RGBColor = chunk.RGB
