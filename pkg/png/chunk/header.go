package chunk

import (
	"encoding/binary"
	"fmt"
)

// ColorType identifies the channel set a pixel encodes (IHDR byte 9).
type ColorType uint8

const (
	Grayscale      ColorType = 0
	Truecolor      ColorType = 2
	Indexed        ColorType = 3
	GrayscaleAlpha ColorType = 4
	TruecolorAlpha ColorType = 6
)

// String returns the color type name
func (c ColorType) String() string {
	switch c {
	case Grayscale:
		return "grayscale"
	case Truecolor:
		return "rgb"
	case Indexed:
		return "palette"
	case GrayscaleAlpha:
		return "grayscale-alpha"
	case TruecolorAlpha:
		return "rgba"
	default:
		return fmt.Sprintf("colortype(%d)", uint8(c))
	}
}

// Channels returns the number of samples per pixel on the wire.
func (c ColorType) Channels() int {
	switch c {
	case Grayscale, Indexed:
		return 1
	case GrayscaleAlpha:
		return 2
	case Truecolor:
		return 3
	case TruecolorAlpha:
		return 4
	default:
		return 0
	}
}

// HasAlpha reports whether the color type carries an alpha channel.
func (c ColorType) HasAlpha() bool {
	return c == GrayscaleAlpha || c == TruecolorAlpha
}

// AllowedDepths lists the legal bit depths per color type (PNG Table 11.1).
var AllowedDepths = map[ColorType][]uint8{
	Grayscale:      {1, 2, 4, 8, 16},
	Truecolor:      {8, 16},
	Indexed:        {1, 2, 4, 8},
	GrayscaleAlpha: {8, 16},
	TruecolorAlpha: {8, 16},
}

// ValidDepth reports whether (depth, color type) is a legal pair.
func ValidDepth(c ColorType, depth uint8) bool {
	for _, d := range AllowedDepths[c] {
		if d == depth {
			return true
		}
	}
	return false
}

// Interlace methods
const (
	InterlaceNone  uint8 = 0
	InterlaceAdam7 uint8 = 1
)

// HeaderLength is the fixed size of IHDR data.
const HeaderLength = 13

// Header is the decoded IHDR chunk.
type Header struct {
	Width       uint32    `json:"width"`
	Height      uint32    `json:"height"`
	BitDepth    uint8     `json:"bitDepth"`
	ColorType   ColorType `json:"colorType"`
	Compression uint8     `json:"compressionMethod"`
	Filter      uint8     `json:"filterMethod"`
	Interlace   uint8     `json:"interlaceMethod"`
}

// ParseHeader decodes and validates IHDR data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) != HeaderLength {
		return Header{}, fmt.Errorf("%w: IHDR length %d", ErrInvalidHeader, len(data))
	}
	h := Header{
		Width:       binary.BigEndian.Uint32(data[0:4]),
		Height:      binary.BigEndian.Uint32(data[4:8]),
		BitDepth:    data[8],
		ColorType:   ColorType(data[9]),
		Compression: data[10],
		Filter:      data[11],
		Interlace:   data[12],
	}
	return h, h.Validate()
}

// Validate checks dimensions, the depth/color pair and the method bytes.
func (h Header) Validate() error {
	switch {
	case h.Width == 0 || h.Height == 0:
		return fmt.Errorf("%w: zero dimension %dx%d", ErrInvalidHeader, h.Width, h.Height)
	case h.Width > MaxLength || h.Height > MaxLength:
		return fmt.Errorf("%w: dimension %dx%d exceeds 2^31-1", ErrInvalidHeader, h.Width, h.Height)
	case h.ColorType.Channels() == 0:
		return fmt.Errorf("%w: color type %d", ErrInvalidHeader, uint8(h.ColorType))
	case !ValidDepth(h.ColorType, h.BitDepth):
		return fmt.Errorf("%w: bit depth %d not allowed for %s", ErrInvalidHeader, h.BitDepth, h.ColorType)
	case h.Compression != 0:
		return fmt.Errorf("%w: compression method %d", ErrInvalidHeader, h.Compression)
	case h.Filter != 0:
		return fmt.Errorf("%w: filter method %d", ErrInvalidHeader, h.Filter)
	case h.Interlace > InterlaceAdam7:
		return fmt.Errorf("%w: interlace method %d", ErrInvalidHeader, h.Interlace)
	}
	return nil
}

// Bytes encodes the header as IHDR data.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderLength)
	binary.BigEndian.PutUint32(b[0:4], h.Width)
	binary.BigEndian.PutUint32(b[4:8], h.Height)
	b[8] = h.BitDepth
	b[9] = uint8(h.ColorType)
	b[10] = h.Compression
	b[11] = h.Filter
	b[12] = h.Interlace
	return b
}

// Interlaced reports whether the image uses Adam7.
func (h Header) Interlaced() bool {
	return h.Interlace == InterlaceAdam7
}

// BitsPerPixel is bit depth times channel count.
func (h Header) BitsPerPixel() int {
	return int(h.BitDepth) * h.ColorType.Channels()
}

// BytesPerPixel is the filter "bpp": whole bytes per pixel, at least 1.
func (h Header) BytesPerPixel() int {
	return max(1, h.BitsPerPixel()/8)
}

// RowBytes returns ceil(width*bitsPerPixel/8) for a raster of the given width.
func (h Header) RowBytes(width int) int {
	return (width*h.BitsPerPixel() + 7) / 8
}
