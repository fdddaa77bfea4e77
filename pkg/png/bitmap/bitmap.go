// Package bitmap converts between the packed sample encodings a PNG stream
// may carry and unpacked rasters with one byte (two for 16-bit) per sample.
package bitmap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jpfielding/png.go/pkg/png/chunk"
)

var (
	ErrPaletteRequired            = errors.New("png: palette required")
	ErrPaletteIndexOutOfRange     = errors.New("png: palette index out of range")
	ErrUnsupportedColorConversion = errors.New("png: unsupported color conversion")
	ErrInsufficientPixelData      = errors.New("png: insufficient pixel data")
)

// Layout is the channel arrangement of a Bitmap.
type Layout uint8

const (
	Gray Layout = iota
	GrayAlpha
	RGB
	RGBA
	Indexed
)

var layoutNames = [...]string{"gray", "gray-alpha", "rgb", "rgba", "indexed"}

func (l Layout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("layout(%d)", uint8(l))
}

// ParseLayout is the inverse of String.
func ParseLayout(s string) (Layout, error) {
	for i, n := range layoutNames {
		if n == s {
			return Layout(i), nil
		}
	}
	return 0, fmt.Errorf("%w: layout %q", ErrUnsupportedColorConversion, s)
}

// Channels is the sample count per pixel, 0 for an unknown layout.
func (l Layout) Channels() int {
	switch l {
	case Gray, Indexed:
		return 1
	case GrayAlpha:
		return 2
	case RGB:
		return 3
	case RGBA:
		return 4
	}
	return 0
}

// HasAlpha reports whether the layout carries an alpha sample.
func (l Layout) HasAlpha() bool {
	return l == GrayAlpha || l == RGBA
}

// ColorType maps the layout to its IHDR color type.
func (l Layout) ColorType() chunk.ColorType {
	switch l {
	case GrayAlpha:
		return chunk.GrayscaleAlpha
	case RGB:
		return chunk.Truecolor
	case RGBA:
		return chunk.TruecolorAlpha
	case Indexed:
		return chunk.Indexed
	}
	return chunk.Grayscale
}

// LayoutOf maps an IHDR color type to a layout.
func LayoutOf(ct chunk.ColorType) (Layout, error) {
	switch ct {
	case chunk.Grayscale:
		return Gray, nil
	case chunk.GrayscaleAlpha:
		return GrayAlpha, nil
	case chunk.Truecolor:
		return RGB, nil
	case chunk.TruecolorAlpha:
		return RGBA, nil
	case chunk.Indexed:
		return Indexed, nil
	}
	return 0, fmt.Errorf("%w: color type %d", ErrUnsupportedColorConversion, uint8(ct))
}

// Bitmap is an unpacked raster. Samples of Depth <= 8 occupy one byte each
// and keep their native range (0..2^Depth-1); 16-bit samples are two bytes,
// big endian.
type Bitmap struct {
	Width  int
	Height int
	Layout Layout
	Depth  int
	Pix    []byte
}

// New allocates a zeroed bitmap.
func New(width, height int, layout Layout, depth int) *Bitmap {
	b := &Bitmap{Width: width, Height: height, Layout: layout, Depth: depth}
	b.Pix = make([]byte, width*height*b.PixelBytes())
	return b
}

// SampleBytes is 2 for 16-bit bitmaps and 1 otherwise.
func (b *Bitmap) SampleBytes() int {
	if b.Depth > 8 {
		return 2
	}
	return 1
}

// PixelBytes is the storage size of one pixel.
func (b *Bitmap) PixelBytes() int {
	return b.Layout.Channels() * b.SampleBytes()
}

// Max is the largest sample value at this depth.
func (b *Bitmap) Max() uint16 {
	return uint16(1<<b.Depth - 1)
}

// Validate checks the depth, layout and buffer length.
func (b *Bitmap) Validate() error {
	switch b.Depth {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: depth %d", ErrUnsupportedColorConversion, b.Depth)
	}
	if b.Layout.Channels() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedColorConversion, b.Layout)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInsufficientPixelData, b.Width, b.Height)
	}
	if want := b.Width * b.Height * b.PixelBytes(); len(b.Pix) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d %s/%d, want %d", ErrInsufficientPixelData,
			len(b.Pix), b.Width, b.Height, b.Layout, b.Depth, want)
	}
	return nil
}

// Sample returns sample i (pixel*channels + channel).
func (b *Bitmap) Sample(i int) uint16 {
	if b.Depth > 8 {
		return binary.BigEndian.Uint16(b.Pix[2*i:])
	}
	return uint16(b.Pix[i])
}

// SetSample stores sample i.
func (b *Bitmap) SetSample(i int, v uint16) {
	if b.Depth > 8 {
		binary.BigEndian.PutUint16(b.Pix[2*i:], v)
		return
	}
	b.Pix[i] = uint8(v)
}
