package bitmap

import (
	"fmt"
)

// RowBytes is ceil(width*channels*depth/8), the packed size of one scanline.
func RowBytes(width, channels, depth int) int {
	return (width*channels*depth + 7) / 8
}

// Unpack expands height packed scanlines (filter bytes already removed) into
// a bitmap. Sub-byte samples are read MSB first; padding bits at the end of
// each row are ignored.
func Unpack(packed []byte, width, height int, layout Layout, depth int) (*Bitmap, error) {
	channels := layout.Channels()
	if channels == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedColorConversion, layout)
	}
	rowBytes := RowBytes(width, channels, depth)
	if len(packed) < rowBytes*height {
		return nil, fmt.Errorf("%w: %d packed bytes for %d rows of %d", ErrInsufficientPixelData, len(packed), height, rowBytes)
	}
	b := New(width, height, layout, depth)
	if depth >= 8 {
		// the packed and unpacked forms coincide
		copy(b.Pix, packed[:rowBytes*height])
		return b, nil
	}
	perRow := width * channels
	mask := byte(1<<depth - 1)
	for y := 0; y < height; y++ {
		row := packed[y*rowBytes : (y+1)*rowBytes]
		out := b.Pix[y*perRow : (y+1)*perRow]
		for i := range out {
			bit := i * depth
			shift := 8 - depth - bit%8
			out[i] = row[bit/8] >> shift & mask
		}
	}
	return b, nil
}

// Pack is the inverse of Unpack. Samples wider than Depth are masked.
func (b *Bitmap) Pack() []byte {
	channels := b.Layout.Channels()
	rowBytes := RowBytes(b.Width, channels, b.Depth)
	if b.Depth >= 8 {
		out := make([]byte, rowBytes*b.Height)
		copy(out, b.Pix)
		return out
	}
	out := make([]byte, rowBytes*b.Height)
	perRow := b.Width * channels
	mask := byte(1<<b.Depth - 1)
	for y := 0; y < b.Height; y++ {
		row := out[y*rowBytes : (y+1)*rowBytes]
		in := b.Pix[y*perRow : (y+1)*perRow]
		for i, v := range in {
			bit := i * b.Depth
			shift := 8 - b.Depth - bit%8
			row[bit/8] |= (v & mask) << shift
		}
	}
	return out
}

// Rescale maps v from a from-bit range onto a to-bit range:
// round(v * (2^to-1) / (2^from-1)), halves rounding up.
func Rescale(v uint16, from, to int) uint16 {
	if from == to {
		return v
	}
	maxFrom := uint64(1)<<from - 1
	maxTo := uint64(1)<<to - 1
	return uint16((uint64(v)*maxTo*2 + maxFrom) / (2 * maxFrom))
}

// Rescale returns a copy of b at another depth. Indexed bitmaps hold palette
// indices, not intensities, and cannot be rescaled.
func (b *Bitmap) Rescale(depth int) (*Bitmap, error) {
	if b.Layout == Indexed {
		if depth == b.Depth {
			return b, nil
		}
		return nil, fmt.Errorf("%w: rescale of palette indices", ErrUnsupportedColorConversion)
	}
	switch depth {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("%w: depth %d", ErrUnsupportedColorConversion, depth)
	}
	if depth == b.Depth {
		return b, nil
	}
	out := New(b.Width, b.Height, b.Layout, depth)
	n := b.Width * b.Height * b.Layout.Channels()
	for i := 0; i < n; i++ {
		out.SetSample(i, Rescale(b.Sample(i), b.Depth, depth))
	}
	return out, nil
}
