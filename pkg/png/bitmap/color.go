package bitmap

import (
	"fmt"

	"github.com/jpfielding/png.go/pkg/png/chunk"
)

// Options carries the document metadata a conversion may need.
type Options struct {
	Palette      chunk.Palette
	Transparency *chunk.Transparency
	// Background is composited under translucent pixels when alpha is
	// dropped. Nil drops alpha outright.
	Background *chunk.RGB
}

// Luma is round(0.299R + 0.587G + 0.114B), halves rounding up.
func Luma(r, g, b uint16) uint16 {
	return uint16((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// ToRGBA resolves palette and transparency and widens the result to RGBA.
// Depths up to 8 come out as 8-bit, 16 stays 16.
func ToRGBA(b *Bitmap, opts Options) (*Bitmap, error) {
	out, err := Convert(b, RGBA, opts)
	if err != nil {
		return nil, err
	}
	if out.Depth < 8 {
		return out.Rescale(8)
	}
	return out, nil
}

// Convert changes the layout of b. Color is computed at b's depth except
// for Indexed input, which resolves to the 8-bit palette. A gray or RGB
// source matching the tRNS key exactly gets alpha 0; its color is kept.
func Convert(b *Bitmap, to Layout, opts Options) (*Bitmap, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if to.Channels() == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrUnsupportedColorConversion, b.Layout, to)
	}
	if b.Layout == Indexed || to == Indexed {
		if len(opts.Palette) == 0 {
			return nil, fmt.Errorf("%w: %s to %s", ErrPaletteRequired, b.Layout, to)
		}
	}
	if b.Layout == Indexed {
		if err := CheckIndices(b, opts.Palette); err != nil {
			return nil, err
		}
	}
	if b.Layout == to && to != Indexed && (to.HasAlpha() || opts.Transparency == nil || opts.Background == nil) {
		return b, nil
	}

	depth := b.Depth
	if b.Layout == Indexed {
		depth = 8
	}
	if to == Indexed && b.Layout != Indexed && depth != 8 {
		return nil, fmt.Errorf("%w: %d-bit %s to indexed", ErrUnsupportedColorConversion, depth, b.Layout)
	}

	var (
		out    *Bitmap
		lookup map[uint32]int
	)
	switch {
	case to == Indexed && b.Layout == Indexed:
		out = New(b.Width, b.Height, Indexed, b.Depth)
	case to == Indexed:
		out = New(b.Width, b.Height, Indexed, 8)
		lookup = paletteIndex(opts.Palette, opts.Transparency)
	default:
		out = New(b.Width, b.Height, to, depth)
	}

	maxv := uint16(1<<depth - 1)
	var bg [3]uint16
	if opts.Background != nil {
		bg = [3]uint16{
			Rescale(uint16(opts.Background.R), 8, depth),
			Rescale(uint16(opts.Background.G), 8, depth),
			Rescale(uint16(opts.Background.B), 8, depth),
		}
	}

	// a tRNS key only applies when resolving toward a direct color layout;
	// toward Indexed the tRNS carries palette alpha instead
	keyed := opts.Transparency != nil && to != Indexed
	inCh, outCh := b.Layout.Channels(), to.Channels()
	for p := 0; p < b.Width*b.Height; p++ {
		var r, g, bl, a uint16
		s := p * inCh
		switch b.Layout {
		case Gray:
			r = b.Sample(s)
			g, bl, a = r, r, maxv
			if keyed && r == opts.Transparency.Gray {
				a = 0
			}
		case GrayAlpha:
			r = b.Sample(s)
			g, bl, a = r, r, b.Sample(s+1)
		case RGB:
			r, g, bl, a = b.Sample(s), b.Sample(s+1), b.Sample(s+2), maxv
			if keyed && [3]uint16{r, g, bl} == opts.Transparency.RGB {
				a = 0
			}
		case RGBA:
			r, g, bl, a = b.Sample(s), b.Sample(s+1), b.Sample(s+2), b.Sample(s+3)
		case Indexed:
			idx := int(b.Pix[p])
			if to == Indexed {
				out.Pix[p] = uint8(idx)
				continue
			}
			c := opts.Palette[idx]
			r, g, bl, a = uint16(c.R), uint16(c.G), uint16(c.B), uint16(opts.Transparency.PaletteAlpha(idx))
		}

		if !to.HasAlpha() && to != Indexed && opts.Background != nil && a < maxv {
			r = composite(r, bg[0], a, maxv)
			g = composite(g, bg[1], a, maxv)
			bl = composite(bl, bg[2], a, maxv)
		}

		d := p * outCh
		switch to {
		case Gray:
			out.SetSample(d, Luma(r, g, bl))
		case GrayAlpha:
			out.SetSample(d, Luma(r, g, bl))
			out.SetSample(d+1, a)
		case RGB:
			out.SetSample(d, r)
			out.SetSample(d+1, g)
			out.SetSample(d+2, bl)
		case RGBA:
			out.SetSample(d, r)
			out.SetSample(d+1, g)
			out.SetSample(d+2, bl)
			out.SetSample(d+3, a)
		case Indexed:
			idx, ok := lookup[key(r, g, bl, a)]
			if !ok {
				return nil, fmt.Errorf("%w: color (%d,%d,%d,%d) at (%d,%d) is not in the palette",
					ErrUnsupportedColorConversion, r, g, bl, a, p%b.Width, p/b.Width)
			}
			out.Pix[p] = uint8(idx)
		}
	}
	return out, nil
}

// composite blends c over bg by alpha a, rounding half up.
func composite(c, bg, a, maxv uint16) uint16 {
	m := uint32(maxv)
	return uint16((uint32(c)*uint32(a) + uint32(bg)*(m-uint32(a)) + m/2) / m)
}

func key(r, g, b, a uint16) uint32 {
	return uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)
}

// paletteIndex maps each RGBA palette color to its first index.
func paletteIndex(p chunk.Palette, t *chunk.Transparency) map[uint32]int {
	m := make(map[uint32]int, len(p))
	for i, c := range p {
		k := key(uint16(c.R), uint16(c.G), uint16(c.B), uint16(t.PaletteAlpha(i)))
		if _, ok := m[k]; !ok {
			m[k] = i
		}
	}
	return m
}

// CheckIndices verifies that every index of an Indexed bitmap addresses the
// palette.
func CheckIndices(b *Bitmap, p chunk.Palette) error {
	if len(p) == 0 {
		return ErrPaletteRequired
	}
	for i, idx := range b.Pix {
		if int(idx) >= len(p) {
			return fmt.Errorf("%w: index %d at (%d,%d), palette has %d entries",
				ErrPaletteIndexOutOfRange, idx, i%b.Width, i/b.Width, len(p))
		}
	}
	return nil
}
