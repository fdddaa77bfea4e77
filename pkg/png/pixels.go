package png

import (
	"fmt"
	"image"
	"image/color"

	"github.com/jpfielding/png.go/pkg/png/bitmap"
)

// PixelBuffer is a caller-owned raster: Width*Height pixels of Layout, each
// sample 8-bit or 16-bit big endian. Indexed buffers hold one palette index
// per byte.
type PixelBuffer struct {
	Width  int
	Height int
	Layout Layout
	Depth  int
	Pix    []byte
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(width, height int, layout Layout, depth int) *PixelBuffer {
	return (*PixelBuffer)(bitmap.New(width, height, layout, depth))
}

func (p *PixelBuffer) bitmap() *bitmap.Bitmap {
	return (*bitmap.Bitmap)(p)
}

// Validate checks depth, layout and buffer size.
func (p *PixelBuffer) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil pixel buffer", ErrInsufficientPixelData)
	}
	switch {
	case p.Depth != 8 && p.Depth != 16:
		return fmt.Errorf("%w: pixel buffer depth %d, want 8 or 16", ErrUnsupportedColorConversion, p.Depth)
	case p.Layout == Indexed && p.Depth != 8:
		return fmt.Errorf("%w: indexed pixel buffer must be 8-bit", ErrUnsupportedColorConversion)
	}
	return p.bitmap().Validate()
}

// Convert returns the buffer in another layout at the same depth. Indexed
// input requires the palette in meta; alpha is dropped (or composited over
// bg when non-nil) for layouts without it.
func (p *PixelBuffer) Convert(to Layout, meta *Metadata, bg *RGBColor) (*PixelBuffer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	opts := bitmap.Options{Background: bg}
	if meta != nil {
		opts.Palette = meta.Palette
		if p.Layout == Indexed || to == Indexed {
			opts.Transparency = meta.Transparency
		}
	}
	out, err := bitmap.Convert(p.bitmap(), to, opts)
	if err != nil {
		return nil, err
	}
	return (*PixelBuffer)(out), nil
}

// Image wraps the buffer as an image.Image without copying where the
// layout has a direct stdlib counterpart (Gray, Gray16, NRGBA, NRGBA64).
// Other layouts are converted to RGBA first.
func (p *PixelBuffer) Image() (image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, p.Width, p.Height)
	stride := p.Width * p.bitmap().PixelBytes()
	switch {
	case p.Layout == Gray && p.Depth == 8:
		return &image.Gray{Pix: p.Pix, Stride: stride, Rect: rect}, nil
	case p.Layout == Gray:
		return &image.Gray16{Pix: p.Pix, Stride: stride, Rect: rect}, nil
	case p.Layout == RGBA && p.Depth == 8:
		return &image.NRGBA{Pix: p.Pix, Stride: stride, Rect: rect}, nil
	case p.Layout == RGBA:
		return &image.NRGBA64{Pix: p.Pix, Stride: stride, Rect: rect}, nil
	}
	rgba, err := p.Convert(RGBA, nil, nil)
	if err != nil {
		return nil, err
	}
	return rgba.Image()
}

// FromImage copies an image.Image into a PixelBuffer. Gray, Gray16, NRGBA
// and NRGBA64 keep their layout and depth; everything else becomes 8-bit
// RGBA (16-bit when the source model is 16-bit).
func FromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch src := img.(type) {
	case *image.Gray:
		return copyRows(src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y), w, h, Gray, 8)
	case *image.Gray16:
		return copyRows(src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y), w, h, Gray, 16)
	case *image.NRGBA:
		return copyRows(src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y), w, h, RGBA, 8)
	case *image.NRGBA64:
		return copyRows(src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y), w, h, RGBA, 16)
	}

	wide := false
	switch img.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model, color.Alpha16Model:
		wide = true
	}
	if wide {
		out := NewPixelBuffer(w, h, RGBA, 16)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				for _, v := range [4]uint16{c.R, c.G, c.B, c.A} {
					out.Pix[i], out.Pix[i+1] = uint8(v>>8), uint8(v)
					i += 2
				}
			}
		}
		return out
	}
	out := NewPixelBuffer(w, h, RGBA, 8)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
			i += 4
		}
	}
	return out
}

func copyRows(pix []byte, stride, off, w, h int, layout Layout, depth int) *PixelBuffer {
	out := NewPixelBuffer(w, h, layout, depth)
	rowBytes := w * out.bitmap().PixelBytes()
	for y := 0; y < h; y++ {
		copy(out.Pix[y*rowBytes:(y+1)*rowBytes], pix[off+y*stride:])
	}
	return out
}
