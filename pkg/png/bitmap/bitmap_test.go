package bitmap

import (
	"bytes"
	"testing"

	"github.com/jpfielding/png.go/pkg/png/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpack_OneBitAllSet(t *testing.T) {
	packed := bytes.Repeat([]byte{0xFF}, 8)
	b, err := Unpack(packed, 8, 8, Gray, 1)
	require.NoError(t, err)
	for _, v := range b.Pix {
		require.Equal(t, uint8(1), v)
	}

	rgba, err := ToRGBA(b, Options{})
	require.NoError(t, err)
	assert.Equal(t, RGBA, rgba.Layout)
	assert.Equal(t, 8, rgba.Depth)
	require.Len(t, rgba.Pix, 64*4)
	for i, v := range rgba.Pix {
		require.Equal(t, uint8(255), v, "sample %d", i)
	}
}

func TestUnpack_SubByte(t *testing.T) {
	tests := []struct {
		name   string
		packed []byte
		width  int
		height int
		depth  int
		want   []byte
	}{
		{"1-bit msb first", []byte{0xA0}, 3, 1, 1, []byte{1, 0, 1}},
		{"2-bit padding ignored", []byte{0x1B}, 3, 1, 2, []byte{0, 1, 2}},
		{"4-bit", []byte{0xAB, 0xC0}, 3, 1, 4, []byte{10, 11, 12}},
		{"2 rows", []byte{0x80, 0x40}, 2, 2, 1, []byte{1, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Unpack(tt.packed, tt.width, tt.height, Gray, tt.depth)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Pix)
		})
	}
}

func TestPack_InverseOfUnpack(t *testing.T) {
	for _, depth := range []int{1, 2, 4, 8, 16} {
		for _, width := range []int{1, 3, 7, 9} {
			layout := Gray
			if depth >= 8 {
				layout = RGB
			}
			b := New(width, 3, layout, depth)
			n := width * 3 * layout.Channels()
			for i := 0; i < n; i++ {
				b.SetSample(i, uint16(i*7)&b.Max())
			}
			packed := b.Pack()
			assert.Len(t, packed, 3*RowBytes(width, layout.Channels(), depth))

			back, err := Unpack(packed, width, 3, layout, depth)
			require.NoError(t, err)
			assert.Equal(t, b.Pix, back.Pix, "depth %d width %d", depth, width)
		}
	}
}

func TestPack_PaddingBitsZero(t *testing.T) {
	b := &Bitmap{Width: 3, Height: 1, Layout: Gray, Depth: 2, Pix: []byte{0, 1, 2}}
	assert.Equal(t, []byte{0x18}, b.Pack())
}

func TestUnpack_Insufficient(t *testing.T) {
	_, err := Unpack([]byte{0xFF}, 9, 1, Gray, 1)
	assert.ErrorIs(t, err, ErrInsufficientPixelData)
	_, err = Unpack(make([]byte, 5), 2, 1, RGB, 8)
	assert.ErrorIs(t, err, ErrInsufficientPixelData)
}

func TestRescale(t *testing.T) {
	tests := []struct {
		v        uint16
		from, to int
		want     uint16
	}{
		{0, 1, 8, 0},
		{1, 1, 8, 255},
		{1, 2, 8, 85},
		{2, 2, 8, 170},
		{3, 2, 8, 255},
		{7, 4, 8, 119},
		{65535, 16, 8, 255},
		{128, 16, 8, 0},
		{129, 16, 8, 1},
		{255, 8, 16, 65535},
		{1, 8, 16, 257},
		{255, 8, 4, 15},
		{8, 8, 4, 0},
		{9, 8, 4, 1},
		{200, 8, 8, 200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rescale(tt.v, tt.from, tt.to), "%d from %d to %d", tt.v, tt.from, tt.to)
	}
}

func TestBitmap_Rescale(t *testing.T) {
	b := &Bitmap{Width: 2, Height: 1, Layout: Gray, Depth: 8, Pix: []byte{1, 255}}
	wide, err := b.Rescale(16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01, 0xFF, 0xFF}, wide.Pix)

	back, err := wide.Rescale(8)
	require.NoError(t, err)
	assert.Equal(t, b.Pix, back.Pix)

	idx := &Bitmap{Width: 1, Height: 1, Layout: Indexed, Depth: 4, Pix: []byte{3}}
	_, err = idx.Rescale(8)
	assert.ErrorIs(t, err, ErrUnsupportedColorConversion)
}

func TestLuma(t *testing.T) {
	assert.Equal(t, uint16(76), Luma(255, 0, 0))
	assert.Equal(t, uint16(150), Luma(0, 255, 0))
	assert.Equal(t, uint16(29), Luma(0, 0, 255))
	for v := uint16(0); v < 256; v++ {
		require.Equal(t, v, Luma(v, v, v))
	}
	assert.Equal(t, uint16(65535), Luma(65535, 65535, 65535))
}

func TestConvert_RedToGray(t *testing.T) {
	b := &Bitmap{Width: 1, Height: 1, Layout: RGB, Depth: 8, Pix: []byte{255, 0, 0}}
	g, err := Convert(b, Gray, Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte{76}, g.Pix)
}

func TestConvert_Layouts(t *testing.T) {
	tests := []struct {
		name string
		in   *Bitmap
		to   Layout
		opts Options
		want []byte
	}{
		{"gray to rgb", &Bitmap{2, 1, Gray, 8, []byte{10, 200}}, RGB, Options{}, []byte{10, 10, 10, 200, 200, 200}},
		{"gray to gray-alpha", &Bitmap{1, 1, Gray, 8, []byte{10}}, GrayAlpha, Options{}, []byte{10, 255}},
		{"gray-alpha to gray", &Bitmap{1, 1, GrayAlpha, 8, []byte{10, 3}}, Gray, Options{}, []byte{10}},
		{"rgb to rgba", &Bitmap{1, 1, RGB, 8, []byte{1, 2, 3}}, RGBA, Options{}, []byte{1, 2, 3, 255}},
		{"rgba to rgb", &Bitmap{1, 1, RGBA, 8, []byte{1, 2, 3, 4}}, RGB, Options{}, []byte{1, 2, 3}},
		{"rgba to gray-alpha", &Bitmap{1, 1, RGBA, 8, []byte{255, 0, 0, 9}}, GrayAlpha, Options{}, []byte{76, 9}},
		{"gray-alpha to rgba", &Bitmap{1, 1, GrayAlpha, 8, []byte{7, 9}}, RGBA, Options{}, []byte{7, 7, 7, 9}},
		{"16-bit gray to rgba", &Bitmap{1, 1, Gray, 16, []byte{0x12, 0x34}}, RGBA, Options{},
			[]byte{0x12, 0x34, 0x12, 0x34, 0x12, 0x34, 0xFF, 0xFF}},
		{"composite transparent", &Bitmap{1, 1, RGBA, 8, []byte{255, 0, 0, 0}}, RGB,
			Options{Background: &chunk.RGB{B: 255}}, []byte{0, 0, 255}},
		{"composite half", &Bitmap{1, 1, RGBA, 8, []byte{255, 0, 0, 128}}, RGB,
			Options{Background: &chunk.RGB{}}, []byte{128, 0, 0}},
		{"composite opaque", &Bitmap{1, 1, GrayAlpha, 8, []byte{40, 255}}, Gray,
			Options{Background: &chunk.RGB{R: 255, G: 255, B: 255}}, []byte{40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Convert(tt.in, tt.to, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.to, out.Layout)
			assert.Equal(t, tt.want, out.Pix)
		})
	}
}

func TestToRGBA_Palette(t *testing.T) {
	pal := chunk.Palette{{R: 255}, {G: 255}, {B: 255}}
	b := &Bitmap{Width: 3, Height: 1, Layout: Indexed, Depth: 2, Pix: []byte{2, 0, 1}}
	out, err := ToRGBA(b, Options{Palette: pal, Transparency: &chunk.Transparency{Alpha: []uint8{128}}})
	require.NoError(t, err)
	assert.Equal(t, 8, out.Depth)
	assert.Equal(t, []byte{
		0, 0, 255, 255,
		255, 0, 0, 128,
		0, 255, 0, 255,
	}, out.Pix)
}

func TestToRGBA_PaletteErrors(t *testing.T) {
	pal := chunk.Palette{{R: 1}, {G: 1}}
	b := &Bitmap{Width: 3, Height: 1, Layout: Indexed, Depth: 8, Pix: []byte{0, 1, 2}}

	_, err := ToRGBA(b, Options{Palette: pal})
	assert.ErrorIs(t, err, ErrPaletteIndexOutOfRange)

	_, err = ToRGBA(b, Options{})
	assert.ErrorIs(t, err, ErrPaletteRequired)

	assert.ErrorIs(t, CheckIndices(b, pal), ErrPaletteIndexOutOfRange)
	assert.NoError(t, CheckIndices(b, append(pal, chunk.RGB{})))
	assert.ErrorIs(t, CheckIndices(b, nil), ErrPaletteRequired)
}

func TestToRGBA_Transparency(t *testing.T) {
	t.Run("gray key", func(t *testing.T) {
		b := &Bitmap{Width: 3, Height: 1, Layout: Gray, Depth: 8, Pix: []byte{0, 7, 9}}
		out, err := ToRGBA(b, Options{Transparency: &chunk.Transparency{Gray: 7}})
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 255, 7, 7, 7, 0, 9, 9, 9, 255}, out.Pix)
	})
	t.Run("1-bit gray key compares before rescale", func(t *testing.T) {
		b, err := Unpack([]byte{0x80}, 2, 1, Gray, 1)
		require.NoError(t, err)
		out, err := ToRGBA(b, Options{Transparency: &chunk.Transparency{Gray: 1}})
		require.NoError(t, err)
		assert.Equal(t, []byte{255, 255, 255, 0, 0, 0, 0, 255}, out.Pix)
	})
	t.Run("16-bit rgb key", func(t *testing.T) {
		b := &Bitmap{Width: 2, Height: 1, Layout: RGB, Depth: 16, Pix: []byte{
			0, 1, 0, 2, 0, 3,
			0, 1, 0, 2, 0, 4,
		}}
		out, err := ToRGBA(b, Options{Transparency: &chunk.Transparency{RGB: [3]uint16{1, 2, 3}}})
		require.NoError(t, err)
		assert.Equal(t, 16, out.Depth)
		assert.Equal(t, uint16(0), out.Sample(3))
		assert.Equal(t, uint16(65535), out.Sample(7))
		assert.Equal(t, uint16(3), out.Sample(2))
	})
}

func TestConvert_ToIndexed(t *testing.T) {
	pal := chunk.Palette{{R: 255}, {G: 255}, {R: 255}}
	trns := &chunk.Transparency{Alpha: []uint8{255, 255, 0}}

	rgb := &Bitmap{Width: 2, Height: 1, Layout: RGB, Depth: 8, Pix: []byte{0, 255, 0, 255, 0, 0}}
	out, err := Convert(rgb, Indexed, Options{Palette: pal, Transparency: trns})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, out.Pix)

	rgba := &Bitmap{Width: 1, Height: 1, Layout: RGBA, Depth: 8, Pix: []byte{255, 0, 0, 0}}
	out, err = Convert(rgba, Indexed, Options{Palette: pal, Transparency: trns})
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, out.Pix)

	missing := &Bitmap{Width: 1, Height: 1, Layout: RGB, Depth: 8, Pix: []byte{1, 2, 3}}
	_, err = Convert(missing, Indexed, Options{Palette: pal})
	assert.ErrorIs(t, err, ErrUnsupportedColorConversion)

	wide := &Bitmap{Width: 1, Height: 1, Layout: RGB, Depth: 16, Pix: make([]byte, 6)}
	_, err = Convert(wide, Indexed, Options{Palette: pal})
	assert.ErrorIs(t, err, ErrUnsupportedColorConversion)

	_, err = Convert(rgb, Indexed, Options{})
	assert.ErrorIs(t, err, ErrPaletteRequired)
}

func TestConvert_Invalid(t *testing.T) {
	short := &Bitmap{Width: 2, Height: 2, Layout: RGB, Depth: 8, Pix: make([]byte, 11)}
	_, err := Convert(short, RGBA, Options{})
	assert.ErrorIs(t, err, ErrInsufficientPixelData)

	ok := New(1, 1, RGB, 8)
	_, err = Convert(ok, Layout(42), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedColorConversion)

	bad := &Bitmap{Width: 1, Height: 1, Layout: RGB, Depth: 3, Pix: make([]byte, 3)}
	assert.ErrorIs(t, bad.Validate(), ErrUnsupportedColorConversion)
}

func TestLayout_ColorType(t *testing.T) {
	for _, l := range []Layout{Gray, GrayAlpha, RGB, RGBA, Indexed} {
		got, err := LayoutOf(l.ColorType())
		require.NoError(t, err)
		assert.Equal(t, l, got)
		assert.Equal(t, l.ColorType().Channels(), l.Channels())

		parsed, err := ParseLayout(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := LayoutOf(chunk.ColorType(5))
	assert.ErrorIs(t, err, ErrUnsupportedColorConversion)
	_, err = ParseLayout("cmyk")
	assert.ErrorIs(t, err, ErrUnsupportedColorConversion)
}
