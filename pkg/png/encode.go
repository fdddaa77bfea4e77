package png

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jpfielding/png.go/pkg/png/bitmap"
	"github.com/jpfielding/png.go/pkg/png/chunk"
	"github.com/jpfielding/png.go/pkg/png/filter"
	"github.com/jpfielding/png.go/pkg/png/interlace"
)

// Encode packs pix into a PNG stream described by meta. Nil opts uses
// DefaultEncodeOptions.
func Encode(meta *Metadata, pix *PixelBuffer, opts *EncodeOptions) ([]byte, error) {
	return EncodeContext(context.Background(), meta, pix, opts)
}

// EncodeContext is Encode with ctx carried to the logger.
//
// A zero meta.Header takes its size, color type and depth from pix. When
// meta.Header.Width/Height are set they must match pix. A zero BitDepth
// means both color type and depth come from pix, so a grayscale target
// must name its depth. Every option and
// metadata chunk is validated before the first byte is produced.
func EncodeContext(ctx context.Context, meta *Metadata, pix *PixelBuffer, opts *EncodeOptions) ([]byte, error) {
	o := DefaultEncodeOptions()
	if opts != nil {
		cp := *opts
		o = &cp
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := pix.Validate(); err != nil {
		return nil, err
	}
	if meta == nil {
		meta = &Metadata{}
	}

	h, err := headerFor(meta.Header, pix, o.Interlace)
	if err != nil {
		return nil, err
	}
	ancillary, err := metadataChunks(meta, h, o.Level)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "png: pixels validated",
		slog.Int("width", pix.Width),
		slog.Int("height", pix.Height),
		slog.String("from", fmt.Sprintf("%s/%d", pix.Layout, pix.Depth)),
		slog.String("to", fmt.Sprintf("%s/%d", h.ColorType, h.BitDepth)))

	bm, err := toTarget(meta, pix, h, o.Background)
	if err != nil {
		return nil, err
	}

	filtered, err := filterImage(h, bm, o)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "png: filtered", slog.Int("bytes", len(filtered)), slog.Bool("interlaced", h.Interlaced()))

	compressed, err := o.Compressor.Compress(filtered, o.Level)
	if err != nil {
		if !errors.Is(err, ErrCompressionFailure) {
			err = fmt.Errorf("%w: %w", ErrCompressionFailure, err)
		}
		return nil, fmt.Errorf("IDAT: %w", err)
	}
	slog.DebugContext(ctx, "png: compressed", slog.Int("bytes", len(compressed)), slog.Int("level", o.Level))

	chunks := make([]chunk.Chunk, 0, len(ancillary)+3)
	chunks = append(chunks, chunk.New(chunk.TypeIHDR, h.Bytes()))
	chunks = append(chunks, ancillary...)
	chunks = append(chunks, chunk.Split(chunk.TypeIDAT, compressed, o.ChunkSize)...)
	chunks = append(chunks, chunk.New(chunk.TypeIEND, nil))
	out, err := chunk.Serialize(chunks)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "png: chunks assembled", slog.Int("chunks", len(chunks)), slog.Int("bytes", len(out)))
	return out, nil
}

func headerFor(h chunk.Header, pix *PixelBuffer, interlaced bool) (chunk.Header, error) {
	if h.Width == 0 && h.Height == 0 {
		h.Width, h.Height = uint32(pix.Width), uint32(pix.Height)
	} else if int(h.Width) != pix.Width || int(h.Height) != pix.Height {
		return h, fmt.Errorf("%w: header is %dx%d, pixels are %dx%d", ErrInsufficientPixelData, h.Width, h.Height, pix.Width, pix.Height)
	}
	switch {
	case h.BitDepth == 0 && h.ColorType != chunk.Grayscale:
		return h, fmt.Errorf("%w: color type %s without a bit depth", ErrInvalidHeader, h.ColorType)
	case h.BitDepth == 0:
		h.ColorType = pix.Layout.ColorType()
		h.BitDepth = uint8(pix.Depth)
	}
	if interlaced {
		h.Interlace = chunk.InterlaceAdam7
	}
	return h, h.Validate()
}

// metadataChunks builds every ancillary chunk plus PLTE in the order PNG
// requires ahead of IDAT: gAMA, cHRM, sRGB, PLTE, tRNS, then text and
// retained unknown chunks.
func metadataChunks(meta *Metadata, h chunk.Header, level int) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	if meta.Gamma != nil {
		out = append(out, chunk.New(chunk.TypeGAMA, meta.Gamma.Bytes()))
	}
	if meta.Chromaticities != nil {
		out = append(out, chunk.New(chunk.TypeCHRM, meta.Chromaticities.Bytes()))
	}
	if meta.Intent != nil {
		out = append(out, chunk.New(chunk.TypeSRGB, []byte{byte(*meta.Intent)}))
	}

	switch {
	case h.ColorType == chunk.Indexed && len(meta.Palette) == 0:
		return nil, fmt.Errorf("%w: color type %s", ErrPaletteRequired, h.ColorType)
	case len(meta.Palette) > 0 && (h.ColorType == chunk.Grayscale || h.ColorType == chunk.GrayscaleAlpha):
		return nil, fmt.Errorf("%w: PLTE not allowed for %s", ErrMalformedChunk, h.ColorType)
	case len(meta.Palette) > 256:
		return nil, fmt.Errorf("%w: palette has %d entries", ErrMalformedChunk, len(meta.Palette))
	case h.ColorType == chunk.Indexed && len(meta.Palette) > 1<<h.BitDepth:
		return nil, fmt.Errorf("%w: palette has %d entries, bit depth %d allows %d", ErrMalformedChunk, len(meta.Palette), h.BitDepth, 1<<h.BitDepth)
	}
	if len(meta.Palette) > 0 {
		out = append(out, chunk.New(chunk.TypePLTE, meta.Palette.Bytes()))
	}

	if meta.Transparency != nil {
		if h.ColorType == chunk.Indexed && len(meta.Transparency.Alpha) > len(meta.Palette) {
			return nil, fmt.Errorf("%w: tRNS has %d entries for %d palette colors", ErrMalformedChunk, len(meta.Transparency.Alpha), len(meta.Palette))
		}
		data, err := meta.Transparency.Bytes(h.ColorType)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk.New(chunk.TypeTRNS, data))
	}

	for _, t := range meta.Text {
		c, err := t.Chunk(level)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	types := make([]chunk.Type, 0, len(meta.Unknown))
	for t := range meta.Unknown {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b chunk.Type) int { return slices.Compare(a[:], b[:]) })
	for _, t := range types {
		if !t.Valid() || t.IsCritical() || !t.SafeToCopy() {
			slog.Debug("png: dropping unsafe-to-copy chunk", slog.String("type", t.String()))
			continue
		}
		for _, data := range meta.Unknown[t] {
			out = append(out, chunk.New(t, data))
		}
	}
	return out, nil
}

// toTarget converts pix to the header's color type and bit depth.
func toTarget(meta *Metadata, pix *PixelBuffer, h chunk.Header, bg *RGBColor) (*bitmap.Bitmap, error) {
	target, err := bitmap.LayoutOf(h.ColorType)
	if err != nil {
		return nil, err
	}
	bm := pix.bitmap()
	if bm.Layout == Indexed && target != Indexed {
		return nil, fmt.Errorf("%w: indexed pixels to %s", ErrUnsupportedColorConversion, h.ColorType)
	}
	if target == Indexed {
		if bm.Depth > 8 {
			if bm, err = bm.Rescale(8); err != nil {
				return nil, err
			}
		}
		out, err := bitmap.Convert(bm, Indexed, bitmap.Options{Palette: meta.Palette, Transparency: meta.Transparency})
		if err != nil {
			return nil, err
		}
		// indices already fit the palette, which fits the bit depth
		out.Depth = int(h.BitDepth)
		return out, nil
	}
	out, err := bitmap.Convert(bm, target, bitmap.Options{Background: bg})
	if err != nil {
		return nil, err
	}
	return out.Rescale(int(h.BitDepth))
}

// filterImage packs and filters each row, pass by pass when interlaced.
func filterImage(h chunk.Header, bm *bitmap.Bitmap, o *EncodeOptions) ([]byte, error) {
	bpp := h.BytesPerPixel()
	if !h.Interlaced() {
		out, _, err := filter.FilterRows(bm.Pack(), h.RowBytes(bm.Width), bm.Height, bpp, o.Filter, o.Workers)
		return out, err
	}

	subs, err := interlace.Split(bm.Pix, bm.Width, bm.Height, bm.PixelBytes())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, ScanlineSize(h))
	for _, p := range interlace.Passes(bm.Width, bm.Height) {
		if p.Empty() {
			continue
		}
		sub := &bitmap.Bitmap{Width: p.Width, Height: p.Height, Layout: bm.Layout, Depth: bm.Depth, Pix: subs[p.Index]}
		rows, _, err := filter.FilterRows(sub.Pack(), h.RowBytes(p.Width), p.Height, bpp, o.Filter, o.Workers)
		if err != nil {
			return nil, fmt.Errorf("adam7 pass %d: %w", p.Index+1, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}
