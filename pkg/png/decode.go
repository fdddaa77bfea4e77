package png

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpfielding/png.go/pkg/png/bitmap"
	"github.com/jpfielding/png.go/pkg/png/chunk"
	"github.com/jpfielding/png.go/pkg/png/filter"
	"github.com/jpfielding/png.go/pkg/png/interlace"
)

const maxInflateRatio = 1032

// Decode parses a complete PNG stream. Nil opts uses DefaultDecodeOptions.
func Decode(data []byte, opts *DecodeOptions) (*Metadata, *PixelBuffer, error) {
	return DecodeContext(context.Background(), data, opts)
}

// DecodeContext is Decode with ctx carried to the logger. Decoding is all or
// nothing: on error neither metadata nor pixels are returned.
func DecodeContext(ctx context.Context, data []byte, opts *DecodeOptions) (*Metadata, *PixelBuffer, error) {
	if opts == nil {
		opts = DefaultDecodeOptions()
	}
	comp := opts.Compressor
	if comp == nil {
		comp = DefaultDecodeOptions().Compressor
	}

	s, err := chunk.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	h := s.Header
	slog.DebugContext(ctx, "png: chunks parsed",
		slog.Int("chunks", len(s.Chunks)),
		slog.Int("width", int(h.Width)),
		slog.Int("height", int(h.Height)),
		slog.String("colorType", h.ColorType.String()),
		slog.Int("bitDepth", int(h.BitDepth)),
		slog.Bool("interlaced", h.Interlaced()),
		slog.Int("idatBytes", len(s.Data)))

	meta := metadataOf(s, opts.KeepUnknown)

	// DEFLATE cannot expand past ~1032:1 and a 1-bit image packs 8 pixels
	// per byte; anything larger cannot be backed by this IDAT payload.
	if pixels := uint64(h.Width) * uint64(h.Height); pixels > uint64(len(s.Data))*maxInflateRatio*8 {
		return nil, nil, fmt.Errorf("%w: %dx%d image from %d IDAT bytes", ErrInsufficientPixelData, h.Width, h.Height, len(s.Data))
	}
	want := ScanlineSize(h)
	raw, err := comp.Decompress(s.Data, want)
	if err != nil {
		if !errors.Is(err, ErrDecompressionFailure) {
			err = fmt.Errorf("%w: %w", ErrDecompressionFailure, err)
		}
		return nil, nil, fmt.Errorf("IDAT: %w", err)
	}
	if len(raw) < want {
		return nil, nil, fmt.Errorf("%w: inflated %d bytes, image needs %d", ErrInsufficientPixelData, len(raw), want)
	}
	slog.DebugContext(ctx, "png: decompressed", slog.Int("bytes", len(raw)))

	bm, err := unfilter(h, raw)
	if err != nil {
		return nil, nil, err
	}

	out, err := bitmap.ToRGBA(bm, bitmap.Options{Palette: meta.Palette, Transparency: meta.Transparency})
	if err != nil {
		return nil, nil, err
	}
	if opts.Rescale8 && out.Depth > 8 {
		if out, err = out.Rescale(8); err != nil {
			return nil, nil, err
		}
	}
	slog.DebugContext(ctx, "png: color normalized", slog.String("layout", out.Layout.String()), slog.Int("depth", out.Depth))
	return meta, (*PixelBuffer)(out), nil
}

// ScanlineSize is the inflated IDAT length for h: a filter byte plus the
// packed row for every row of every non-empty pass.
func ScanlineSize(h chunk.Header) int {
	if !h.Interlaced() {
		return int(h.Height) * (h.RowBytes(int(h.Width)) + 1)
	}
	n := 0
	for _, p := range interlace.Passes(int(h.Width), int(h.Height)) {
		if p.Empty() {
			continue
		}
		n += p.Height * (h.RowBytes(p.Width) + 1)
	}
	return n
}

// unfilter reverses the row filters and unpacks samples, scattering each
// Adam7 pass into place for interlaced images.
func unfilter(h chunk.Header, raw []byte) (*bitmap.Bitmap, error) {
	layout, err := bitmap.LayoutOf(h.ColorType)
	if err != nil {
		return nil, err
	}
	width, height, depth := int(h.Width), int(h.Height), int(h.BitDepth)
	bpp := h.BytesPerPixel()

	if !h.Interlaced() {
		rows, err := filter.UnfilterRows(raw, h.RowBytes(width), height, bpp)
		if err != nil {
			return nil, err
		}
		return bitmap.Unpack(rows, width, height, layout, depth)
	}

	full := bitmap.New(width, height, layout, depth)
	off := 0
	for _, p := range interlace.Passes(width, height) {
		if p.Empty() {
			continue
		}
		n := p.Height * (h.RowBytes(p.Width) + 1)
		rows, err := filter.UnfilterRows(raw[off:off+n], h.RowBytes(p.Width), p.Height, bpp)
		if err != nil {
			return nil, fmt.Errorf("adam7 pass %d: %w", p.Index+1, err)
		}
		sub, err := bitmap.Unpack(rows, p.Width, p.Height, layout, depth)
		if err != nil {
			return nil, fmt.Errorf("adam7 pass %d: %w", p.Index+1, err)
		}
		interlace.Scatter(full.Pix, sub.Pix, p, width, full.PixelBytes())
		off += n
	}
	return full, nil
}

func metadataOf(s *chunk.Stream, keepUnknown bool) *Metadata {
	m := &Metadata{
		Header:         s.Header,
		Palette:        s.Palette,
		Transparency:   s.Transparency,
		Gamma:          s.Gamma,
		Chromaticities: s.Chromaticities,
		Intent:         s.Intent,
		Text:           s.Text,
	}
	if keepUnknown && len(s.Ancillary) > 0 {
		m.Unknown = s.Ancillary
	}
	return m
}

// ChunkInfo summarizes one chunk for Inspect.
type ChunkInfo struct {
	Type   chunk.Type `json:"type"`
	Length uint32     `json:"length"`
	CRC    uint32     `json:"crc"`
}

// Report is what Inspect learns without decoding pixels.
type Report struct {
	Metadata      *Metadata        `json:"metadata"`
	Chunks        []ChunkInfo      `json:"chunks"`
	Passes        []interlace.Pass `json:"passes,omitempty"`
	CompressedLen int              `json:"compressedLength"`
	ScanlineLen   int              `json:"scanlineLength"`
}

// Inspect parses the chunk stream and reports metadata, the chunk table and,
// for interlaced images, the Adam7 pass geometry.
func Inspect(data []byte) (*Report, error) {
	s, err := chunk.Parse(data)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Metadata:      metadataOf(s, true),
		CompressedLen: len(s.Data),
		ScanlineLen:   ScanlineSize(s.Header),
	}
	for _, c := range s.Chunks {
		r.Chunks = append(r.Chunks, ChunkInfo{Type: c.Type, Length: c.Length(), CRC: c.CRC})
	}
	if s.Header.Interlaced() {
		r.Passes = interlace.Passes(int(s.Header.Width), int(s.Header.Height))
	}
	return r, nil
}
