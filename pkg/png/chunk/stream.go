package chunk

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
)

// Stream is a parsed PNG: structured metadata chunks, the concatenated IDAT
// payload, and the chunk list in file order.
type Stream struct {
	Header         Header
	Palette        Palette
	Transparency   *Transparency
	Gamma          *Gamma
	Chromaticities *Chromaticities
	Intent         *RenderingIntent
	Text           []Text
	// Ancillary holds unrecognized ancillary chunk payloads by type code.
	Ancillary map[Type][][]byte
	// Data is every IDAT payload concatenated in stream order.
	Data   []byte
	Chunks []Chunk
}

// parser tracks where in the chunk sequence we are.
type parser struct {
	s         *Stream
	seenIHDR  bool
	seenIDAT  bool
	idatEnded bool
	seenIEND  bool
}

// Parse verifies the signature and reads chunks through IEND. Bytes after
// IEND are ignored. Chunk data slices alias data.
func Parse(data []byte) (*Stream, error) {
	if len(data) < len(Signature) || string(data[:len(Signature)]) != Signature {
		return nil, ErrSignatureMismatch
	}
	r := NewByteReader(data[len(Signature):])
	p := &parser{s: &Stream{}}

	for !p.seenIEND && r.Len() > 0 {
		off := len(Signature) + r.Offset()
		c, err := ReadChunk(r, off)
		if err != nil {
			return nil, err
		}
		p.s.Chunks = append(p.s.Chunks, c)
		if err := p.accept(c); err != nil {
			return nil, fmt.Errorf("%s chunk at offset %d: %w", c.Type, off, err)
		}
	}

	s := p.s
	switch {
	case !p.seenIHDR:
		return nil, &MissingChunkError{Kind: TypeIHDR}
	case s.Header.ColorType == Indexed && s.Palette == nil:
		return nil, &MissingChunkError{Kind: TypePLTE}
	case !p.seenIDAT:
		return nil, &MissingChunkError{Kind: TypeIDAT}
	case !p.seenIEND:
		return nil, &MissingChunkError{Kind: TypeIEND}
	}
	slog.Debug("parsed png chunk stream",
		slog.Int("chunks", len(s.Chunks)),
		slog.Int("idatBytes", len(s.Data)),
		slog.String("colorType", s.Header.ColorType.String()))
	return s, nil
}

// ReadChunk reads one length/type/data/crc record. off is the absolute
// position used in error messages.
func ReadChunk(r *ByteReader, off int) (Chunk, error) {
	if r.Len() < 12 {
		return Chunk{}, fmt.Errorf("%w: %d bytes left at offset %d", ErrTruncatedChunk, r.Len(), off)
	}
	length, _ := r.ReadUint32()
	raw, _ := r.ReadBytes(4)
	var t Type
	copy(t[:], raw)
	if length > MaxLength {
		return Chunk{}, fmt.Errorf("%w: %s length %d exceeds 2^31-1", ErrMalformedChunk, t, length)
	}
	if int64(length)+4 > int64(r.Len()) {
		return Chunk{}, fmt.Errorf("%w: %s declares %d bytes, %d remain", ErrTruncatedChunk, t, length, r.Len()-4)
	}
	data, _ := r.ReadBytes(int(length))
	stored, _ := r.ReadUint32()
	if got := Checksum(t, data); got != stored {
		return Chunk{}, &CrcError{Type: t, Offset: off, Want: stored, Got: got}
	}
	if !t.Valid() {
		return Chunk{}, fmt.Errorf("%w: type % X at offset %d", ErrMalformedChunk, raw, off)
	}
	return Chunk{Type: t, Data: data, CRC: stored}, nil
}

func (p *parser) accept(c Chunk) error {
	s := p.s
	if !p.seenIHDR && c.Type != TypeIHDR {
		return fmt.Errorf("%w: IHDR must be first", ErrUnexpectedChunkOrder)
	}
	if p.seenIDAT && c.Type != TypeIDAT {
		p.idatEnded = true
	}

	switch c.Type {
	case TypeIHDR:
		if p.seenIHDR {
			return fmt.Errorf("%w: duplicate IHDR", ErrUnexpectedChunkOrder)
		}
		h, err := ParseHeader(c.Data)
		if err != nil {
			return err
		}
		s.Header = h
		p.seenIHDR = true

	case TypePLTE:
		switch {
		case s.Palette != nil:
			return fmt.Errorf("%w: duplicate PLTE", ErrUnexpectedChunkOrder)
		case p.seenIDAT:
			return fmt.Errorf("%w: PLTE after IDAT", ErrUnexpectedChunkOrder)
		case s.Transparency != nil:
			return fmt.Errorf("%w: PLTE after tRNS", ErrUnexpectedChunkOrder)
		case !(s.Header.ColorType == Indexed || s.Header.ColorType == Truecolor || s.Header.ColorType == TruecolorAlpha):
			return fmt.Errorf("%w: PLTE not allowed for %s", ErrMalformedChunk, s.Header.ColorType)
		}
		pal, err := ParsePalette(c.Data)
		if err != nil {
			return err
		}
		if s.Header.ColorType == Indexed && len(pal) > 1<<s.Header.BitDepth {
			return fmt.Errorf("%w: %d palette entries for bit depth %d", ErrMalformedChunk, len(pal), s.Header.BitDepth)
		}
		s.Palette = pal

	case TypeIDAT:
		if p.idatEnded {
			return fmt.Errorf("%w: IDAT chunks are not consecutive", ErrUnexpectedChunkOrder)
		}
		p.seenIDAT = true
		s.Data = append(s.Data, c.Data...)

	case TypeIEND:
		if len(c.Data) != 0 {
			return fmt.Errorf("%w: IEND carries %d bytes", ErrMalformedChunk, len(c.Data))
		}
		p.seenIEND = true

	case TypeTRNS:
		switch {
		case s.Transparency != nil:
			return fmt.Errorf("%w: duplicate tRNS", ErrUnexpectedChunkOrder)
		case p.seenIDAT:
			return fmt.Errorf("%w: tRNS after IDAT", ErrUnexpectedChunkOrder)
		case s.Header.ColorType == Indexed && s.Palette == nil:
			return fmt.Errorf("%w: tRNS before PLTE", ErrUnexpectedChunkOrder)
		}
		trns, err := ParseTransparency(c.Data, s.Header.ColorType, len(s.Palette))
		if err != nil {
			return err
		}
		s.Transparency = trns

	case TypeGAMA:
		if err := p.beforeData(s.Gamma != nil); err != nil {
			return err
		}
		g, err := ParseGamma(c.Data)
		if err != nil {
			return err
		}
		s.Gamma = &g

	case TypeCHRM:
		if err := p.beforeData(s.Chromaticities != nil); err != nil {
			return err
		}
		chrm, err := ParseChromaticities(c.Data)
		if err != nil {
			return err
		}
		s.Chromaticities = chrm

	case TypeSRGB:
		if err := p.beforeData(s.Intent != nil); err != nil {
			return err
		}
		intent, err := ParseRenderingIntent(c.Data)
		if err != nil {
			return err
		}
		s.Intent = &intent

	case TypeTEXT, TypeZTXT, TypeITXT:
		txt, err := ParseText(c.Type, c.Data)
		if err != nil {
			return err
		}
		s.Text = append(s.Text, txt)

	default:
		if c.Type.IsCritical() {
			return ErrUnknownCritical
		}
		if s.Ancillary == nil {
			s.Ancillary = make(map[Type][][]byte)
		}
		s.Ancillary[c.Type] = append(s.Ancillary[c.Type], c.Data)
		slog.Debug("retaining unknown ancillary chunk", slog.String("type", c.Type.String()), slog.Int("length", len(c.Data)))
	}
	return nil
}

// beforeData enforces the colorspace chunks' placement: once, ahead of IDAT.
func (p *parser) beforeData(dup bool) error {
	if dup {
		return fmt.Errorf("%w: duplicate chunk", ErrUnexpectedChunkOrder)
	}
	if p.seenIDAT {
		return fmt.Errorf("%w: must precede IDAT", ErrUnexpectedChunkOrder)
	}
	return nil
}

// Split cuts data into chunks of at most size bytes. It always returns at
// least one chunk so an empty payload still produces a record.
func Split(t Type, data []byte, size int) []Chunk {
	if size <= 0 {
		size = DefaultIDATSize
	}
	if len(data) == 0 {
		return []Chunk{New(t, nil)}
	}
	chunks := make([]Chunk, 0, (len(data)+size-1)/size)
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, New(t, data[:n:n]))
		data = data[n:]
	}
	return chunks
}

// Writer serializes a chunk stream.
type Writer struct {
	w *ByteWriter
}

// NewWriter creates a new chunk writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: NewByteWriter(w)}
}

// WriteSignature writes the 8-byte PNG signature.
func (c *Writer) WriteSignature() error {
	return c.w.WriteBytes([]byte(Signature))
}

// WriteChunk writes length, type, data and the chunk's CRC.
func (c *Writer) WriteChunk(ch Chunk) error {
	if len(ch.Data) > MaxLength {
		return fmt.Errorf("%w: %s length %d exceeds 2^31-1", ErrMalformedChunk, ch.Type, len(ch.Data))
	}
	if err := c.w.WriteUint32(ch.Length()); err != nil {
		return err
	}
	if err := c.w.WriteBytes(ch.Type[:]); err != nil {
		return err
	}
	if err := c.w.WriteBytes(ch.Data); err != nil {
		return err
	}
	return c.w.WriteUint32(ch.CRC)
}

// Flush flushes the buffer
func (c *Writer) Flush() error {
	return c.w.Flush()
}

// Serialize writes the signature followed by every chunk.
func Serialize(chunks []Chunk) ([]byte, error) {
	size := len(Signature)
	for _, ch := range chunks {
		size += 12 + len(ch.Data)
	}
	var buf bytes.Buffer
	buf.Grow(size)

	cw := NewWriter(&buf)
	if err := cw.WriteSignature(); err != nil {
		return nil, err
	}
	for _, ch := range chunks {
		if err := cw.WriteChunk(ch); err != nil {
			return nil, err
		}
	}
	if err := cw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
