package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jpfielding/png.go/pkg/compress/zlib"
)

// GammaDivisor scales gAMA and cHRM integers to their real values.
const GammaDivisor = 100000

// RGB is one palette entry.
type RGB struct {
	R, G, B uint8
}

// Palette is the PLTE chunk: at most 256 entries.
type Palette []RGB

// ParsePalette decodes PLTE data.
func ParsePalette(data []byte) (Palette, error) {
	if len(data) == 0 || len(data)%3 != 0 || len(data) > 3*256 {
		return nil, fmt.Errorf("%w: PLTE length %d", ErrMalformedChunk, len(data))
	}
	p := make(Palette, len(data)/3)
	for i := range p {
		p[i] = RGB{data[3*i], data[3*i+1], data[3*i+2]}
	}
	return p, nil
}

// Bytes encodes PLTE data.
func (p Palette) Bytes() []byte {
	b := make([]byte, 0, 3*len(p))
	for _, c := range p {
		b = append(b, c.R, c.G, c.B)
	}
	return b
}

// Transparency is the tRNS chunk. Which field is meaningful depends on the
// color type: Gray for grayscale, RGB for truecolor, Alpha for palette.
type Transparency struct {
	Gray  uint16    `json:"gray,omitempty"`
	RGB   [3]uint16 `json:"rgb,omitempty"`
	Alpha []uint8   `json:"alpha,omitempty"`
}

// ParseTransparency decodes tRNS data for the given color type.
func ParseTransparency(data []byte, ct ColorType, paletteLen int) (*Transparency, error) {
	switch ct {
	case Grayscale:
		if len(data) != 2 {
			return nil, fmt.Errorf("%w: tRNS length %d for %s", ErrMalformedChunk, len(data), ct)
		}
		return &Transparency{Gray: binary.BigEndian.Uint16(data)}, nil
	case Truecolor:
		if len(data) != 6 {
			return nil, fmt.Errorf("%w: tRNS length %d for %s", ErrMalformedChunk, len(data), ct)
		}
		return &Transparency{RGB: [3]uint16{
			binary.BigEndian.Uint16(data[0:2]),
			binary.BigEndian.Uint16(data[2:4]),
			binary.BigEndian.Uint16(data[4:6]),
		}}, nil
	case Indexed:
		if len(data) > paletteLen {
			return nil, fmt.Errorf("%w: tRNS has %d entries for %d palette colors", ErrMalformedChunk, len(data), paletteLen)
		}
		return &Transparency{Alpha: bytes.Clone(data)}, nil
	default:
		return nil, fmt.Errorf("%w: tRNS not allowed for %s", ErrMalformedChunk, ct)
	}
}

// Bytes encodes tRNS data for the given color type.
func (t *Transparency) Bytes(ct ColorType) ([]byte, error) {
	switch ct {
	case Grayscale:
		return binary.BigEndian.AppendUint16(nil, t.Gray), nil
	case Truecolor:
		b := make([]byte, 0, 6)
		for _, v := range t.RGB {
			b = binary.BigEndian.AppendUint16(b, v)
		}
		return b, nil
	case Indexed:
		return bytes.Clone(t.Alpha), nil
	default:
		return nil, fmt.Errorf("%w: tRNS not allowed for %s", ErrMalformedChunk, ct)
	}
}

// PaletteAlpha returns the alpha for a palette index, 255 when unlisted.
func (t *Transparency) PaletteAlpha(i int) uint8 {
	if t == nil || i >= len(t.Alpha) {
		return 0xFF
	}
	return t.Alpha[i]
}

// Gamma is the gAMA value times 100000.
type Gamma uint32

// ParseGamma decodes gAMA data.
func ParseGamma(data []byte) (Gamma, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("%w: gAMA length %d", ErrMalformedChunk, len(data))
	}
	return Gamma(binary.BigEndian.Uint32(data)), nil
}

// GammaFromFloat rounds g*100000 half-up.
func GammaFromFloat(g float64) Gamma {
	return Gamma(math.Floor(g*GammaDivisor + 0.5))
}

// Float returns value/100000.
func (g Gamma) Float() float64 {
	return float64(g) / GammaDivisor
}

// Bytes encodes gAMA data.
func (g Gamma) Bytes() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(g))
}

// Chromaticities is the cHRM chunk; every value is scaled by 100000.
type Chromaticities struct {
	WhiteX, WhiteY uint32
	RedX, RedY     uint32
	GreenX, GreenY uint32
	BlueX, BlueY   uint32
}

// ParseChromaticities decodes cHRM data.
func ParseChromaticities(data []byte) (*Chromaticities, error) {
	if len(data) != 32 {
		return nil, fmt.Errorf("%w: cHRM length %d", ErrMalformedChunk, len(data))
	}
	v := func(i int) uint32 { return binary.BigEndian.Uint32(data[4*i:]) }
	return &Chromaticities{
		WhiteX: v(0), WhiteY: v(1),
		RedX: v(2), RedY: v(3),
		GreenX: v(4), GreenY: v(5),
		BlueX: v(6), BlueY: v(7),
	}, nil
}

// Bytes encodes cHRM data.
func (c *Chromaticities) Bytes() []byte {
	b := make([]byte, 0, 32)
	for _, v := range []uint32{c.WhiteX, c.WhiteY, c.RedX, c.RedY, c.GreenX, c.GreenY, c.BlueX, c.BlueY} {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b
}

// RenderingIntent is the sRGB chunk payload.
type RenderingIntent uint8

const (
	IntentPerceptual RenderingIntent = iota
	IntentRelativeColorimetric
	IntentSaturation
	IntentAbsoluteColorimetric
)

// String returns the intent name
func (r RenderingIntent) String() string {
	switch r {
	case IntentPerceptual:
		return "perceptual"
	case IntentRelativeColorimetric:
		return "relative-colorimetric"
	case IntentSaturation:
		return "saturation"
	case IntentAbsoluteColorimetric:
		return "absolute-colorimetric"
	default:
		return fmt.Sprintf("intent(%d)", uint8(r))
	}
}

// ParseRenderingIntent decodes sRGB data.
func ParseRenderingIntent(data []byte) (RenderingIntent, error) {
	if len(data) != 1 || data[0] > uint8(IntentAbsoluteColorimetric) {
		return 0, fmt.Errorf("%w: sRGB data % X", ErrMalformedChunk, data)
	}
	return RenderingIntent(data[0]), nil
}

// TextKind selects the chunk a Text entry is stored in.
type TextKind uint8

const (
	TextPlain         TextKind = iota // tEXt, Latin-1
	TextCompressed                    // zTXt, Latin-1, zlib
	TextInternational                 // iTXt, UTF-8
)

// Type returns the chunk type for the kind.
func (k TextKind) Type() Type {
	switch k {
	case TextCompressed:
		return TypeZTXT
	case TextInternational:
		return TypeITXT
	default:
		return TypeTEXT
	}
}

// Text is one decoded tEXt, zTXt or iTXt entry.
type Text struct {
	Kind              TextKind `json:"kind"`
	Keyword           string   `json:"keyword"`
	Text              string   `json:"text"`
	Compressed        bool     `json:"compressed,omitempty"` // iTXt only
	Language          string   `json:"language,omitempty"`
	TranslatedKeyword string   `json:"translatedKeyword,omitempty"`
}

// maxTextInflate bounds zTXt/iTXt inflation.
const maxTextInflate = 8 << 20

// ParseText decodes a text chunk of type t.
func ParseText(t Type, data []byte) (Text, error) {
	sep := bytes.IndexByte(data, 0)
	if sep < 1 || sep > 79 {
		return Text{}, fmt.Errorf("%w: %s keyword length", ErrMalformedChunk, t)
	}
	txt := Text{Keyword: fromLatin1(data[:sep])}
	rest := data[sep+1:]

	switch t {
	case TypeTEXT:
		txt.Kind = TextPlain
		txt.Text = fromLatin1(rest)
	case TypeZTXT:
		txt.Kind = TextCompressed
		if len(rest) < 1 || rest[0] != 0 {
			return Text{}, fmt.Errorf("%w: zTXt compression method", ErrMalformedChunk)
		}
		raw, err := zlib.Decompress(rest[1:], maxTextInflate)
		if err != nil {
			return Text{}, fmt.Errorf("zTXt %q: %w", txt.Keyword, err)
		}
		txt.Text = fromLatin1(raw)
	case TypeITXT:
		txt.Kind = TextInternational
		if len(rest) < 2 {
			return Text{}, fmt.Errorf("%w: iTXt too short", ErrMalformedChunk)
		}
		txt.Compressed = rest[0] == 1
		if rest[0] > 1 || rest[1] != 0 {
			return Text{}, fmt.Errorf("%w: iTXt compression flag %d method %d", ErrMalformedChunk, rest[0], rest[1])
		}
		rest = rest[2:]
		lang, rest, ok := bytes.Cut(rest, []byte{0})
		if !ok {
			return Text{}, fmt.Errorf("%w: iTXt language tag", ErrMalformedChunk)
		}
		trans, rest, ok := bytes.Cut(rest, []byte{0})
		if !ok {
			return Text{}, fmt.Errorf("%w: iTXt translated keyword", ErrMalformedChunk)
		}
		txt.Language = string(lang)
		txt.TranslatedKeyword = string(trans)
		if txt.Compressed {
			raw, err := zlib.Decompress(rest, maxTextInflate)
			if err != nil {
				return Text{}, fmt.Errorf("iTXt %q: %w", txt.Keyword, err)
			}
			rest = raw
		}
		if !utf8.Valid(rest) {
			return Text{}, fmt.Errorf("%w: iTXt text is not UTF-8", ErrMalformedChunk)
		}
		txt.Text = string(rest)
	default:
		return Text{}, fmt.Errorf("%w: %s is not a text chunk", ErrMalformedChunk, t)
	}
	return txt, nil
}

// Chunk encodes the entry; level applies to zTXt and compressed iTXt.
func (t Text) Chunk(level int) (Chunk, error) {
	kw, err := toLatin1(t.Keyword)
	if err != nil {
		return Chunk{}, err
	}
	if len(kw) < 1 || len(kw) > 79 || bytes.IndexByte(kw, 0) >= 0 {
		return Chunk{}, fmt.Errorf("%w: keyword %q", ErrMalformedChunk, t.Keyword)
	}
	for _, f := range [...]struct{ name, v string }{
		{"text", t.Text},
		{"language", t.Language},
		{"translated keyword", t.TranslatedKeyword},
	} {
		if strings.IndexByte(f.v, 0) >= 0 {
			return Chunk{}, fmt.Errorf("%w: %s of %q holds a NUL", ErrMalformedChunk, f.name, t.Keyword)
		}
	}
	var b bytes.Buffer
	b.Write(kw)
	b.WriteByte(0)
	switch t.Kind {
	case TextPlain, TextCompressed:
		body, err := toLatin1(t.Text)
		if err != nil {
			return Chunk{}, err
		}
		if t.Kind == TextCompressed {
			z, err := zlib.Compress(body, level)
			if err != nil {
				return Chunk{}, err
			}
			b.WriteByte(0)
			body = z
		}
		b.Write(body)
	case TextInternational:
		body := []byte(t.Text)
		if t.Compressed {
			z, err := zlib.Compress(body, level)
			if err != nil {
				return Chunk{}, err
			}
			body = z
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
		b.WriteByte(0)
		b.WriteString(t.Language)
		b.WriteByte(0)
		b.WriteString(t.TranslatedKeyword)
		b.WriteByte(0)
		b.Write(body)
	default:
		return Chunk{}, fmt.Errorf("%w: text kind %d", ErrMalformedChunk, t.Kind)
	}
	return New(t.Kind.Type(), b.Bytes()), nil
}

func fromLatin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

func toLatin1(s string) ([]byte, error) {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return nil, fmt.Errorf("%w: %q is not Latin-1", ErrMalformedChunk, r)
		}
		b = append(b, byte(r))
	}
	return b, nil
}
