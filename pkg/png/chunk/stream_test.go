package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader(ct ColorType, depth uint8) Header {
	return Header{Width: 4, Height: 3, BitDepth: depth, ColorType: ct}
}

func buildStream(t *testing.T, chunks ...Chunk) []byte {
	t.Helper()
	data, err := Serialize(chunks)
	require.NoError(t, err)
	return data
}

func minimalChunks(h Header) []Chunk {
	return []Chunk{
		New(TypeIHDR, h.Bytes()),
		New(TypeIDAT, []byte{1, 2, 3}),
		New(TypeIEND, nil),
	}
}

func TestParse_Minimal(t *testing.T) {
	h := testHeader(TruecolorAlpha, 8)
	s, err := Parse(buildStream(t, minimalChunks(h)...))
	require.NoError(t, err)

	assert.Equal(t, h, s.Header)
	assert.Equal(t, []byte{1, 2, 3}, s.Data)
	assert.Len(t, s.Chunks, 3)
	assert.Nil(t, s.Palette)
	assert.Nil(t, s.Transparency)
}

func TestParse_ConcatenatesIDAT(t *testing.T) {
	h := testHeader(Grayscale, 8)
	payload := makeSequence(0, 100)
	chunks := []Chunk{New(TypeIHDR, h.Bytes())}
	chunks = append(chunks, Split(TypeIDAT, payload, 7)...)
	chunks = append(chunks, New(TypeIEND, nil))

	s, err := Parse(buildStream(t, chunks...))
	require.NoError(t, err)
	assert.Equal(t, payload, s.Data)
	assert.Len(t, s.Chunks, 2+15)
}

func TestParse_IgnoresTrailingBytes(t *testing.T) {
	data := buildStream(t, minimalChunks(testHeader(Grayscale, 8))...)
	data = append(data, 0xDE, 0xAD)
	_, err := Parse(data)
	require.NoError(t, err)
}

func TestParse_Signature(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Short", []byte(Signature[:5])},
		{"Wrong", []byte("\x89PNG\r\n\x1a\x0b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}
}

func TestParse_CrcDetectsEveryBitFlip(t *testing.T) {
	h := testHeader(TruecolorAlpha, 8)
	data := buildStream(t, minimalChunks(h)...)

	// IHDR type+data spans offsets 12..12+4+13 (after signature and length).
	start, end := len(Signature)+4, len(Signature)+4+4+HeaderLength
	for i := start; i < end; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := bytes.Clone(data)
			corrupt[i] ^= 1 << bit
			_, err := Parse(corrupt)
			require.ErrorIs(t, err, ErrChunkCrcMismatch, "byte %d bit %d", i, bit)

			var crcErr *CrcError
			require.ErrorAs(t, err, &crcErr)
			assert.Equal(t, len(Signature), crcErr.Offset)
		}
	}
}

func TestParse_Truncated(t *testing.T) {
	data := buildStream(t, minimalChunks(testHeader(Grayscale, 8))...)

	t.Run("DeclaredLengthTooLong", func(t *testing.T) {
		_, err := Parse(data[:len(data)-12-1])
		assert.ErrorIs(t, err, ErrTruncatedChunk)
	})

	t.Run("PartialRecord", func(t *testing.T) {
		_, err := Parse(data[:len(data)-3])
		assert.ErrorIs(t, err, ErrTruncatedChunk)
	})
}

func TestParse_MissingChunks(t *testing.T) {
	gray := testHeader(Grayscale, 8)
	pal := testHeader(Indexed, 8)

	tests := []struct {
		name   string
		chunks []Chunk
		kind   Type
	}{
		{"NoChunks", nil, TypeIHDR},
		{"NoIDAT", []Chunk{New(TypeIHDR, gray.Bytes()), New(TypeIEND, nil)}, TypeIDAT},
		{"NoIEND", []Chunk{New(TypeIHDR, gray.Bytes()), New(TypeIDAT, []byte{0})}, TypeIEND},
		{"NoPLTE", []Chunk{New(TypeIHDR, pal.Bytes()), New(TypeIEND, nil)}, TypePLTE},
		{"NoPLTEWithData", []Chunk{New(TypeIHDR, pal.Bytes()), New(TypeIDAT, []byte{0}), New(TypeIEND, nil)}, TypePLTE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(buildStream(t, tt.chunks...))
			require.ErrorIs(t, err, ErrMissingChunk)

			var missing *MissingChunkError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.kind, missing.Kind)
		})
	}
}

func TestParse_ChunkOrder(t *testing.T) {
	pal := testHeader(Indexed, 8)
	plte := New(TypePLTE, Palette{{1, 2, 3}, {4, 5, 6}}.Bytes())
	idat := New(TypeIDAT, []byte{0})
	iend := New(TypeIEND, nil)
	ihdr := New(TypeIHDR, pal.Bytes())

	tests := []struct {
		name   string
		chunks []Chunk
	}{
		{"HeaderNotFirst", []Chunk{plte, ihdr, idat, iend}},
		{"DuplicateHeader", []Chunk{ihdr, ihdr, plte, idat, iend}},
		{"PaletteAfterData", []Chunk{ihdr, idat, plte, iend}},
		{"SplitData", []Chunk{ihdr, plte, idat, New(TypeTEXT, []byte("a\x00b")), idat, iend}},
		{"TransparencyBeforePalette", []Chunk{ihdr, New(TypeTRNS, []byte{0}), plte, idat, iend}},
		{"GammaAfterData", []Chunk{ihdr, plte, idat, New(TypeGAMA, Gamma(45455).Bytes()), iend}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(buildStream(t, tt.chunks...))
			assert.ErrorIs(t, err, ErrUnexpectedChunkOrder)
		})
	}
}

func TestParse_Ancillary(t *testing.T) {
	h := testHeader(Indexed, 2)
	plte := Palette{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}}
	intent := IntentPerceptual
	chrm := &Chromaticities{31270, 32900, 64000, 33000, 30000, 60000, 15000, 6000}
	itxt, err := Text{Kind: TextInternational, Keyword: "Title", Text: "héllo", Compressed: true, Language: "fr"}.Chunk(9)
	require.NoError(t, err)
	ztxt, err := Text{Kind: TextCompressed, Keyword: "Comment", Text: "zipped"}.Chunk(9)
	require.NoError(t, err)
	private, err := ParseType("prVt")
	require.NoError(t, err)

	data := buildStream(t,
		New(TypeIHDR, h.Bytes()),
		New(TypeGAMA, Gamma(45455).Bytes()),
		New(TypeCHRM, chrm.Bytes()),
		New(TypeSRGB, []byte{uint8(intent)}),
		New(TypePLTE, plte.Bytes()),
		New(TypeTRNS, []byte{0, 128}),
		New(TypeTEXT, []byte("Author\x00J\xe9r\xf4me")),
		ztxt,
		New(private, []byte{9, 9}),
		New(TypeIDAT, []byte{0}),
		itxt,
		New(TypeIEND, nil),
	)

	s, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, plte, s.Palette)
	require.NotNil(t, s.Transparency)
	assert.Equal(t, []uint8{0, 128}, s.Transparency.Alpha)
	assert.Equal(t, uint8(0xFF), s.Transparency.PaletteAlpha(2))
	require.NotNil(t, s.Gamma)
	assert.InDelta(t, 0.45455, s.Gamma.Float(), 1e-9)
	assert.Equal(t, chrm, s.Chromaticities)
	require.NotNil(t, s.Intent)
	assert.Equal(t, intent, *s.Intent)
	assert.Equal(t, [][]byte{{9, 9}}, s.Ancillary[private])

	require.Len(t, s.Text, 3)
	assert.Equal(t, Text{Kind: TextPlain, Keyword: "Author", Text: "Jérôme"}, s.Text[0])
	assert.Equal(t, Text{Kind: TextCompressed, Keyword: "Comment", Text: "zipped"}, s.Text[1])
	assert.Equal(t, Text{Kind: TextInternational, Keyword: "Title", Text: "héllo", Compressed: true, Language: "fr"}, s.Text[2])
}

func TestParse_UnknownCritical(t *testing.T) {
	h := testHeader(Grayscale, 8)
	crit, err := ParseType("CRIT")
	require.NoError(t, err)
	_, err = Parse(buildStream(t, New(TypeIHDR, h.Bytes()), New(crit, nil), New(TypeIDAT, []byte{0}), New(TypeIEND, nil)))
	assert.ErrorIs(t, err, ErrUnknownCritical)
}

func TestParse_MalformedPayloads(t *testing.T) {
	gray := testHeader(Grayscale, 8)
	pal2 := testHeader(Indexed, 1)
	tests := []struct {
		name   string
		header Header
		extra  []Chunk
	}{
		{"GrayTransparencyLength", gray, []Chunk{New(TypeTRNS, []byte{1})}},
		{"PaletteForGray", gray, []Chunk{New(TypePLTE, []byte{1, 2, 3})}},
		{"PaletteTooLargeForDepth", pal2, []Chunk{New(TypePLTE, make([]byte, 9))}},
		{"BadIntent", gray, []Chunk{New(TypeSRGB, []byte{7})}},
		{"EmptyKeyword", gray, []Chunk{New(TypeTEXT, []byte("\x00text"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := append([]Chunk{New(TypeIHDR, tt.header.Bytes())}, tt.extra...)
			chunks = append(chunks, New(TypeIDAT, []byte{0}), New(TypeIEND, nil))
			_, err := Parse(buildStream(t, chunks...))
			assert.ErrorIs(t, err, ErrMalformedChunk)
		})
	}
}

func TestHeader_Validate(t *testing.T) {
	legal := 0
	for ct := ColorType(0); ct <= 7; ct++ {
		for _, depth := range []uint8{0, 1, 2, 3, 4, 8, 16, 32} {
			h := Header{Width: 1, Height: 1, BitDepth: depth, ColorType: ct}
			if h.Validate() == nil {
				legal++
			}
		}
	}
	assert.Equal(t, 15, legal)

	bad := []Header{
		{Width: 0, Height: 1, BitDepth: 8, ColorType: Grayscale},
		{Width: 1, Height: 0, BitDepth: 8, ColorType: Grayscale},
		{Width: 1, Height: 1, BitDepth: 16, ColorType: Indexed},
		{Width: 1, Height: 1, BitDepth: 4, ColorType: Truecolor},
		{Width: 1, Height: 1, BitDepth: 8, ColorType: Grayscale, Compression: 1},
		{Width: 1, Height: 1, BitDepth: 8, ColorType: Grayscale, Filter: 1},
		{Width: 1, Height: 1, BitDepth: 8, ColorType: Grayscale, Interlace: 2},
		{Width: 1 << 31, Height: 1, BitDepth: 8, ColorType: Grayscale},
	}
	for _, h := range bad {
		assert.ErrorIs(t, h.Validate(), ErrInvalidHeader, "%+v", h)
	}

	_, err := ParseHeader(make([]byte, 12))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestHeader_Geometry(t *testing.T) {
	tests := []struct {
		ct       ColorType
		depth    uint8
		width    int
		bpp      int
		rowBytes int
	}{
		{Grayscale, 1, 8, 1, 1},
		{Grayscale, 1, 9, 1, 2},
		{Indexed, 4, 5, 1, 3},
		{Grayscale, 16, 3, 2, 6},
		{Truecolor, 8, 10, 3, 30},
		{GrayscaleAlpha, 16, 2, 4, 8},
		{TruecolorAlpha, 16, 1, 8, 8},
	}
	for _, tt := range tests {
		h := Header{Width: uint32(tt.width), Height: 1, BitDepth: tt.depth, ColorType: tt.ct}
		assert.Equal(t, tt.bpp, h.BytesPerPixel(), "%s/%d", tt.ct, tt.depth)
		assert.Equal(t, tt.rowBytes, h.RowBytes(tt.width), "%s/%d", tt.ct, tt.depth)
	}
}

func TestSplit(t *testing.T) {
	assert.Len(t, Split(TypeIDAT, nil, 10), 1)

	data := makeSequence(0, 25)
	chunks := Split(TypeIDAT, data, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, uint32(10), chunks[0].Length())
	assert.Equal(t, uint32(5), chunks[2].Length())
	for _, c := range chunks {
		assert.True(t, c.Valid())
	}
	assert.Len(t, Split(TypeIDAT, data, 0), 1)
}

func TestType(t *testing.T) {
	assert.True(t, TypeIHDR.IsCritical())
	assert.False(t, TypeTEXT.IsCritical())
	assert.True(t, TypeTEXT.SafeToCopy())
	assert.False(t, TypeIHDR.SafeToCopy())
	assert.False(t, Type{'v', 'p', 'A', 'G'}.SafeToCopy())
	assert.Equal(t, "gAMA", TypeGAMA.String())

	_, err := ParseType("ab1d")
	assert.ErrorIs(t, err, ErrMalformedChunk)
	_, err = ParseType("abc")
	assert.ErrorIs(t, err, ErrMalformedChunk)

	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("zTXt")))
	assert.Equal(t, TypeZTXT, typ)
}

func TestTransparency_Bytes(t *testing.T) {
	tests := []struct {
		ct   ColorType
		trns *Transparency
	}{
		{Grayscale, &Transparency{Gray: 0x1234}},
		{Truecolor, &Transparency{RGB: [3]uint16{1, 0x200, 0xFFFF}}},
		{Indexed, &Transparency{Alpha: []uint8{0, 10, 255}}},
	}
	for _, tt := range tests {
		t.Run(tt.ct.String(), func(t *testing.T) {
			b, err := tt.trns.Bytes(tt.ct)
			require.NoError(t, err)
			got, err := ParseTransparency(b, tt.ct, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.trns, got)
		})
	}

	_, err := (&Transparency{}).Bytes(TruecolorAlpha)
	assert.ErrorIs(t, err, ErrMalformedChunk)
}

func TestText_NotLatin1(t *testing.T) {
	_, err := Text{Kind: TextPlain, Keyword: "k", Text: "日本"}.Chunk(6)
	assert.ErrorIs(t, err, ErrMalformedChunk)

	c, err := Text{Kind: TextInternational, Keyword: "k", Text: "日本"}.Chunk(6)
	require.NoError(t, err)
	txt, err := ParseText(c.Type, c.Data)
	require.NoError(t, err)
	assert.Equal(t, "日本", txt.Text)
}

func TestText_EmbeddedNUL(t *testing.T) {
	tests := []struct {
		name string
		txt  Text
	}{
		{"PlainText", Text{Kind: TextPlain, Keyword: "k", Text: "a\x00b"}},
		{"CompressedText", Text{Kind: TextCompressed, Keyword: "k", Text: "a\x00b"}},
		{"InternationalText", Text{Kind: TextInternational, Keyword: "k", Text: "a\x00b"}},
		{"Language", Text{Kind: TextInternational, Keyword: "k", Text: "t", Language: "en\x00us"}},
		{"TranslatedKeyword", Text{Kind: TextInternational, Keyword: "k", Text: "t", TranslatedKeyword: "x\x00y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.txt.Chunk(6)
			assert.ErrorIs(t, err, ErrMalformedChunk)
		})
	}

	c, err := Text{Kind: TextInternational, Keyword: "k", Text: "t", Language: "en-us", TranslatedKeyword: "x"}.Chunk(6)
	require.NoError(t, err)
	txt, err := ParseText(c.Type, c.Data)
	require.NoError(t, err)
	assert.Equal(t, "en-us", txt.Language)
	assert.Equal(t, "x", txt.TranslatedKeyword)
}

func TestGammaFromFloat(t *testing.T) {
	assert.Equal(t, Gamma(45455), GammaFromFloat(1/2.2))
	assert.Equal(t, Gamma(100000), GammaFromFloat(1))
}

func makeSequence(start byte, n int) []byte {
	res := make([]byte, n)
	val := start
	for i := range res {
		res[i] = val
		val++
	}
	return res
}
