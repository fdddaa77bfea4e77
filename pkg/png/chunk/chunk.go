// Package chunk implements the PNG chunk container: the 8-byte signature
// followed by length-prefixed, type-tagged, CRC-protected chunks. It parses a
// fully buffered stream into structured metadata plus the concatenated IDAT
// payload, and serializes chunks back to bytes.
package chunk

import (
	"errors"
	"fmt"

	"github.com/jpfielding/png.go/pkg/png/crc"
)

// Signature is the fixed 8-byte PNG file signature.
const Signature = "\x89PNG\r\n\x1a\n"

// MaxLength is the largest chunk length PNG permits (2^31-1).
const MaxLength = 0x7fffffff

// DefaultIDATSize is the IDAT split size used by the encoder.
const DefaultIDATSize = 32 * 1024

// Common errors
var (
	ErrSignatureMismatch    = errors.New("png: signature mismatch")
	ErrTruncatedChunk       = errors.New("png: truncated chunk")
	ErrChunkCrcMismatch     = errors.New("png: chunk crc mismatch")
	ErrUnexpectedChunkOrder = errors.New("png: unexpected chunk order")
	ErrMissingChunk         = errors.New("png: missing chunk")
	ErrInvalidHeader        = errors.New("png: invalid header")
	ErrMalformedChunk       = errors.New("png: malformed chunk")
	ErrUnknownCritical      = errors.New("png: unknown critical chunk")
)

// Type is a 4-byte chunk type code.
type Type [4]byte

// Standard chunk types
var (
	TypeIHDR = Type{'I', 'H', 'D', 'R'}
	TypePLTE = Type{'P', 'L', 'T', 'E'}
	TypeIDAT = Type{'I', 'D', 'A', 'T'}
	TypeIEND = Type{'I', 'E', 'N', 'D'}
	TypeTRNS = Type{'t', 'R', 'N', 'S'}
	TypeGAMA = Type{'g', 'A', 'M', 'A'}
	TypeCHRM = Type{'c', 'H', 'R', 'M'}
	TypeSRGB = Type{'s', 'R', 'G', 'B'}
	TypeTEXT = Type{'t', 'E', 'X', 't'}
	TypeZTXT = Type{'z', 'T', 'X', 't'}
	TypeITXT = Type{'i', 'T', 'X', 't'}
)

// ParseType converts a 4-letter code such as "tEXt".
func ParseType(s string) (Type, error) {
	var t Type
	if len(s) != 4 {
		return t, fmt.Errorf("%w: type code %q", ErrMalformedChunk, s)
	}
	copy(t[:], s)
	if !t.Valid() {
		return t, fmt.Errorf("%w: type code %q", ErrMalformedChunk, s)
	}
	return t, nil
}

// String returns the type code as text
func (t Type) String() string {
	return string(t[:])
}

// Valid reports whether every byte is an ASCII letter.
func (t Type) Valid() bool {
	for _, c := range t {
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

// IsCritical is decided by bit 5 of the first byte (uppercase = critical).
func (t Type) IsCritical() bool {
	return t[0]&0x20 == 0
}

// SafeToCopy is decided by bit 5 of the last byte (lowercase = safe).
func (t Type) SafeToCopy() bool {
	return t[3]&0x20 != 0
}

// MarshalText lets a Type act as a JSON map key.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a 4-letter code.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Chunk is one element of the stream. The CRC always covers Type ++ Data.
type Chunk struct {
	Type Type
	Data []byte
	CRC  uint32
}

// New builds a chunk and computes its CRC.
func New(t Type, data []byte) Chunk {
	return Chunk{Type: t, Data: data, CRC: Checksum(t, data)}
}

// Length is the value written in the length field.
func (c Chunk) Length() uint32 {
	return uint32(len(c.Data))
}

// Valid reports whether the stored CRC matches the content.
func (c Chunk) Valid() bool {
	return c.CRC == Checksum(c.Type, c.Data)
}

// Checksum computes crc32(type ++ data).
func Checksum(t Type, data []byte) uint32 {
	var d crc.Digest
	d.Write(t[:])
	d.Write(data)
	return d.Sum32()
}

// MissingChunkError reports a mandatory chunk that never appeared.
type MissingChunkError struct {
	Kind Type
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingChunk, e.Kind)
}

// Is matches ErrMissingChunk
func (e *MissingChunkError) Is(target error) bool {
	return target == ErrMissingChunk
}

// CrcError reports a chunk whose trailer disagrees with its content.
type CrcError struct {
	Type   Type
	Offset int
	Want   uint32
	Got    uint32
}

func (e *CrcError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d (stored 0x%08X, computed 0x%08X)", ErrChunkCrcMismatch, e.Type, e.Offset, e.Want, e.Got)
}

// Is matches ErrChunkCrcMismatch
func (e *CrcError) Is(target error) bool {
	return target == ErrChunkCrcMismatch
}
