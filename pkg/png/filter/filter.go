// Package filter implements the five PNG scanline filters (None, Sub, Up,
// Average, Paeth). The set is closed: any conforming decoder must be able to
// reverse what the encoder emits, so selection strategies only choose among
// these primitives and never add new ones.
package filter

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUnknownFilter         = errors.New("png: unknown filter type")
	ErrInsufficientPixelData = errors.New("png: insufficient pixel data")
)

// Type is the per-row filter byte.
type Type uint8

const (
	None Type = iota
	Sub
	Up
	Average
	Paeth
)

// NumTypes is the size of the closed filter set.
const NumTypes = 5

// All lists every filter type in byte order.
var All = []Type{None, Sub, Up, Average, Paeth}

// String returns the filter name
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Sub:
		return "sub"
	case Up:
		return "up"
	case Average:
		return "average"
	case Paeth:
		return "paeth"
	default:
		return fmt.Sprintf("filter(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the five filter types.
func (t Type) Valid() bool {
	return t < NumTypes
}

// ParseType maps a filter name to its Type.
func ParseType(s string) (Type, error) {
	for _, t := range All {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// PaethPredictor returns whichever of a (left), b (up), c (upper-left) is
// closest to a+b-c, preferring a, then b, then c on ties.
func PaethPredictor(a, b, c uint8) uint8 {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// Apply writes the t-filtered form of cur into dst. prior is the previous
// unfiltered row of the same length, or nil for the first row. bpp is bytes
// per complete pixel (1 for sub-byte depths).
func Apply(t Type, dst, cur, prior []byte, bpp int) {
	if prior == nil {
		prior = make([]byte, len(cur))
	}
	n := len(cur)
	switch t {
	case None:
		copy(dst, cur)
	case Sub:
		copy(dst[:min(bpp, n)], cur)
		for x := bpp; x < n; x++ {
			dst[x] = cur[x] - cur[x-bpp]
		}
	case Up:
		for x := 0; x < n; x++ {
			dst[x] = cur[x] - prior[x]
		}
	case Average:
		for x := 0; x < min(bpp, n); x++ {
			dst[x] = cur[x] - prior[x]/2
		}
		for x := bpp; x < n; x++ {
			dst[x] = cur[x] - uint8((int(cur[x-bpp])+int(prior[x]))/2)
		}
	case Paeth:
		for x := 0; x < min(bpp, n); x++ {
			dst[x] = cur[x] - prior[x]
		}
		for x := bpp; x < n; x++ {
			dst[x] = cur[x] - PaethPredictor(cur[x-bpp], prior[x], prior[x-bpp])
		}
	}
}

// Reverse undoes filter t on row in place. prior is the previous
// reconstructed row, or nil for the first row.
func Reverse(t Type, row, prior []byte, bpp int) error {
	if prior == nil {
		prior = make([]byte, len(row))
	}
	n := len(row)
	switch t {
	case None:
	case Sub:
		for x := bpp; x < n; x++ {
			row[x] += row[x-bpp]
		}
	case Up:
		for x := 0; x < n; x++ {
			row[x] += prior[x]
		}
	case Average:
		for x := 0; x < min(bpp, n); x++ {
			row[x] += prior[x] / 2
		}
		for x := bpp; x < n; x++ {
			row[x] += uint8((int(row[x-bpp]) + int(prior[x])) / 2)
		}
	case Paeth:
		for x := 0; x < min(bpp, n); x++ {
			row[x] += prior[x]
		}
		for x := bpp; x < n; x++ {
			row[x] += PaethPredictor(row[x-bpp], prior[x], prior[x-bpp])
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFilter, uint8(t))
	}
	return nil
}

// Score sums the magnitudes of the bytes read as signed values, the
// minimum-sum-of-absolute-differences heuristic.
func Score(row []byte) int {
	sum := 0
	for _, b := range row {
		sum += abs(int(int8(b)))
	}
	return sum
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
