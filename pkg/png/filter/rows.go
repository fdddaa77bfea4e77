package filter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
)

// Scratch holds one worker's candidate buffers so selection does not
// allocate per row.
type Scratch struct {
	cand [NumTypes][]byte
}

func (s *Scratch) candidate(t Type, n int) []byte {
	if cap(s.cand[t]) < n {
		s.cand[t] = make([]byte, n)
	}
	return s.cand[t][:n]
}

// Selector is the set of filter types tried on each row. One type is
// applied as is; several are each applied and the lowest Score wins, ties
// going to the earlier type. An empty Selector tries every type.
type Selector []Type

// Fixed always applies t.
func Fixed(t Type) Selector {
	return Selector{t}
}

// Adaptive filters the row with every type and keeps the lowest Score.
func Adaptive() Selector {
	return nil
}

// Candidates is Adaptive restricted to the given types.
func Candidates(types ...Type) Selector {
	return Selector(slices.Clone(types))
}

// Validate reports the first type outside the five filters.
func (sel Selector) Validate() error {
	for _, t := range sel {
		if !t.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownFilter, uint8(t))
		}
	}
	return nil
}

// String lists the candidate names, or "adaptive" for the full set.
func (sel Selector) String() string {
	if len(sel) == 0 {
		return "adaptive"
	}
	names := make([]string, len(sel))
	for i, t := range sel {
		names[i] = t.String()
	}
	return strings.Join(names, ",")
}

// Select writes the filtered bytes of cur into dst and returns the type
// used. prior is the previous unfiltered row or nil.
func (sel Selector) Select(dst, cur, prior []byte, bpp int, s *Scratch) Type {
	types := []Type(sel)
	if len(types) == 0 {
		types = All
	}
	if len(types) == 1 {
		Apply(types[0], dst, cur, prior, bpp)
		return types[0]
	}
	best, bestScore := types[0], math.MaxInt
	var bestBuf []byte
	for _, t := range types {
		buf := s.candidate(t, len(cur))
		Apply(t, buf, cur, prior, bpp)
		if score := Score(buf); score < bestScore {
			best, bestScore, bestBuf = t, score, buf
		}
	}
	copy(dst, bestBuf)
	return best
}

// FilterRows filters height rows of rowBytes each from raw and returns the
// scanline stream (filter byte + row, per row) along with the filter chosen
// for each row. Rows are split into contiguous stripes across workers; every
// stripe reads raw (never written) and writes only its own output rows, so
// row order is preserved regardless of completion order.
func FilterRows(raw []byte, rowBytes, height, bpp int, sel Selector, workers int) ([]byte, []Type, error) {
	if err := sel.Validate(); err != nil {
		return nil, nil, err
	}
	if rowBytes <= 0 || height <= 0 {
		return nil, nil, nil
	}
	if len(raw)%rowBytes != 0 || len(raw)/rowBytes != height {
		return nil, nil, fmt.Errorf("%w: %d bytes for %d rows of %d", ErrInsufficientPixelData, len(raw), height, rowBytes)
	}
	workers = max(1, min(workers, height))

	out := make([]byte, height*(rowBytes+1))
	choices := make([]Type, height)

	stripe := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < height; start += stripe {
		end := min(start+stripe, height)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			filterStripe(out, choices, raw, rowBytes, bpp, start, end, sel)
		}(start, end)
	}
	wg.Wait()

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("filtered rows", slog.Int("rows", height), slog.Int("workers", workers), slog.Any("histogram", Histogram(choices)))
	}
	return out, choices, nil
}

func filterStripe(out []byte, choices []Type, raw []byte, rowBytes, bpp, start, end int, sel Selector) {
	var s Scratch
	for y := start; y < end; y++ {
		cur := raw[y*rowBytes : (y+1)*rowBytes]
		var prior []byte
		if y > 0 {
			prior = raw[(y-1)*rowBytes : y*rowBytes]
		}
		o := y * (rowBytes + 1)
		t := sel.Select(out[o+1:o+1+rowBytes], cur, prior, bpp, &s)
		out[o] = byte(t)
		choices[y] = t
	}
}

// UnfilterRows reverses a scanline stream of height rows. Each row depends
// on the reconstruction of the one above it, so this runs in order.
func UnfilterRows(data []byte, rowBytes, height, bpp int) ([]byte, error) {
	need := height * (rowBytes + 1)
	if len(data) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d for %d rows", ErrInsufficientPixelData, len(data), need, height)
	}
	out := make([]byte, height*rowBytes)
	var prior []byte
	for y := 0; y < height; y++ {
		in := data[y*(rowBytes+1):]
		row := out[y*rowBytes : (y+1)*rowBytes]
		copy(row, in[1:1+rowBytes])
		if err := Reverse(Type(in[0]), row, prior, bpp); err != nil {
			return nil, fmt.Errorf("row %d: %w", y, err)
		}
		prior = row
	}
	return out, nil
}

// Histogram counts how often each filter was chosen.
func Histogram(choices []Type) map[string]int {
	h := make(map[string]int, NumTypes)
	for _, t := range choices {
		h[t.String()]++
	}
	return h
}
