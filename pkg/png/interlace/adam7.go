// Package interlace implements Adam7 pass geometry and the scatter/gather
// between the seven reduced images and the full raster. Rasters here hold
// fixed-size pixels (pixelSize bytes each); sub-byte depths are unpacked by
// the caller before scattering and packed after gathering.
package interlace

import (
	"errors"
	"fmt"
)

// ErrPassSize reports a sub-raster whose length disagrees with its geometry.
var ErrPassSize = errors.New("png: interlace pass size mismatch")

// NumPasses is the number of Adam7 passes.
const NumPasses = 7

// adam7 lists (xOffset, yOffset, xStep, yStep) per pass.
var adam7 = [NumPasses][4]int{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

// Pass is the geometry of one reduced image.
type Pass struct {
	Index   int `json:"index"`
	Width   int `json:"width"`
	Height  int `json:"height"`
	XOffset int `json:"xOffset"`
	YOffset int `json:"yOffset"`
	XStep   int `json:"xStep"`
	YStep   int `json:"yStep"`
}

// Empty reports a pass that contributes no bytes to the stream: no filter
// byte and no data.
func (p Pass) Empty() bool {
	return p.Width == 0 || p.Height == 0
}

// Pixels is Width*Height.
func (p Pass) Pixels() int {
	return p.Width * p.Height
}

// String returns a short description
func (p Pass) String() string {
	return fmt.Sprintf("pass %d: %dx%d at (%d,%d) step (%d,%d)", p.Index+1, p.Width, p.Height, p.XOffset, p.YOffset, p.XStep, p.YStep)
}

// Passes returns all seven passes for a width x height image, empty ones
// included.
func Passes(width, height int) []Pass {
	passes := make([]Pass, NumPasses)
	for i, g := range adam7 {
		passes[i] = Pass{
			Index:   i,
			Width:   reduced(width, g[0], g[2]),
			Height:  reduced(height, g[1], g[3]),
			XOffset: g[0],
			YOffset: g[1],
			XStep:   g[2],
			YStep:   g[3],
		}
	}
	return passes
}

// reduced is ceil((size-offset)/step), or 0 when size <= offset.
func reduced(size, offset, step int) int {
	if size <= offset {
		return 0
	}
	return (size - offset + step - 1) / step
}

// Scatter copies pixel (px, py) of sub into (XOffset+px*XStep,
// YOffset+py*YStep) of full.
func Scatter(full, sub []byte, p Pass, fullWidth, pixelSize int) {
	if p.Empty() {
		return
	}
	for py := 0; py < p.Height; py++ {
		y := p.YOffset + py*p.YStep
		srow := sub[py*p.Width*pixelSize:]
		drow := full[y*fullWidth*pixelSize:]
		for px := 0; px < p.Width; px++ {
			x := p.XOffset + px*p.XStep
			copy(drow[x*pixelSize:(x+1)*pixelSize], srow[px*pixelSize:])
		}
	}
}

// Gather is the inverse of Scatter: it extracts the pass's pixels from full.
func Gather(sub, full []byte, p Pass, fullWidth, pixelSize int) {
	if p.Empty() {
		return
	}
	for py := 0; py < p.Height; py++ {
		y := p.YOffset + py*p.YStep
		srow := full[y*fullWidth*pixelSize:]
		drow := sub[py*p.Width*pixelSize:]
		for px := 0; px < p.Width; px++ {
			x := p.XOffset + px*p.XStep
			copy(drow[px*pixelSize:(px+1)*pixelSize], srow[x*pixelSize:])
		}
	}
}

// Split produces the seven sub-rasters of full. Empty passes are nil.
func Split(full []byte, width, height, pixelSize int) ([][]byte, error) {
	if len(full) != width*height*pixelSize {
		return nil, fmt.Errorf("%w: raster has %d bytes, want %d", ErrPassSize, len(full), width*height*pixelSize)
	}
	subs := make([][]byte, NumPasses)
	for _, p := range Passes(width, height) {
		if p.Empty() {
			continue
		}
		subs[p.Index] = make([]byte, p.Pixels()*pixelSize)
		Gather(subs[p.Index], full, p, width, pixelSize)
	}
	return subs, nil
}

// Merge scatters the seven sub-rasters into a new full raster.
func Merge(subs [][]byte, width, height, pixelSize int) ([]byte, error) {
	if len(subs) != NumPasses {
		return nil, fmt.Errorf("%w: %d passes", ErrPassSize, len(subs))
	}
	full := make([]byte, width*height*pixelSize)
	for _, p := range Passes(width, height) {
		if len(subs[p.Index]) != p.Pixels()*pixelSize {
			return nil, fmt.Errorf("%w: pass %d has %d bytes, want %d", ErrPassSize, p.Index+1, len(subs[p.Index]), p.Pixels()*pixelSize)
		}
		Scatter(full, subs[p.Index], p, width, pixelSize)
	}
	return full, nil
}
