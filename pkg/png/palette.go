package png

import (
	"fmt"

	"github.com/jpfielding/png.go/pkg/png/bitmap"
	"github.com/jpfielding/png.go/pkg/png/chunk"
)

// PaletteOf collects the distinct colors of pix in first-seen order, ready
// for an Indexed encode. The returned tRNS is nil when every color is
// opaque, and depth is the smallest bit depth that addresses every entry.
// Images with more than 256 colors fail with ErrUnsupportedColorConversion;
// no quantization is attempted.
func PaletteOf(pix *PixelBuffer) (chunk.Palette, *chunk.Transparency, uint8, error) {
	if err := pix.Validate(); err != nil {
		return nil, nil, 0, err
	}
	if pix.Layout == Indexed {
		return nil, nil, 0, fmt.Errorf("%w: pixels are already indexed", ErrUnsupportedColorConversion)
	}
	bm := pix.bitmap()
	if bm.Depth > 8 {
		var err error
		if bm, err = bm.Rescale(8); err != nil {
			return nil, nil, 0, err
		}
	}
	rgba, err := bitmap.Convert(bm, RGBA, bitmap.Options{})
	if err != nil {
		return nil, nil, 0, err
	}

	var (
		pal         chunk.Palette
		alpha       []uint8
		lastVisible = -1
	)
	seen := make(map[[4]uint8]struct{})
	for i := 0; i < len(rgba.Pix); i += 4 {
		c := [4]uint8(rgba.Pix[i : i+4])
		if _, ok := seen[c]; ok {
			continue
		}
		if len(pal) == 256 {
			return nil, nil, 0, fmt.Errorf("%w: more than 256 colors", ErrUnsupportedColorConversion)
		}
		seen[c] = struct{}{}
		if c[3] != 0xFF {
			lastVisible = len(pal)
		}
		pal = append(pal, chunk.RGB{R: c[0], G: c[1], B: c[2]})
		alpha = append(alpha, c[3])
	}

	var trns *chunk.Transparency
	if lastVisible >= 0 {
		trns = &chunk.Transparency{Alpha: alpha[:lastVisible+1]}
	}
	depth := uint8(1)
	for len(pal) > 1<<depth {
		depth *= 2
	}
	return pal, trns, depth, nil
}
