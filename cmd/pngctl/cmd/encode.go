package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jpfielding/png.go/pkg/png"
	"github.com/jpfielding/png.go/pkg/png/bitmap"
	"github.com/jpfielding/png.go/pkg/png/chunk"
	"github.com/jpfielding/png.go/pkg/png/filter"
	"github.com/jpfielding/png.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewEncodeCmd re-encodes a PNG, JPEG or GIF through the packer.
func NewEncodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode an image as PNG",
		Long:  "Reads a PNG, JPEG or GIF and writes a PNG with the requested color type, bit depth, filtering, interlacing and compression.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			if in == "" && len(args) > 0 {
				in = args[0]
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return fmt.Errorf("output path is required. Use --out")
			}
			verbose, _ := cmd.Flags().GetBool("verbose")

			data, err := readInput(ctx, in, verbose)
			if err != nil {
				return err
			}
			meta, pix, err := loadImage(ctx, data)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			opts, err := encodeOptions(cmd)
			if err != nil {
				return err
			}
			if err := applyHeaderFlags(cmd, meta, pix); err != nil {
				return err
			}
			texts, _ := cmd.Flags().GetStringArray("text")
			for _, kv := range texts {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("text %q is not key=value", kv)
				}
				meta.Text = append(meta.Text, chunk.Text{Kind: chunk.TextInternational, Keyword: k, Text: v, Compressed: len(v) > 1024})
			}

			encoded, err := png.EncodeContext(ctx, meta, pix, opts)
			if err != nil {
				return fmt.Errorf("encode %s: %w", out, err)
			}
			if err := writeOutput(cmd, out, encoded); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			slog.InfoContext(ctx, "encoded",
				slog.String("out", out),
				slog.String("id", util.ContentID(encoded)),
				slog.Int("bytes", len(encoded)),
				slog.String("colorType", meta.Header.ColorType.String()),
				slog.Int("bitDepth", int(meta.Header.BitDepth)))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "input image path, URL or - for stdin")
	pf.StringP("out", "o", "", "output PNG path (- for stdout)")
	pf.String("color-type", "", "gray|gray-alpha|rgb|rgba|indexed (default: keep)")
	pf.Int("bit-depth", 0, "1, 2, 4, 8 or 16 (default: keep, or smallest for indexed)")
	pf.Bool("interlace", false, "write Adam7 interlaced")
	pf.String("filter", "adaptive", "adaptive, one of none|sub|up|average|paeth, or a comma list to choose among")
	pf.Int("level", 9, "zlib compression level (-2..9)")
	pf.Int("chunk-size", chunk.DefaultIDATSize, "maximum IDAT chunk payload")
	pf.Int("workers", 0, "row filtering workers (default GOMAXPROCS)")
	pf.String("background", "", "r,g,b composited under translucent pixels when alpha is dropped")
	pf.StringArray("text", nil, "key=value text entry (repeatable)")
	pf.BoolP("verbose", "v", false, "dump http request/response")
	return cmd
}

// loadImage decodes PNG input with the codec itself so metadata carries
// over; other formats go through image.Decode.
func loadImage(ctx context.Context, data []byte) (*png.Metadata, *png.PixelBuffer, error) {
	if bytes.HasPrefix(data, []byte(chunk.Signature)) {
		meta, pix, err := png.DecodeContext(ctx, data, nil)
		if err != nil {
			return nil, nil, err
		}
		return meta, pix, nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	slog.DebugContext(ctx, "decoded input", slog.String("format", format))
	pix := png.FromImage(img)
	return &png.Metadata{Header: chunk.Header{ColorType: pix.Layout.ColorType(), BitDepth: uint8(pix.Depth)}}, pix, nil
}

func applyHeaderFlags(cmd *cobra.Command, meta *png.Metadata, pix *png.PixelBuffer) error {
	ct, _ := cmd.Flags().GetString("color-type")
	depth, _ := cmd.Flags().GetInt("bit-depth")

	if ct != "" {
		layout, err := bitmap.ParseLayout(ct)
		if err != nil {
			return err
		}
		changed := meta.Header.ColorType != layout.ColorType()
		if changed {
			// the source palette and tRNS no longer describe the output
			meta.Palette, meta.Transparency = nil, nil
		}
		meta.Header.ColorType = layout.ColorType()
		if layout == png.Indexed && meta.Palette == nil {
			pal, trns, d, err := png.PaletteOf(pix)
			if err != nil {
				return err
			}
			meta.Palette, meta.Transparency = pal, trns
			meta.Header.BitDepth = d
		} else if changed || meta.Header.BitDepth == 0 {
			meta.Header.BitDepth = uint8(pix.Depth)
		}
	}
	if depth != 0 {
		meta.Header.BitDepth = uint8(depth)
	}
	return nil
}

func encodeOptions(cmd *cobra.Command) (*png.EncodeOptions, error) {
	opts := png.DefaultEncodeOptions()
	opts.Level, _ = cmd.Flags().GetInt("level")
	opts.ChunkSize, _ = cmd.Flags().GetInt("chunk-size")
	opts.Interlace, _ = cmd.Flags().GetBool("interlace")
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		opts.Workers = workers
	}

	sel, _ := cmd.Flags().GetString("filter")
	if sel != "" && sel != "adaptive" {
		var types []filter.Type
		for _, name := range strings.Split(sel, ",") {
			t, err := filter.ParseType(strings.TrimSpace(name))
			if err != nil {
				return nil, err
			}
			types = append(types, t)
		}
		opts.Filter = filter.Candidates(types...)
	}

	if bg, _ := cmd.Flags().GetString("background"); bg != "" {
		parts := strings.Split(bg, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: background %q, want r,g,b", png.ErrInvalidOption, bg)
		}
		var c [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: background %q: %v", png.ErrInvalidOption, bg, err)
			}
			c[i] = uint8(v)
		}
		opts.Background = &png.RGBColor{R: c[0], G: c[1], B: c[2]}
	}
	return opts, nil
}
