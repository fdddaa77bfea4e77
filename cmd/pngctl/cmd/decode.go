package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jpfielding/png.go/pkg/logging"
	"github.com/jpfielding/png.go/pkg/png"
	"github.com/jpfielding/png.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewDecodeCmd decodes a PNG to raw RGBA samples and prints its metadata.
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a PNG to raw RGBA",
		Long:  "Decodes a PNG to its canonical RGBA raster (8-bit, or 16-bit big endian for 16-bit images) and prints the metadata as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, _ := cmd.Flags().GetString("file")
			if uri == "" && len(args) > 0 {
				uri = args[0]
			}
			out, _ := cmd.Flags().GetString("out")
			rescale8, _ := cmd.Flags().GetBool("rescale8")
			verbose, _ := cmd.Flags().GetBool("verbose")

			data, err := readInput(ctx, uri, verbose)
			if err != nil {
				return err
			}
			ctx := logging.AppendCtx(ctx, slog.String("file", uri))
			meta, pix, err := png.DecodeContext(ctx, data, &png.DecodeOptions{Rescale8: rescale8, KeepUnknown: true})
			if err != nil {
				return fmt.Errorf("decode %s: %w", uri, err)
			}
			slog.InfoContext(ctx, "decoded",
				slog.Int("width", pix.Width),
				slog.Int("height", pix.Height),
				slog.Int("depth", pix.Depth))

			if out != "" {
				if err := writeOutput(cmd, out, pix.Pix); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}
			if out == "-" {
				return nil
			}
			j, err := json.MarshalIndent(struct {
				ID         string        `json:"id"`
				MetadataID string        `json:"metadataId"`
				PixelMD5   string        `json:"pixelMd5"`
				Layout     string        `json:"layout"`
				Depth      int           `json:"depth"`
				Metadata   *png.Metadata `json:"metadata"`
			}{util.ContentID(data), util.HashUUID(meta), util.Md5ThenHex(pix.Pix), pix.Layout.String(), pix.Depth, meta}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(j))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "PNG path, URL or - for stdin")
	pf.StringP("out", "o", "", "write the raw RGBA raster here (- for stdout)")
	pf.Bool("rescale8", false, "narrow 16-bit images to 8-bit samples")
	pf.BoolP("verbose", "v", false, "dump http request/response")
	return cmd
}
