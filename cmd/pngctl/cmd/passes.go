package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jpfielding/png.go/pkg/png/interlace"
	"github.com/spf13/cobra"
)

// NewPassesCmd prints the Adam7 geometry for an image size.
func NewPassesCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passes",
		Short: "Print the Adam7 pass table for a width and height",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _ := cmd.Flags().GetInt("width")
			h, _ := cmd.Flags().GetInt("height")
			if w <= 0 || h <= 0 {
				return fmt.Errorf("width and height must be positive, got %dx%d", w, h)
			}
			printPasses(cmd.OutOrStdout(), interlace.Passes(w, h))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.IntP("width", "W", 0, "image width")
	pf.IntP("height", "H", 0, "image height")
	return cmd
}

func printPasses(w io.Writer, passes []interlace.Pass) {
	fmt.Fprintln(w, "pass  width height  x0 y0  dx dy")
	for _, p := range passes {
		mark := ""
		if p.Empty() {
			mark = " (empty)"
		}
		fmt.Fprintf(w, "%4d %6d %6d %3d %2d %3d %2d%s\n", p.Index+1, p.Width, p.Height, p.XOffset, p.YOffset, p.XStep, p.YStep, mark)
	}
}
