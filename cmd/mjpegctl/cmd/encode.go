package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twilightcore/mjpeg"
)

func newEncodeCmd() *cobra.Command {
	var in, out, format string
	var width, height int
	var quality float32
	var multithread bool

	c := &cobra.Command{
		Use:   "encode",
		Short: "encode a raw interleaved pixel buffer to baseline JPEG",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, ok := formatNames[format]
			if !ok {
				return fmt.Errorf("unknown --format %q", format)
			}
			if width <= 0 || height <= 0 {
				return fmt.Errorf("--width and --height are required")
			}
			pixels, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			surface := mjpeg.NewSurface(width, height, pf)
			if len(pixels) != len(surface.Pixels) {
				return fmt.Errorf("input has %d bytes, expected %d for %dx%d %s", len(pixels), len(surface.Pixels), width, height, format)
			}
			copy(surface.Pixels, pixels)

			data, status := mjpeg.Encode(surface, mjpeg.EncodeOptions{Quality: quality, Multithread: multithread})
			if !status.Success {
				return status.Err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	c.Flags().StringVar(&in, "in", "", "input raw pixel buffer path")
	c.Flags().StringVar(&out, "out", "", "output JPEG path")
	c.Flags().StringVar(&format, "format", "rgb", "input pixel format: gray8, rgb, bgr, rgba, bgra")
	c.Flags().IntVar(&width, "width", 0, "image width in pixels")
	c.Flags().IntVar(&height, "height", 0, "image height in pixels")
	c.Flags().Float32Var(&quality, "quality", 0.75, "encode quality in [0,1]")
	c.Flags().BoolVar(&multithread, "multithread", true, "encode MCU rows concurrently")
	c.MarkFlagRequired("in")
	c.MarkFlagRequired("out")
	return c
}
