package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/twilightcore/mjpeg"
)

var formatNames = map[string]mjpeg.PixelFormat{
	"gray8": mjpeg.FormatGray8,
	"rgb":   mjpeg.FormatRGB,
	"bgr":   mjpeg.FormatBGR,
	"rgba":  mjpeg.FormatRGBA,
	"bgra":  mjpeg.FormatBGRA,
}

func newDecodeCmd() *cobra.Command {
	var in, out, format string
	var multithread bool

	c := &cobra.Command{
		Use:   "decode",
		Short: "decode a JPEG file to a raw interleaved pixel buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, ok := formatNames[format]
			if !ok {
				return fmt.Errorf("unknown --format %q", format)
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			p, err := mjpeg.Open(data)
			if err != nil {
				return err
			}
			surface, status := p.Decode(pf, mjpeg.DecodeOptions{Multithread: multithread})
			if !status.Success {
				return status.Err
			}
			if status.Info != "" {
				slog.WarnContext(context.Background(), "decode completed with diagnostics", "info", status.Info)
			}
			return os.WriteFile(out, surface.Pixels, 0o644)
		},
	}
	c.Flags().StringVar(&in, "in", "", "input JPEG path")
	c.Flags().StringVar(&out, "out", "", "output raw pixel buffer path")
	c.Flags().StringVar(&format, "format", "rgb", "output pixel format: gray8, rgb, bgr, rgba, bgra")
	c.Flags().BoolVar(&multithread, "multithread", true, "decode row bands concurrently")
	c.MarkFlagRequired("in")
	c.MarkFlagRequired("out")
	return c
}
