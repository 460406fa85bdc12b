package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twilightcore/mjpeg"
)

func newInspectCmd() *cobra.Command {
	var in, format string

	c := &cobra.Command{
		Use:   "inspect",
		Short: "print a JPEG file's frame header without decoding pixels",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			p, err := mjpeg.Open(data)
			if err != nil {
				return err
			}
			h := p.Header()
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%dx%d precision=%d mode=%s components=%d xblock=%d yblock=%d\n",
				h.Width, h.Height, h.Precision, h.Mode, len(h.Components), h.XBlock, h.YBlock)
			return nil
		},
	}
	c.Flags().StringVar(&in, "file", "", "JPEG path")
	c.Flags().StringVar(&format, "format", "text", "output format: text or json")
	c.MarkFlagRequired("file")
	return c
}
