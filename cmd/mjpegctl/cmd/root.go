package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/twilightcore/mjpeg/internal/logging"
)

// NewRoot builds the mjpegctl command tree with the persistent
// --log-level and --trace-log flags shared by every sub-command.
func NewRoot(ctx context.Context) *cobra.Command {
	root := &cobra.Command{
		Use:           "mjpegctl",
		Short:         "decode, encode, and inspect JPEG bitstreams",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	logLevel := pf.String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	traceLog := pf.String("trace-log", "", "optional rotating log file for JSON log records")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
			return err
		}
		if *traceLog != "" {
			w := logging.RotatingWriter(*traceLog, 10, 3, 28)
			slog.SetDefault(logging.Logger(w, true, level))
		} else {
			slog.SetDefault(logging.Logger(cmd.ErrOrStderr(), false, level))
		}
		return nil
	}

	root.AddCommand(newDecodeCmd(), newEncodeCmd(), newInspectCmd())
	return root
}
