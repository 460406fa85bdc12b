// Command mjpegctl is a thin CLI over the mjpeg package's decode/
// encode/inspect operations: a slog default logger installed in main,
// a signal-aware context handed to the command tree (the decode and
// encode calls do not observe it), and a Cobra command tree built in
// cmd/root.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/twilightcore/mjpeg/cmd/mjpegctl/cmd"
	"github.com/twilightcore/mjpeg/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.SetDefault(logging.Logger(os.Stderr, false, slog.LevelInfo))

	if err := cmd.NewRoot(ctx).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
