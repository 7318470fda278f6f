package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	a := &app{}
	err := a.rootCmd().ExecuteContext(ctx)
	if err != nil {
		slog.Error("zoo: exiting with error", tint.Err(err))
	}
	a.close()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
