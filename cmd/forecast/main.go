package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/trendcast/internal/forecastcli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := forecastcli.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("forecast: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
