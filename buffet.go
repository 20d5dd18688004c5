package main

import (
	"context"
	"log/slog"
	"os"

	"buffet/pkg/app"
)

// main exposes a root-level entry point so operators can simply run `go run buffet.go`.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := app.Run(context.Background(), os.Args[1:], logger); err != nil {
		logger.Error("application stopped with error", "error", err)
		os.Exit(1)
	}
}
