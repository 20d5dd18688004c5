package main

import (
	"context"
	"log/slog"
	"os"

	"buffet/pkg/app"
)

// main acts as a thin adapter so process managers can keep using cmd/server.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := app.Run(context.Background(), os.Args[1:], logger); err != nil {
		logger.Error("application stopped with error", "error", err)
		os.Exit(1)
	}
}
