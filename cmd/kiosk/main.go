package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"buffet/pkg/cart"
	"buffet/pkg/httpapi"
	"buffet/pkg/kiosk"
)

// main runs one ordering session against a buffet server and remembers the
// selected space for the next run.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	server := flag.String("server", os.Getenv("BUFFET_SERVER"), "Base URL of the buffet server")
	prefsPath := flag.String("prefs", defaultPrefsPath(logger), "File that keeps the selected space between sessions")
	space := flag.Int("space", 0, "Space to sell from; defaults to the one saved in -prefs")
	flag.Parse()

	prefs, err := cart.LoadPrefs(*prefsPath)
	if err != nil {
		logger.Warn("ignoring saved preferences", "path", *prefsPath, "error", err)
	}
	if *server == "" {
		*server = prefs.Server
	}
	if *server == "" {
		*server = "http://localhost:8765"
	}
	if *space > 0 {
		prefs.Space = *space
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	k := kiosk.New(httpapi.NewClient(*server, nil), prefs.SelectedSpace(1), os.Stdout, logger)
	runErr := k.Run(ctx, os.Stdin)

	prefs.Space = int(k.Space())
	prefs.Server = *server
	if err := cart.SavePrefs(*prefsPath, prefs); err != nil {
		logger.Warn("preferences not saved", "path", *prefsPath, "error", err)
	}
	if runErr != nil && ctx.Err() == nil {
		logger.Error("kiosk stopped", "error", runErr)
		os.Exit(1)
	}
}

// defaultPrefsPath places the session file in the user config directory, or
// in the home directory when no config directory is known.
func defaultPrefsPath(logger *slog.Logger) string {
	dir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(dir, "buffet", "kiosk.yaml")
	}
	logger.Warn("no user config directory", "error", err)
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".buffet-kiosk.yaml")
	}
	path, err := filepath.Abs("buffet-kiosk.yaml")
	if err != nil {
		return "buffet-kiosk.yaml"
	}
	logger.Warn("saving kiosk preferences in the working directory", "path", path)
	return path
}
