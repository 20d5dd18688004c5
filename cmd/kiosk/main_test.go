package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestDefaultPrefsPathUsesConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "buffet", "kiosk.yaml"), defaultPrefsPath(quietLogger))
}

func TestDefaultPrefsPathIsAbsoluteWithoutConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	path := defaultPrefsPath(quietLogger)
	assert.True(t, filepath.IsAbs(path), "got %q", path)
	assert.Equal(t, "buffet-kiosk.yaml", filepath.Base(path))
}
