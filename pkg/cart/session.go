package cart

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"buffet/pkg/catalog"
)

// Prefs is what a kiosk session remembers between runs.
type Prefs struct {
	Space  int    `yaml:"space"`
	Server string `yaml:"server,omitempty"`
}

// SelectedSpace returns the saved space, or fallback when none was saved.
func (p Prefs) SelectedSpace(fallback catalog.Space) catalog.Space {
	if p.Space < 1 {
		return fallback
	}
	return catalog.Space(p.Space)
}

// LoadPrefs reads path. A missing file yields zero Prefs.
func LoadPrefs(path string) (Prefs, error) {
	var prefs Prefs
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return prefs, err
	}
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Prefs{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return prefs, nil
}

// SavePrefs writes prefs to path, creating its directory.
func SavePrefs(path string, prefs Prefs) error {
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
