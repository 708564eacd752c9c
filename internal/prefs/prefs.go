// Package prefs remembers dashboard choices (theme, last tab) between runs.
// The file lives next to the log in the state directory.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs is the persisted dashboard state. Empty fields mean "use the default".
type Prefs struct {
	Theme string `toml:"theme"`
	View  string `toml:"view"`
}

const fileName = "prefs.toml"

// Path returns the prefs file inside stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, fileName)
}

// Load reads prefs from path. A missing or unreadable file yields zero Prefs
// and an error only for the unreadable case; callers are free to ignore it.
func Load(path string) (Prefs, error) {
	var p Prefs
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("read prefs: %w", err)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return Prefs{}, fmt.Errorf("parse prefs %s: %w", path, err)
	}
	p.Theme = strings.TrimSpace(p.Theme)
	p.View = strings.TrimSpace(p.View)
	return p, nil
}

// Save writes p to path through a temp file so a crash never leaves a
// truncated file behind.
func Save(path string, p Prefs) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("prefs path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	tmp, err := os.CreateTemp(dir, fileName+".*")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
