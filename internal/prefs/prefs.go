// Package prefs persists browser preferences in ~/.config/drylab/prefs.toml.
// A missing or unreadable file is never an error: the browser starts with
// defaults and overwrites the file on the next change.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/drylab-ai/drylab/internal/config"
)

// Prefs holds browser preferences.
type Prefs struct {
	Theme string `toml:"theme"`
	// KeepExpanded keeps directories open across a file tree refresh.
	KeepExpanded bool `toml:"keep_expanded"`
	// ShowRaw starts the job detail in raw JSON mode.
	ShowRaw bool `toml:"show_raw"`
}

const (
	defaultPrefsPath = "~/.config/drylab/prefs.toml"
	defaultTheme     = "Nightfox"
)

func DefaultPath() string {
	return defaultPrefsPath
}

func defaults() Prefs {
	return Prefs{Theme: defaultTheme}
}

// Load reads preferences from path (DefaultPath when empty).
func Load(path string) (Prefs, error) {
	resolved, err := resolve(path)
	if err != nil {
		log.Warn().Err(err).Msg("prefs path unresolvable, using defaults")
		return defaults(), nil
	}

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return defaults(), nil
	case err != nil:
		log.Warn().Err(err).Str("path", resolved).Msg("read prefs, using defaults")
		return defaults(), nil
	}

	p := defaults()
	if err := toml.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("path", resolved).Msg("parse prefs, using defaults")
		return defaults(), nil
	}
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	return p, nil
}

// Save replaces the preferences file, creating its directory as needed. The
// new content is written beside the target and renamed over it so a crash
// never leaves a truncated file.
func Save(path string, p Prefs) error {
	resolved, err := resolve(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, resolved); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

func resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPrefsPath
	}
	return config.ExpandPath(path)
}
