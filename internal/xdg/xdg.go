// Package xdg resolves XDG Base Directory paths for tokenkeeper.
// Configuration lives under the config dir; the file-backed session store
// lives under the state dir. Both are created private (0700) on demand.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used below each XDG base.
const AppName = "tokenkeeper"

// ConfigDir returns the XDG config directory for tokenkeeper.
// It falls back to ~/.config/tokenkeeper when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return ensure("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for tokenkeeper.
// It falls back to ~/.local/state/tokenkeeper when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return ensure("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func ensure(env, homeRel string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, homeRel)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
