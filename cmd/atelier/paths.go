package main

import (
	"fmt"
	"os"
	"path/filepath"

	"atelier/pkg/protocol"
)

// Paths holds all resolved atelier state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home        string // ~/.atelier or ATELIER_HOME
	StateDBPath string // state.db or ATELIER_DB_PATH
	LogPath     string // atelier.log (respects ATELIER_HOME)
}

// ResolvePaths returns all atelier paths, respecting env var overrides.
// Environment variables:
//   - ATELIER_HOME: base directory for all atelier state (default: ~/.atelier)
//   - ATELIER_DB_PATH: coordinator state database (default: $ATELIER_HOME/state.db)
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return &Paths{
		Home:        home,
		StateDBPath: resolvePathWithEnv("ATELIER_DB_PATH", home, protocol.StateDBName),
		LogPath:     filepath.Join(home, protocol.LogFileName),
	}, nil
}

// resolveHome returns the atelier home directory from ATELIER_HOME or ~/.atelier.
func resolveHome() (string, error) {
	if v := os.Getenv("ATELIER_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.AtelierDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
