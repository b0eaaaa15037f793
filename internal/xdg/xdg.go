// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for accountd.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName    = "accountd"
	configFile = "config.yaml"
)

// ConfigDir returns the XDG config directory for accountd.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").Errorf("neither XDG_CONFIG_HOME nor HOME is set")
	}
	return filepath.Join(home, ".config", appName), nil
}

// DefaultConfigFile returns the path of the config file read when none is
// given and reports whether it exists.
func DefaultConfigFile() (string, bool) {
	dir, err := ConfigDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, configFile)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, true
}
