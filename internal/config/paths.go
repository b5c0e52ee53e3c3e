// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package config

import (
	"os"
	"path/filepath"
)

const (
	appName         = "itemvault"
	defaultFileName = "config.yaml"
)

// Dir returns the XDG config directory for itemvault.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultFile returns Dir()/config.yaml when that file exists, otherwise "".
// It is read when no --config flag is given.
func DefaultFile() string {
	path := filepath.Join(Dir(), defaultFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
