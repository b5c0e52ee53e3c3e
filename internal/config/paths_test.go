// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemvault/itemvault/internal/config"
)

func TestDir(t *testing.T) {
	t.Run("XDG_CONFIG_HOME wins", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		assert.Equal(t, "/custom/config/itemvault", config.Dir())
	})

	t.Run("falls back to HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/vault")
		assert.Equal(t, "/home/vault/.config/itemvault", config.Dir())
	})
}

func TestDefaultFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	assert.Empty(t, config.DefaultFile(), "missing file is not a default")

	dir := filepath.Join(base, "itemvault")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: text\n"), 0o600))

	assert.Equal(t, path, config.DefaultFile())

	cfg, err := config.Load(config.DefaultFile(), newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
}
