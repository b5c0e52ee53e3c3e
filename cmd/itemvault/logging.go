// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package main

import (
	"log/slog"

	"github.com/itemvault/itemvault/internal/config"
	"github.com/itemvault/itemvault/internal/logging"
)

const serviceName = "itemvault"

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Format,
		Level:   level,
	}), nil
}
