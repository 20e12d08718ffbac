// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigPath is the YAML file to load (default: ./config.yaml)
	ConfigPath string
	// EnvPath is the .env file to load before substitution (default: ./.env)
	EnvPath string
	// SkipEnvSubstitution disables ${VAR} substitution
	SkipEnvSubstitution bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigPath: "config.yaml",
		EnvPath:    ".env",
	}
}

// Load loads the node configuration, falling back to DefaultConfig() when
// no config file is present.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if err := LoadDotEnv(options.EnvPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg *Config
	if _, err := os.Stat(options.ConfigPath); err == nil {
		cfg, err = LoadFromFile(options.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

// applyEnvironmentOverrides applies the highest-priority environment
// variable overrides, after file loading and ${VAR} substitution.
func applyEnvironmentOverrides(cfg *Config) {
	if backend := os.Getenv("P2PKV_STORAGE_BACKEND"); backend != "" {
		cfg.Node.Storage.Backend = backend
	}
	if path := os.Getenv("P2PKV_SQLITE_PATH"); path != "" {
		cfg.Node.Storage.SQLitePath = path
	}
	if addr := os.Getenv("P2PKV_METRICS_ADDR"); addr != "" {
		cfg.Node.MetricsAddr = addr
	}
	if addr := os.Getenv("P2PKV_HEALTH_ADDR"); addr != "" {
		cfg.Node.HealthAddr = addr
	}
	if keyPath := os.Getenv("P2PKV_PEER_ID_KEY_PATH"); keyPath != "" {
		cfg.Node.PeerIDKeyPath = keyPath
	}
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
