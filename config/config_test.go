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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "sqlite", cfg.Node.Storage.Backend)
	assert.Equal(t, 60, cfg.Node.Security.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.Node.Security.RateLimitBurst)
	assert.Equal(t, 1048576, cfg.Node.Security.MaxMessageSize)
	assert.Equal(t, 256, cfg.Node.Security.MaxKeyLength)
	assert.Equal(t, 65536, cfg.Node.Security.MaxValueLength)
	assert.Equal(t, 10, cfg.Node.Security.MaxConnectionsPerIP)
	assert.True(t, cfg.Node.KeyDistribution.AutoShareKeys)
	assert.False(t, cfg.Node.KeyDistribution.AcceptWhitelistRequests)
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yamlContent := `
node:
  peer_id_key_path: /tmp/node.key
  storage:
    backend: postgres
    postgres:
      host: db.internal
      port: 5432
  security:
    rate_limit_per_minute: 120
  metrics_addr: ":9999"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/node.key", cfg.Node.PeerIDKeyPath)
	assert.Equal(t, "postgres", cfg.Node.Storage.Backend)
	assert.Equal(t, "db.internal", cfg.Node.Storage.Postgres.Host)
	assert.Equal(t, 5432, cfg.Node.Storage.Postgres.Port)
	assert.Equal(t, 120, cfg.Node.Security.RateLimitPerMinute)
	assert.Equal(t, ":9999", cfg.Node.MetricsAddr)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Node.MetricsAddr = ":1234"

	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":1234", loaded.Node.MetricsAddr)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		EnvPath:    filepath.Join(t.TempDir(), "missing.env"),
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Node.Storage.Backend)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	os.Setenv("P2PKV_STORAGE_BACKEND", "postgres")
	os.Setenv("P2PKV_METRICS_ADDR", ":7777")
	defer os.Unsetenv("P2PKV_STORAGE_BACKEND")
	defer os.Unsetenv("P2PKV_METRICS_ADDR")

	cfg, err := Load(LoaderOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		EnvPath:    filepath.Join(t.TempDir(), "missing.env"),
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Node.Storage.Backend)
	assert.Equal(t, ":7777", cfg.Node.MetricsAddr)
}

func TestMustLoadPanicsOnBadEnvFile(t *testing.T) {
	dir := t.TempDir()
	badEnv := filepath.Join(dir, "bad.env")
	require.NoError(t, os.WriteFile(badEnv, []byte("not a valid env line ===="), 0644))

	assert.Panics(t, func() {
		MustLoad(LoaderOptions{
			ConfigPath: filepath.Join(dir, "missing.yaml"),
			EnvPath:    badEnv,
		})
	})
}
