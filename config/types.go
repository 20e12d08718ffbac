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

// Package config provides configuration loading for a replication node.
package config

import "time"

// Config is the top-level node configuration document.
type Config struct {
	Node NodeConfig `yaml:"node" json:"node"`
}

// NodeConfig groups every setting a single replication node needs to start.
type NodeConfig struct {
	PeerIDKeyPath   string                `yaml:"peer_id_key_path" json:"peer_id_key_path"`
	Storage         StorageConfig         `yaml:"storage" json:"storage"`
	Security        SecurityConfig        `yaml:"security" json:"security"`
	KeyDistribution KeyDistributionConfig `yaml:"key_distribution" json:"key_distribution"`
	MetricsAddr     string                `yaml:"metrics_addr" json:"metrics_addr"`
	HealthAddr      string                `yaml:"health_addr" json:"health_addr"`
}

// StorageConfig selects and configures the persistence backend shared by the
// key-value store and the peer whitelist.
type StorageConfig struct {
	Backend    string         `yaml:"backend" json:"backend"` // sqlite | postgres
	SQLitePath string         `yaml:"sqlite_path" json:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres" json:"postgres"`
}

// PostgresConfig configures the alternate relational backend.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`
}

// SecurityConfig mirrors the admission-control defaults: rate limiting,
// message-size caps, and connection caps.
type SecurityConfig struct {
	RateLimitPerMinute  int      `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitBurst      int      `yaml:"rate_limit_burst" json:"rate_limit_burst"`
	MaxMessageSize      int      `yaml:"max_message_size" json:"max_message_size"`
	MaxKeyLength        int      `yaml:"max_key_length" json:"max_key_length"`
	MaxValueLength      int      `yaml:"max_value_length" json:"max_value_length"`
	MaxConnectionsPerIP int      `yaml:"max_connections_per_ip" json:"max_connections_per_ip"`
	BlockedPeers        []string `yaml:"blocked_peers" json:"blocked_peers"`
	AllowedPeers        []string `yaml:"allowed_peers" json:"allowed_peers"`
}

// KeyDistributionConfig configures the key-distribution protocol manager.
type KeyDistributionConfig struct {
	AutoShareKeys           bool          `yaml:"auto_share_keys" json:"auto_share_keys"`
	AutoRequestKeys         bool          `yaml:"auto_request_keys" json:"auto_request_keys"`
	AcceptWhitelistRequests bool          `yaml:"accept_whitelist_requests" json:"accept_whitelist_requests"`
	MaxMessageAge           time.Duration `yaml:"max_message_age" json:"max_message_age"`
}

// DefaultConfig returns a Config populated with the same defaults the
// original security policy shipped with.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			PeerIDKeyPath: "./node.key",
			Storage: StorageConfig{
				Backend:    "sqlite",
				SQLitePath: "./data/node.db",
			},
			Security: SecurityConfig{
				RateLimitPerMinute:  60,
				RateLimitBurst:      10,
				MaxMessageSize:      1048576,
				MaxKeyLength:        256,
				MaxValueLength:      65536,
				MaxConnectionsPerIP: 10,
			},
			KeyDistribution: KeyDistributionConfig{
				AutoShareKeys:           true,
				AutoRequestKeys:         true,
				AcceptWhitelistRequests: false,
				MaxMessageAge:           24 * time.Hour,
			},
			MetricsAddr: ":9090",
			HealthAddr:  ":9091",
		},
	}
}
