// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.


package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment variable values
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name and default value
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		// Get environment variable
		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// SubstituteEnvVarsInConfig recursively substitutes environment variables in config
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	node := &cfg.Node
	node.PeerIDKeyPath = SubstituteEnvVars(node.PeerIDKeyPath)
	node.MetricsAddr = SubstituteEnvVars(node.MetricsAddr)
	node.HealthAddr = SubstituteEnvVars(node.HealthAddr)

	node.Storage.Backend = SubstituteEnvVars(node.Storage.Backend)
	node.Storage.SQLitePath = SubstituteEnvVars(node.Storage.SQLitePath)
	node.Storage.Postgres.Host = SubstituteEnvVars(node.Storage.Postgres.Host)
	node.Storage.Postgres.User = SubstituteEnvVars(node.Storage.Postgres.User)
	node.Storage.Postgres.Password = SubstituteEnvVars(node.Storage.Postgres.Password)
	node.Storage.Postgres.Database = SubstituteEnvVars(node.Storage.Postgres.Database)
	node.Storage.Postgres.SSLMode = SubstituteEnvVars(node.Storage.Postgres.SSLMode)

	for i, peer := range node.Security.BlockedPeers {
		node.Security.BlockedPeers[i] = SubstituteEnvVars(peer)
	}
	for i, peer := range node.Security.AllowedPeers {
		node.Security.AllowedPeers[i] = SubstituteEnvVars(peer)
	}
}

// GetEnvironment returns the current environment from SAGE_ENV or defaults to development
func GetEnvironment() string {
	env := os.Getenv("SAGE_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction returns true if running in production environment
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment returns true if running in development or local environment
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
