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

package main

import (
	"context"
	"fmt"
	"os"

	sagecrypto "github.com/sage-x-project/p2pkv/crypto"
	"github.com/sage-x-project/p2pkv/crypto/formats"
	"github.com/sage-x-project/p2pkv/crypto/keys"
	"github.com/sage-x-project/p2pkv/admission"
	"github.com/sage-x-project/p2pkv/config"
	"github.com/sage-x-project/p2pkv/connreg"
	"github.com/sage-x-project/p2pkv/identity"
	"github.com/sage-x-project/p2pkv/keydist"
	"github.com/sage-x-project/p2pkv/kvstore"
	"github.com/sage-x-project/p2pkv/pipeline"
	"github.com/sage-x-project/p2pkv/pkg/storage"
	"github.com/sage-x-project/p2pkv/pkg/storage/postgres"
	"github.com/sage-x-project/p2pkv/pkg/storage/sqlite"
	"github.com/sage-x-project/p2pkv/whitelist"
)

// node bundles every component a one-shot CLI invocation needs, opened
// against the same storage and identity a running node process uses.
type node struct {
	cfg       *config.Config
	backend   storage.Store
	local     *identity.Identity
	whitelist *whitelist.Whitelist
	store     *kvstore.Store
	keydist   *keydist.Manager
	gate      *admission.Gate
	conns     *connreg.Registry
	pipeline  *pipeline.Pipeline
}

func openNode(ctx context.Context) (*node, error) {
	cfg, err := config.Load(config.LoaderOptions{ConfigPath: configPath})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	backend, err := openStorage(ctx, cfg.Node.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	local, err := loadOrCreateIdentity(cfg.Node.PeerIDKeyPath)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("load identity: %w", err)
	}

	wl, err := whitelist.New(ctx, backend.WhitelistStore())
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("load whitelist: %w", err)
	}

	store := kvstore.New(backend.KVStore())
	kd := keydist.New(wl, cfg.Node.KeyDistribution, local, nil)
	gate := admission.New(cfg.Node.Security, wl)
	connections := connreg.New(gate)
	pipe := pipeline.New(local, gate, connections, wl, store, kd, cfg.Node.Security, nil)

	return &node{
		cfg:       cfg,
		backend:   backend,
		local:     local,
		whitelist: wl,
		store:     store,
		keydist:   kd,
		gate:      gate,
		conns:     connections,
		pipeline:  pipe,
	}, nil
}

func (n *node) Close() error {
	return n.backend.Close()
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return sqlite.NewStore(cfg.SQLitePath)
	case "postgres":
		return postgres.NewStore(ctx, &postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// loadOrCreateIdentity reads an Ed25519 identity from a PEM file at path,
// generating and persisting a fresh one on first run.
func loadOrCreateIdentity(path string) (*identity.Identity, error) {
	if data, err := os.ReadFile(path); err == nil {
		keyPair, err := formats.NewPEMImporter().Import(data, sagecrypto.KeyFormatPEM)
		if err != nil {
			return nil, fmt.Errorf("import key from %s: %w", path, err)
		}
		return identity.New(keyPair)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}

	keyPair, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	pemBytes, err := formats.NewPEMExporter().Export(keyPair, sagecrypto.KeyFormatPEM)
	if err != nil {
		return nil, fmt.Errorf("export key pair: %w", err)
	}
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write key file %s: %w", path, err)
	}

	return identity.New(keyPair)
}
