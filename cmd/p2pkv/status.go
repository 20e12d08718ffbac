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

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this node's identity and storage counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	kvCount, err := n.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count keys: %w", err)
	}
	peers, err := n.whitelist.ListPeers(ctx)
	if err != nil {
		return fmt.Errorf("list peers: %w", err)
	}

	fmt.Println("=== node status ===")
	fmt.Printf("local peer id: %s\n", n.local.PeerID())
	fmt.Printf("stored keys: %d\n", kvCount)
	fmt.Printf("whitelisted peers: %d\n", len(peers))
	fmt.Printf("storage backend: %s\n", n.cfg.Node.Storage.Backend)
	return nil
}
