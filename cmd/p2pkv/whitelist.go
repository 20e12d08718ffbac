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
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage the peer whitelist",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <peer-id> [name]",
	Short: "Whitelist a peer without a known public key",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runWhitelistAdd,
}

var whitelistAddKeyCmd = &cobra.Command{
	Use:   "add-key <peer-id> <public-key-hex> [name]",
	Short: "Whitelist a peer with a known Ed25519 public key",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runWhitelistAddKey,
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <peer-id>",
	Short: "Remove a peer from the whitelist",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhitelistRemove,
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every whitelisted peer",
	Args:  cobra.NoArgs,
	RunE:  runWhitelistList,
}

var whitelistCheckCmd = &cobra.Command{
	Use:   "check <peer-id>",
	Short: "Check whether a peer is trusted, directly or by one-hop recommendation",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhitelistCheck,
}

var recommendPeerCmd = &cobra.Command{
	Use:   "recommend-peer <target-peer-id> [name]",
	Short: "Record a recommendation from this node's identity for target-peer-id",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRecommendPeer,
}

func init() {
	whitelistCmd.AddCommand(whitelistAddCmd, whitelistAddKeyCmd, whitelistRemoveCmd, whitelistListCmd, whitelistCheckCmd)
	rootCmd.AddCommand(whitelistCmd, recommendPeerCmd)
}

func runWhitelistAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	name := ""
	if len(args) == 2 {
		name = args[1]
	}
	if err := n.whitelist.AddPeer(ctx, args[0], name, nil, nil); err != nil {
		return fmt.Errorf("add peer: %w", err)
	}
	fmt.Printf("whitelisted %s\n", args[0])
	return nil
}

func runWhitelistAddKey(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	publicKey, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}

	name := ""
	if len(args) == 3 {
		name = args[2]
	}
	if err := n.whitelist.AddPeer(ctx, args[0], name, publicKey, nil); err != nil {
		return fmt.Errorf("add peer: %w", err)
	}
	fmt.Printf("whitelisted %s with known key\n", args[0])
	return nil
}

func runWhitelistRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	if err := n.whitelist.RemovePeer(ctx, args[0]); err != nil {
		return fmt.Errorf("remove peer: %w", err)
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}

func runWhitelistList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	entries, err := n.whitelist.ListPeers(ctx)
	if err != nil {
		return fmt.Errorf("list peers: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("no whitelisted peers")
		return nil
	}

	fmt.Printf("whitelisted peers (%d):\n", len(entries))
	for _, e := range entries {
		hasKey := len(e.PublicKey) > 0
		fmt.Printf("  %s  name=%q  has_key=%v  recommendations=%d\n", e.PeerID, e.Name, hasKey, e.RecommendationCount)
	}
	return nil
}

func runWhitelistCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	trusted, err := n.whitelist.IsTrustedByChain(ctx, args[0])
	if err != nil {
		return fmt.Errorf("check trust: %w", err)
	}
	fmt.Printf("%s trusted=%v\n", args[0], trusted)
	return nil
}

func runRecommendPeer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	name := ""
	if len(args) == 2 {
		name = args[1]
	}
	if err := n.whitelist.AddRecommendation(ctx, args[0], n.local.PeerID(), name); err != nil {
		return fmt.Errorf("add recommendation: %w", err)
	}
	fmt.Printf("%s now recommends %s\n", n.local.PeerID(), args[0])
	return nil
}
