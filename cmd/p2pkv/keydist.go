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
	"encoding/json"
	"fmt"

	"github.com/sage-x-project/p2pkv/envelope"
	"github.com/sage-x-project/p2pkv/pipeline"
	"github.com/spf13/cobra"
)

var announceKeyCmd = &cobra.Command{
	Use:   "announce-key",
	Short: "Print a signed key-announcement envelope for this node's identity",
	Args:  cobra.NoArgs,
	RunE:  runAnnounceKey,
}

var requestKeysCmd = &cobra.Command{
	Use:   "request-keys",
	Short: "Print signed key-request envelopes for every whitelisted peer missing a public key",
	Args:  cobra.NoArgs,
	RunE:  runRequestKeys,
}

var requestWhitelistCmd = &cobra.Command{
	Use:   "request-whitelist [name]",
	Short: "Print a signed whitelist-request envelope asking to be whitelisted",
	Args:  cobra.RangeArgs(0, 1),
	RunE:  runRequestWhitelist,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Evict expired pending-request and replay-cache entries",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

var reloadCacheCmd = &cobra.Command{
	Use:   "reload-cache",
	Short: "Reload the in-memory whitelist membership cache from storage",
	Args:  cobra.NoArgs,
	RunE:  runReloadCache,
}

func init() {
	rootCmd.AddCommand(announceKeyCmd, requestKeysCmd, requestWhitelistCmd, cleanupCmd, reloadCacheCmd)
}

func printKeyDistributionEnvelope(n *node, payload pipeline.Payload) error {
	env, err := envelope.Sign(payload, n.local)
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	fmt.Println(string(raw))
	return nil
}

func runAnnounceKey(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	msg := n.keydist.CreateKeyAnnouncement()
	return printKeyDistributionEnvelope(n, pipeline.Payload{Kind: pipeline.KindKeyDistribution, KeyDistribution: msg})
}

func runRequestKeys(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	messages, err := n.keydist.RequestMissingKeys(ctx)
	if err != nil {
		return fmt.Errorf("request missing keys: %w", err)
	}

	if len(messages) == 0 {
		fmt.Println("no peers missing a public key")
		return nil
	}

	for _, msg := range messages {
		if err := printKeyDistributionEnvelope(n, pipeline.Payload{Kind: pipeline.KindKeyDistribution, KeyDistribution: msg}); err != nil {
			return err
		}
	}
	return nil
}

func runRequestWhitelist(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	msg := n.keydist.CreateWhitelistRequest(name)
	return printKeyDistributionEnvelope(n, pipeline.Payload{Kind: pipeline.KindKeyDistribution, KeyDistribution: msg})
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	n.keydist.Cleanup()
	fmt.Println("cleanup complete")
	return nil
}

func runReloadCache(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	if err := n.whitelist.ReloadCache(ctx); err != nil {
		return fmt.Errorf("reload cache: %w", err)
	}
	fmt.Println("whitelist cache reloaded")
	return nil
}
