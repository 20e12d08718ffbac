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
	"time"

	"github.com/sage-x-project/p2pkv/admission"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <key> <value>",
	Short: "Add or update a key/value pair, stamping it with the current time",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Retrieve the value stored for a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every live key/value pair",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(addCmd, getCmd, deleteCmd, listCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	key, value := args[0], args[1]
	if err := admission.ValidateKey(key, n.cfg.Node.Security.MaxKeyLength); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	if err := admission.ValidateValue([]byte(value), n.cfg.Node.Security.MaxValueLength); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	if err := n.store.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	envelope, err := n.pipeline.EncodeSyncPut(key, []byte(value))
	if err != nil {
		return fmt.Errorf("sign put envelope: %w", err)
	}

	fmt.Printf("added %s = %s\n", key, value)
	fmt.Println(string(envelope))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	entry, err := n.store.Get(ctx, args[0])
	if err != nil {
		fmt.Printf("%s not found\n", args[0])
		return nil
	}

	fmt.Printf("%s = %s\n", entry.Key, string(entry.Value))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	key := args[0]
	if err := n.store.DeleteWithTimestamp(ctx, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	envelope, err := n.pipeline.EncodeSyncDelete(key)
	if err != nil {
		return fmt.Errorf("sign delete envelope: %w", err)
	}

	fmt.Printf("deleted %s\n", key)
	fmt.Println(string(envelope))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	entries, err := n.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("no items stored")
		return nil
	}

	fmt.Printf("stored items (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s = %s\n", e.Key, string(e.Value))
	}
	return nil
}
