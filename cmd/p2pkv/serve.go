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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sage-x-project/p2pkv/health"
	"github.com/sage-x-project/p2pkv/internal/metrics"
	"github.com/sage-x-project/p2pkv/transport"
	"github.com/spf13/cobra"
)

const serveShutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo relay, metrics, and health endpoints until interrupted",
	Long: `serve binds the local WebSocket demo relay (transport.Relay) next to
a Prometheus /metrics endpoint and a health check endpoint, and runs them
until the process receives SIGINT or SIGTERM. It is the operator-facing
stand-in for a long-running node process; the real gossip/transport fabric
remains out of scope.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newPipelineRelay adapts node.pipeline.HandleMessage, which returns a
// typed *pipeline.Envelope reply, into the plain-bytes transport.Handler
// signature the relay dispatches to.
func newPipelineRelay(n *node) *transport.Relay {
	handler := func(ctx context.Context, sender string, payload []byte) ([]byte, error) {
		reply, err := n.pipeline.HandleMessage(ctx, sender, payload)
		if err != nil || reply == nil {
			return nil, err
		}
		return json.Marshal(reply)
	}
	return transport.NewRelay(handler, n.conns, nil)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	relay := newPipelineRelay(n)

	checker := health.NewHealthChecker(0)
	checker.RegisterCheck("storage", health.DatabaseHealthCheck(n.backend.Ping))
	checker.RegisterCheck("whitelist", func(checkCtx context.Context) error {
		_, err := n.whitelist.ListPeers(checkCtx)
		return err
	})

	relayMux := http.NewServeMux()
	relayMux.Handle("/ws", relay.Handler())
	relayMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.GetSystemHealth(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if result.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
	relayServer := &http.Server{Addr: n.cfg.Node.HealthAddr, Handler: relayMux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: n.cfg.Node.MetricsAddr, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() { errCh <- relayServer.ListenAndServe() }()
	go func() { errCh <- metricsServer.ListenAndServe() }()

	fmt.Printf("serving relay+health on %s, metrics on %s (peer %s)\n", n.cfg.Node.HealthAddr, n.cfg.Node.MetricsAddr, n.local.PeerID())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	_ = relay.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	_ = relayServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	return nil
}
