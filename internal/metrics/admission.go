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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitChecks tracks the outcome of every rate-limiter admission check.
	RateLimitChecks = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "rate_limit_checks_total",
			Help:      "Outcomes of per-sender rate-limit checks",
		},
		[]string{"result"}, // ok, rate_exceeded, burst_exceeded
	)

	// ConnectionChecks tracks per-IP connection admission outcomes.
	ConnectionChecks = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "connection_checks_total",
			Help:      "Outcomes of per-IP connection admission checks",
		},
		[]string{"result"}, // ok, limit_exceeded
	)

	// PeerAllowedChecks tracks peer-allowed decisions (blocklist/whitelist).
	PeerAllowedChecks = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "peer_allowed_checks_total",
			Help:      "Outcomes of peer admission decisions",
		},
		[]string{"result"}, // ok, blocked, not_whitelisted
	)

	// ConnectionsPerIP tracks the current fan-in gauge per remote address count.
	ConnectionsPerIP = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "tracked_ips",
			Help:      "Number of distinct remote IPs with at least one open connection",
		},
	)
)
