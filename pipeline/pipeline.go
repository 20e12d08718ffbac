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

// Package pipeline is the inbound message pipeline: admission check,
// envelope decode and verification, trust-chain check, and dispatch to
// either the key/value store or the key-distribution manager. Every
// rejection along the way is recovered locally — the message is dropped
// with a structured log line, and the pipeline keeps running.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sage-x-project/p2pkv/admission"
	"github.com/sage-x-project/p2pkv/config"
	"github.com/sage-x-project/p2pkv/connreg"
	"github.com/sage-x-project/p2pkv/envelope"
	"github.com/sage-x-project/p2pkv/identity"
	"github.com/sage-x-project/p2pkv/internal/logger"
	"github.com/sage-x-project/p2pkv/keydist"
	"github.com/sage-x-project/p2pkv/kvstore"
	"github.com/sage-x-project/p2pkv/whitelist"
)

// Kind tags a Payload's active variant.
type Kind string

const (
	// KindSync carries a key/value mutation.
	KindSync Kind = "sync"
	// KindKeyDistribution carries a key-distribution protocol message.
	KindKeyDistribution Kind = "key_distribution"
)

// Payload is the wire-level tagged union carried inside every signed
// envelope on the shared topic: either a store mutation or a
// key-distribution protocol message.
type Payload struct {
	Kind            Kind                  `json:"kind"`
	Sync            *kvstore.SyncMutation `json:"sync,omitempty"`
	KeyDistribution *keydist.Message      `json:"key_distribution,omitempty"`
}

// Envelope is the concrete signed envelope type gossiped on the shared
// topic.
type Envelope = envelope.Envelope[Payload]

// Pipeline wires together every component on the inbound critical path.
type Pipeline struct {
	local       *identity.Identity
	gate        *admission.Gate
	connections *connreg.Registry
	whitelist   *whitelist.Whitelist
	store       *kvstore.Store
	keydist     *keydist.Manager
	security    config.SecurityConfig
	log         logger.Logger
}

// New builds a Pipeline from its already-constructed collaborators.
func New(
	local *identity.Identity,
	gate *admission.Gate,
	connections *connreg.Registry,
	wl *whitelist.Whitelist,
	store *kvstore.Store,
	kd *keydist.Manager,
	security config.SecurityConfig,
	log logger.Logger,
) *Pipeline {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Pipeline{
		local:       local,
		gate:        gate,
		connections: connections,
		whitelist:   wl,
		store:       store,
		keydist:     kd,
		security:    security,
		log:         log,
	}
}

// HandleMessage runs the full inbound pipeline for a message delivered by
// the transport as (transportSender, payloadBytes). It returns a reply
// envelope to publish on the shared topic, or nil if nothing needs
// publishing — which is also the outcome of every recovered rejection.
func (p *Pipeline) HandleMessage(ctx context.Context, transportSender string, payloadBytes []byte) (*Envelope, error) {
	correlationID := uuid.NewString()
	log := p.log.WithFields(logger.String("correlation_id", correlationID), logger.String("transport_sender", transportSender))

	if err := p.gate.CheckRateLimit(transportSender); err != nil {
		log.Warn("dropping message: rate limited", logger.Error(err))
		return nil, nil
	}

	if !p.connections.IsConnected(transportSender) {
		log.Warn("dropping message: sender not in connection registry")
		return nil, nil
	}

	maxSize := p.security.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	if len(payloadBytes) > maxSize {
		log.Warn("dropping message: exceeds max message size", logger.Int("size", len(payloadBytes)))
		return nil, nil
	}

	var env Envelope
	if err := json.Unmarshal(payloadBytes, &env); err != nil {
		log.Warn("dropping message: failed to decode envelope", logger.Error(err))
		return nil, nil
	}

	if env.Signer == "" {
		log.Warn("dropping message: empty signer")
		return nil, nil
	}

	trusted, err := p.whitelist.IsTrustedByChain(ctx, env.Signer)
	if err != nil {
		return nil, fmt.Errorf("pipeline: trust-chain check for %s: %w", env.Signer, err)
	}
	if !trusted {
		log.Warn("dropping message: signer not trusted", logger.String("signer", env.Signer))
		return nil, nil
	}

	if publicKey, ok, err := p.whitelist.GetPublicKey(ctx, env.Signer); err != nil {
		return nil, fmt.Errorf("pipeline: public key lookup for %s: %w", env.Signer, err)
	} else if ok {
		if err := env.VerifyWithPublicKey(publicKey); err != nil {
			log.Warn("dropping message: signature verification failed", logger.String("signer", env.Signer), logger.Error(err))
			return nil, nil
		}
	}
	// If no public key is known yet, the message is accepted on whitelist
	// membership alone — a documented weakening until a KeyResponse or
	// KeyAnnouncement populates the signer's key.

	switch env.Data.Kind {
	case KindSync:
		return nil, p.applySync(ctx, log, env.Data.Sync)
	case KindKeyDistribution:
		return p.applyKeyDistribution(ctx, log, &env, env.Data.KeyDistribution)
	default:
		log.Warn("dropping message: unknown payload kind", logger.String("kind", string(env.Data.Kind)))
		return nil, nil
	}
}

func (p *Pipeline) applySync(ctx context.Context, log logger.Logger, mutation *kvstore.SyncMutation) error {
	if mutation == nil {
		log.Warn("dropping message: empty sync payload")
		return nil
	}

	maxKeyLength := p.security.MaxKeyLength
	if maxKeyLength <= 0 {
		maxKeyLength = 256
	}
	if err := admission.ValidateKey(mutation.Key, maxKeyLength); err != nil {
		log.Warn("dropping message: invalid key", logger.String("key", admission.SanitizeForLog(mutation.Key)), logger.Error(err))
		return nil
	}

	if mutation.Kind == kvstore.MutationPut {
		maxValueLength := p.security.MaxValueLength
		if maxValueLength <= 0 {
			maxValueLength = 65536
		}
		if err := admission.ValidateValue(mutation.Value, maxValueLength); err != nil {
			log.Warn("dropping message: invalid value", logger.Error(err))
			return nil
		}
	}

	if err := p.store.Apply(ctx, mutation); err != nil {
		log.Error("dropping message: storage apply failed", logger.Error(err))
		return nil
	}
	return nil
}

func (p *Pipeline) applyKeyDistribution(ctx context.Context, log logger.Logger, env *Envelope, msg *keydist.Message) (*Envelope, error) {
	if msg == nil {
		log.Warn("dropping message: empty key distribution payload")
		return nil, nil
	}

	fingerprint, err := env.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to compute envelope fingerprint: %w", err)
	}
	reply, err := p.keydist.HandleMessage(ctx, msg, env.Signer, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("pipeline: key distribution handling: %w", err)
	}
	if reply == nil {
		return nil, nil
	}

	out, err := envelope.Sign(Payload{Kind: KindKeyDistribution, KeyDistribution: reply}, p.local)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to sign reply: %w", err)
	}
	return out, nil
}

// EncodeSyncPut builds, signs, and encodes an outbound put mutation,
// ready to publish on the shared topic.
func (p *Pipeline) EncodeSyncPut(key string, value []byte) ([]byte, error) {
	mutation := &kvstore.SyncMutation{Kind: kvstore.MutationPut, Key: key, Value: value, Timestamp: time.Now().UTC()}
	return p.encodeSync(mutation)
}

// EncodeSyncDelete builds, signs, and encodes an outbound delete mutation.
func (p *Pipeline) EncodeSyncDelete(key string) ([]byte, error) {
	mutation := &kvstore.SyncMutation{Kind: kvstore.MutationDelete, Key: key, Timestamp: time.Now().UTC()}
	return p.encodeSync(mutation)
}

func (p *Pipeline) encodeSync(mutation *kvstore.SyncMutation) ([]byte, error) {
	env, err := envelope.Sign(Payload{Kind: KindSync, Sync: mutation}, p.local)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to sign sync mutation: %w", err)
	}
	return json.Marshal(env)
}
