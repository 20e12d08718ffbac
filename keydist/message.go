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

package keydist

import "time"

// Kind tags a Message as one of the five key-distribution protocol
// variants.
type Kind string

const (
	KeyRequest          Kind = "key_request"
	KeyResponse          Kind = "key_response"
	KeyAnnouncement      Kind = "key_announcement"
	WhitelistRequest     Kind = "whitelist_request"
	TrustRecommendation  Kind = "trust_recommendation"
)

// Message is the tagged union of key-distribution protocol messages. Only
// the fields relevant to Kind are populated; every variant carries a
// Timestamp used for freshness and replay suppression.
type Message struct {
	Kind Kind `json:"kind"`

	// KeyRequest
	Requestor string `json:"requestor,omitempty"`
	Target    string `json:"target,omitempty"`

	// KeyResponse: Target, PublicKey
	// KeyAnnouncement / WhitelistRequest
	PeerID    string `json:"peer_id,omitempty"`
	PublicKey []byte `json:"public_key,omitempty"`
	Name      string `json:"name,omitempty"`

	// TrustRecommendation
	Recommender string `json:"recommender,omitempty"`
	Recommended string `json:"recommended,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
