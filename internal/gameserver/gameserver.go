// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

// Package gameserver identifies game-server groups and gates privileged
// administrative actions on them.
package gameserver

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/samber/oops"
)

// ErrUnauthorized is returned when an admin action presents the wrong shared
// secret.
var ErrUnauthorized = errors.New("unauthorized")

// GroupID identifies a game-server group. It is the raw Ed25519 public key
// of the group; no registration step or storage is involved.
type GroupID [ed25519.PublicKeySize]byte

// GroupIDFromPublicKey derives the group id from a public key. Pure and
// deterministic: the identity is the key bytes themselves.
func GroupIDFromPublicKey(pk ed25519.PublicKey) (GroupID, error) {
	if len(pk) != ed25519.PublicKeySize {
		return GroupID{}, oops.Code("GAMESERVER_KEY_INVALID").
			With("length", len(pk)).
			Errorf("group public key must be %d bytes", ed25519.PublicKeySize)
	}
	var id GroupID
	copy(id[:], pk)
	return id, nil
}

// PublicKey returns the group id as a public key again.
func (g GroupID) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(g[:])
}

func (g GroupID) String() string {
	return hex.EncodeToString(g[:])
}

// ParseGroupID decodes a hex group id string.
func ParseGroupID(s string) (GroupID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return GroupID{}, oops.Code("GAMESERVER_KEY_INVALID").Wrap(err)
	}
	return GroupIDFromPublicKey(raw)
}

// AdminVerifier checks the shared admin secret. Only a digest of the secret
// is retained, and comparison runs in constant time.
type AdminVerifier struct {
	digest [sha256.Size]byte
}

// NewAdminVerifier creates a verifier for the given shared secret.
func NewAdminVerifier(secret string) *AdminVerifier {
	return &AdminVerifier{digest: sha256.Sum256([]byte(secret))}
}

// Verify reports whether the presented password matches the shared secret.
func (v *AdminVerifier) Verify(password string) bool {
	presented := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(presented[:], v.digest[:]) == 1
}

// VerifyAction is Verify with the domain sentinel for callers that
// propagate errors instead of booleans.
func (v *AdminVerifier) VerifyAction(password string) error {
	if !v.Verify(password) {
		return oops.Code("GAMESERVER_UNAUTHORIZED").Wrap(ErrUnauthorized)
	}
	return nil
}
