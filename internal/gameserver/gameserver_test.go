// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package gameserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupIDFromPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	id, err := GroupIDFromPublicKey(pub)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), id[:])
	assert.True(t, id.PublicKey().Equal(pub))

	again, err := GroupIDFromPublicKey(pub)
	require.NoError(t, err)
	assert.Equal(t, id, again, "derivation is deterministic")
}

func TestGroupIDFromPublicKeyRejectsBadLength(t *testing.T) {
	_, err := GroupIDFromPublicKey(make([]byte, 16))
	assert.Error(t, err)
}

func TestParseGroupIDRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	id, err := GroupIDFromPublicKey(pub)
	require.NoError(t, err)

	parsed, err := ParseGroupID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseGroupIDInvalid(t *testing.T) {
	_, err := ParseGroupID("not-hex")
	assert.Error(t, err)

	_, err = ParseGroupID("abcd")
	assert.Error(t, err, "too short after decoding")
}

func TestAdminVerifier(t *testing.T) {
	v := NewAdminVerifier("correct horse battery staple")

	assert.True(t, v.Verify("correct horse battery staple"))
	assert.False(t, v.Verify("wrong"))
	assert.False(t, v.Verify(""))

	assert.NoError(t, v.VerifyAction("correct horse battery staple"))
	assert.ErrorIs(t, v.VerifyAction("wrong"), ErrUnauthorized)
}
