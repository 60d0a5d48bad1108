// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package account

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// KDF parameters for the server-side verifier derivation. The client sends a
// fixed-length proof already hardened on its side; the server hardens it
// again with a per-account salt so a stolen database cannot replay proofs.
const (
	ProofLen = 32
	SaltLen  = 16

	kdfMemory  = 64 * 1024
	kdfTime    = 1
	kdfThreads = 4
	kdfKeyLen  = 32
)

// KDFParams describes the verifier derivation so clients can mirror it.
type KDFParams struct {
	Memory  uint32 `json:"memory"`
	Time    uint32 `json:"time"`
	Threads uint8  `json:"threads"`
	KeyLen  uint32 `json:"key_len"`
}

// Params returns the active KDF parameters. Changing them invalidates every
// stored verifier, so treat them as part of the schema.
func Params() KDFParams {
	return KDFParams{Memory: kdfMemory, Time: kdfTime, Threads: kdfThreads, KeyLen: kdfKeyLen}
}

// NewSalt returns a fresh random per-account salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("SALT_GENERATION_FAILED").Wrap(err)
	}
	return salt, nil
}

// DeriveVerifier hardens a client proof with the account's salt. The result
// is what gets persisted; the raw proof never touches storage.
func DeriveVerifier(proof, salt []byte) ([]byte, error) {
	if len(proof) != ProofLen {
		return nil, oops.Code("PROOF_INVALID").
			With("length", len(proof)).
			Errorf("proof must be %d bytes", ProofLen)
	}
	if len(salt) != SaltLen {
		return nil, oops.Code("SALT_INVALID").
			With("length", len(salt)).
			Errorf("salt must be %d bytes", SaltLen)
	}
	return argon2.IDKey(proof, salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen), nil
}

// VerifyProof re-derives the verifier from the submitted proof and compares
// it against the stored one in constant time.
func VerifyProof(proof, salt, verifier []byte) (bool, error) {
	derived, err := DeriveVerifier(proof, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(derived, verifier) == 1, nil
}

// FakeSalt derives a deterministic salt for an email with no account. Login
// salt lookups answer with it so the response shape and timing never reveal
// whether the address is registered.
func FakeSalt(key []byte, email string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(email))
	return mac.Sum(nil)[:SaltLen]
}
