// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
)

// Kind classifies a single-use token. The tag strings are persisted as a
// discriminant column and must stay stable across releases.
type Kind string

// Known token kinds.
const (
	KindOTP           Kind = "otp"
	KindRegister      Kind = "register"
	KindLogin         Kind = "login"
	KindPasswordReset Kind = "password_reset"
)

// Valid reports whether the kind is a known tag.
func (k Kind) Valid() bool {
	switch k {
	case KindOTP, KindRegister, KindLogin, KindPasswordReset:
		return true
	}
	return false
}

// Secret sizing. Non-OTP secrets carry 256 bits of entropy; OTPs are shorter
// (50 bits) but capped at OTPLiveCap outstanding codes per requester.
const (
	SecretBytes = 32
	OTPLength   = 10

	// OTPLiveCap is the maximum number of concurrently valid OTPs per
	// requester. Issuing one beyond the cap evicts the oldest.
	OTPLiveCap = 3
)

const otpAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Token is a stored single-use token. Only the hash of the secret is kept;
// the secret itself exists once, in the issuance response.
type Token struct {
	ID        ulid.ULID
	Kind      Kind
	Method    account.Method
	Hash      string
	AccountID account.ID
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its TTL at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// NewSecret returns a fresh random token secret, hex encoded.
func NewSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATION_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// NewOTP returns a fresh random one-time code drawn from the upper-case
// base32 alphabet, which avoids ambiguous glyph pairs like 0/O and 1/l.
func NewOTP() (string, error) {
	buf := make([]byte, OTPLength)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATION_FAILED").Wrap(err)
	}
	code := make([]byte, OTPLength)
	for i, b := range buf {
		code[i] = otpAlphabet[int(b)%len(otpAlphabet)]
	}
	return string(code), nil
}

// HashSecret derives the storage form of a token secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
