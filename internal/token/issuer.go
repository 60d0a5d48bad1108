// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package token

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
)

// Store persists single-use tokens. Implementations must make Consume
// linearizable: of any number of concurrent calls presenting the same
// secret, exactly one succeeds.
type Store interface {
	// Insert stores a new token.
	Insert(ctx context.Context, tok *Token) error

	// InsertOTPCapped stores an OTP, evicting the requester's oldest live
	// OTP first when the cap would otherwise be exceeded. Count and evict
	// happen in one transaction.
	InsertOTPCapped(ctx context.Context, tok *Token, cap int) error

	// Consume atomically removes the token matching (kind, hash) and
	// returns it. Returns ErrNotFound when no row matches, ErrExpired when
	// the matched token is past its TTL, and account.ErrNotFound when the
	// token references an account that no longer exists. The existence
	// check runs in the same transaction as the removal.
	Consume(ctx context.Context, kind Kind, hash string, now time.Time) (*Token, error)

	// RevokeAll removes every live token referencing the account.
	RevokeAll(ctx context.Context, id account.ID) error

	// SweepExpired removes tokens past their TTL and reports how many.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// TTLs holds the per-kind token lifetimes.
type TTLs struct {
	OTP           time.Duration
	Register      time.Duration
	Login         time.Duration
	PasswordReset time.Duration
}

// DefaultTTLs returns the stock lifetime policy.
func DefaultTTLs() TTLs {
	return TTLs{
		OTP:           10 * time.Minute,
		Register:      30 * time.Minute,
		Login:         time.Hour,
		PasswordReset: time.Hour,
	}
}

// For returns the TTL for a kind.
func (t TTLs) For(kind Kind) time.Duration {
	switch kind {
	case KindOTP:
		return t.OTP
	case KindRegister:
		return t.Register
	case KindLogin:
		return t.Login
	case KindPasswordReset:
		return t.PasswordReset
	}
	return 0
}

// Request describes the token to issue. Either AccountID or Email (or both)
// identifies the requester, depending on the kind.
type Request struct {
	Kind      Kind
	Method    account.Method
	AccountID account.ID
	Email     string
}

// Issuer mints and redeems single-use tokens according to the TTL policy.
type Issuer struct {
	store Store
	ttls  TTLs
	now   func() time.Time
}

// NewIssuer creates an Issuer backed by the given store.
func NewIssuer(store Store, ttls TTLs) *Issuer {
	return &Issuer{store: store, ttls: ttls, now: time.Now}
}

// Issue mints a token and returns its secret alongside the stored form.
// The secret is not recoverable afterwards.
func (i *Issuer) Issue(ctx context.Context, req Request) (string, *Token, error) {
	if !req.Kind.Valid() {
		return "", nil, oops.Code("TOKEN_KIND_INVALID").
			With("kind", string(req.Kind)).
			Errorf("unknown token kind")
	}

	var secret string
	var err error
	if req.Kind == KindOTP {
		secret, err = NewOTP()
	} else {
		secret, err = NewSecret()
	}
	if err != nil {
		return "", nil, err
	}

	now := i.now()
	tok := &Token{
		ID:        ulid.Make(),
		Kind:      req.Kind,
		Method:    req.Method,
		Hash:      HashSecret(secret),
		AccountID: req.AccountID,
		Email:     req.Email,
		ExpiresAt: now.Add(i.ttls.For(req.Kind)),
		CreatedAt: now,
	}
	if tok.Method == "" {
		tok.Method = account.MethodEmail
	}

	if req.Kind == KindOTP {
		err = i.store.InsertOTPCapped(ctx, tok, OTPLiveCap)
	} else {
		err = i.store.Insert(ctx, tok)
	}
	if err != nil {
		return "", nil, err
	}
	return secret, tok, nil
}

// IssueOTPs mints up to OTPLiveCap one-time codes in a single call. Asking
// for more returns ErrQuotaExceeded; the cap still applies across calls, so
// each new code can evict the requester's oldest live one.
func (i *Issuer) IssueOTPs(ctx context.Context, req Request, count int) ([]string, error) {
	if count < 1 || count > OTPLiveCap {
		return nil, oops.Code("TOKEN_QUOTA_EXCEEDED").
			With("count", count).
			With("cap", OTPLiveCap).
			Wrap(ErrQuotaExceeded)
	}
	req.Kind = KindOTP

	secrets := make([]string, 0, count)
	for range count {
		secret, _, err := i.Issue(ctx, req)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}
	return secrets, nil
}

// Consume redeems a secret for its token, removing it in the same step.
func (i *Issuer) Consume(ctx context.Context, kind Kind, secret string) (*Token, error) {
	return i.store.Consume(ctx, kind, HashSecret(secret), i.now())
}

// RevokeAll invalidates every live token referencing the account.
func (i *Issuer) RevokeAll(ctx context.Context, id account.ID) error {
	return i.store.RevokeAll(ctx, id)
}

// SweepExpired removes tokens past their TTL. Expired tokens are already
// unusable; the sweep just reclaims rows.
func (i *Issuer) SweepExpired(ctx context.Context) (int64, error) {
	return i.store.SweepExpired(ctx, i.now())
}
