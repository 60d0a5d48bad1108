// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
)

// LoginSalt returns the salt and KDF parameters for an email. Unknown
// addresses get a deterministic fake salt so the response shape never
// reveals whether the address is registered.
func (e *Engine) LoginSalt(ctx context.Context, email string) ([]byte, account.KDFParams, error) {
	params := account.Params()

	cred, err := e.accounts.VerifierFor(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.FakeSalt(e.enumKey, strings.ToLower(email)), params, nil
		}
		return nil, params, oops.Code("AUTH_SALT_LOOKUP_FAILED").
			With("operation", "get credential").
			Wrap(err)
	}
	return cred.Salt, params, nil
}

// CompleteLogin verifies a proof and issues a session certificate. Unknown
// email and wrong proof produce the same ErrBadCredentials, and the
// expensive verifier derivation runs in both paths to keep timing close.
func (e *Engine) CompleteLogin(ctx context.Context, email string, data SessionData) (*Session, error) {
	cred, err := e.accounts.VerifierFor(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			fakeSalt := account.FakeSalt(e.enumKey, strings.ToLower(email))
			_, _ = account.DeriveVerifier(data.Proof, fakeSalt) //nolint:errcheck // Burn the same work as the real path
			return nil, oops.Code("AUTH_BAD_CREDENTIALS").Wrap(ErrBadCredentials)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get credential").
			Wrap(err)
	}

	ok, err := account.VerifyProof(data.Proof, cred.Salt, cred.Verifier)
	if err != nil {
		return nil, oops.Code("AUTH_BAD_CREDENTIALS").Wrap(ErrBadCredentials)
	}
	if !ok {
		return nil, oops.Code("AUTH_BAD_CREDENTIALS").Wrap(ErrBadCredentials)
	}

	session, err := e.newSession(cred.AccountID, data.PublicKey)
	if err != nil {
		return nil, err
	}

	e.logger.Info("login succeeded", "account_id", uint64(cred.AccountID))
	return session, nil
}
