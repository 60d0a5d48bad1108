// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/mailer"
	"github.com/aetherforge/accounts/internal/token"
)

// ForgotPassword starts credential replacement. It succeeds whether or not
// the email has an account, so callers can always answer "accepted";
// only store failures surface.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	cred, err := e.accounts.VerifierFor(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "get credential").
			Wrap(err)
	}

	secret, _, err := e.tokens.Issue(ctx, token.Request{
		Kind:      token.KindPasswordReset,
		AccountID: cred.AccountID,
		Email:     email,
	})
	if err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}

	e.sendMail(ctx, mailer.Mail{
		To:      email,
		Subject: "Reset your password",
		Body:    "Your password reset code: " + secret,
	})
	e.logger.Info("password reset token issued", "account_id", uint64(cred.AccountID))
	return nil
}

// ResetPassword exchanges a reset code for replaced credentials and a fresh
// session. Consuming the code re-validates the account inside the same
// transaction, and the credential swap revokes every outstanding token for
// the account atomically, so nothing issued under the old credentials
// survives.
func (e *Engine) ResetPassword(ctx context.Context, resetCode string, data SessionData) (*Session, error) {
	tok, err := e.tokens.Consume(ctx, token.KindPasswordReset, resetCode)
	if err != nil {
		return nil, err
	}

	salt, err := account.NewSalt()
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "generate salt").
			Wrap(err)
	}
	verifier, err := account.DeriveVerifier(data.Proof, salt)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.ReplaceCredentials(ctx, tok.AccountID, verifier, salt); err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "replace credentials").
			With("account_id", uint64(tok.AccountID)).
			Wrap(err)
	}

	session, err := e.newSession(tok.AccountID, data.PublicKey)
	if err != nil {
		return nil, err
	}

	e.logger.Info("credentials replaced", "account_id", uint64(tok.AccountID))
	return session, nil
}
