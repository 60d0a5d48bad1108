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

// RequestAccountToken mails a password-less re-auth token to an email.
// Like ForgotPassword it succeeds whether or not the address has an account.
func (e *Engine) RequestAccountToken(ctx context.Context, email string) error {
	cred, err := e.accounts.VerifierFor(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.logger.Debug("account token requested for unknown email")
			return nil
		}
		return oops.Code("AUTH_ACCOUNT_TOKEN_FAILED").
			With("operation", "get credential").
			Wrap(err)
	}

	secret, _, err := e.tokens.Issue(ctx, token.Request{
		Kind:      token.KindLogin,
		AccountID: cred.AccountID,
		Email:     email,
	})
	if err != nil {
		return oops.Code("AUTH_ACCOUNT_TOKEN_FAILED").
			With("operation", "issue account token").
			Wrap(err)
	}

	e.sendMail(ctx, mailer.Mail{
		To:      email,
		Subject: "Your account token",
		Body:    "Your account token: " + secret,
	})
	e.logger.Info("account token issued", "account_id", uint64(cred.AccountID))
	return nil
}

// RedeemAccountToken exchanges an account token for a session certificate.
// Token consumption re-validates the account in the same transaction, so a
// token outliving its account fails with account.ErrNotFound.
func (e *Engine) RedeemAccountToken(ctx context.Context, secret string, data SessionData) (*Session, error) {
	tok, err := e.tokens.Consume(ctx, token.KindLogin, secret)
	if err != nil {
		return nil, err
	}

	session, err := e.newSession(tok.AccountID, data.PublicKey)
	if err != nil {
		return nil, err
	}

	e.logger.Info("account token redeemed", "account_id", uint64(tok.AccountID))
	return session, nil
}

// RevokeSessions exchanges an account token to revoke every outstanding
// token for its account. The account token itself is consumed either way.
func (e *Engine) RevokeSessions(ctx context.Context, secret string) error {
	tok, err := e.tokens.Consume(ctx, token.KindLogin, secret)
	if err != nil {
		return err
	}

	if err := e.tokens.RevokeAll(ctx, tok.AccountID); err != nil {
		return oops.Code("AUTH_REVOKE_FAILED").
			With("operation", "revoke sessions").
			With("account_id", uint64(tok.AccountID)).
			Wrap(err)
	}

	e.logger.Info("sessions revoked", "account_id", uint64(tok.AccountID))
	return nil
}

// DeleteAccount removes the account an account token refers to. Identity
// links and outstanding tokens go with it via cascade.
func (e *Engine) DeleteAccount(ctx context.Context, secret string) error {
	tok, err := e.tokens.Consume(ctx, token.KindLogin, secret)
	if err != nil {
		return err
	}

	if err := e.accounts.DeleteAccount(ctx, tok.AccountID); err != nil {
		return oops.Code("AUTH_DELETE_FAILED").
			With("operation", "delete account").
			With("account_id", uint64(tok.AccountID)).
			Wrap(err)
	}

	e.logger.Info("account deleted", "account_id", uint64(tok.AccountID))
	return nil
}
