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

// RequestRegisterToken starts registration for an email address. The token
// secret is both returned and mailed; registration completes only when the
// token is exchanged, so handing it out here creates nothing yet.
// Returns account.ErrEmailExists when the address already has an account.
func (e *Engine) RequestRegisterToken(ctx context.Context, email string) (string, error) {
	if err := account.ValidateEmail(email); err != nil {
		return "", err
	}

	_, err := e.accounts.VerifierFor(ctx, email)
	if err == nil {
		return "", oops.Code("AUTH_EMAIL_EXISTS").
			With("email", email).
			Wrap(account.ErrEmailExists)
	}
	if !errors.Is(err, account.ErrNotFound) {
		return "", oops.Code("AUTH_REGISTER_REQUEST_FAILED").
			With("operation", "check email").
			Wrap(err)
	}

	secret, _, err := e.tokens.Issue(ctx, token.Request{
		Kind:  token.KindRegister,
		Email: email,
	})
	if err != nil {
		return "", oops.Code("AUTH_REGISTER_REQUEST_FAILED").
			With("operation", "issue register token").
			Wrap(err)
	}

	e.sendMail(ctx, mailer.Mail{
		To:      email,
		Subject: "Finish creating your account",
		Body:    "Your registration token: " + secret,
	})
	e.logger.Info("register token issued", "email", email)
	return secret, nil
}

// CompleteRegistration exchanges a register token for a new account and its
// first session certificate. The exchange races safely with duplicate
// registrations: account creation is one transaction, so exactly one of any
// concurrent set succeeds and the rest get account.ErrEmailExists.
func (e *Engine) CompleteRegistration(ctx context.Context, registerToken string, data SessionData) (*Session, error) {
	tok, err := e.tokens.Consume(ctx, token.KindRegister, registerToken)
	if err != nil {
		return nil, err
	}

	salt, err := account.NewSalt()
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "generate salt").
			Wrap(err)
	}
	verifier, err := account.DeriveVerifier(data.Proof, salt)
	if err != nil {
		return nil, err
	}

	link, err := account.NewEmailLink(tok.Email, verifier, salt)
	if err != nil {
		return nil, err
	}

	id, err := e.accounts.CreateAccount(ctx, link)
	if err != nil {
		return nil, err
	}

	session, err := e.newSession(id, data.PublicKey)
	if err != nil {
		return nil, err
	}
	// A fresh account still has to verify its email address; flows that
	// re-prove an existing identity (reset, account token) do not.
	session.RequiresVerification = true

	e.logger.Info("account created", "account_id", uint64(id))
	return session, nil
}
