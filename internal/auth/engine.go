// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/certauth"
	"github.com/aetherforge/accounts/internal/gameserver"
	"github.com/aetherforge/accounts/internal/mailer"
	"github.com/aetherforge/accounts/internal/token"
	"github.com/aetherforge/accounts/pkg/errutil"
)

// TokenIssuer is the slice of the token issuer the engine needs.
type TokenIssuer interface {
	Issue(ctx context.Context, req token.Request) (string, *token.Token, error)
	IssueOTPs(ctx context.Context, req token.Request, count int) ([]string, error)
	Consume(ctx context.Context, kind token.Kind, secret string) (*token.Token, error)
	RevokeAll(ctx context.Context, id account.ID) error
}

// SessionData is the client-supplied material for flows that end in a
// session certificate: the proof authenticates, the public key gets signed.
type SessionData struct {
	Proof     []byte
	PublicKey ed25519.PublicKey
}

// Session is the success payload shared by registration, password reset, and
// account-token redemption: the account now holds fresh session credentials.
type Session struct {
	AccountID            account.ID
	Certificate          []byte
	RequiresVerification bool
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Accounts  account.Store
	Tokens    TokenIssuer
	Authority *certauth.Authority
	Admin     *gameserver.AdminVerifier
	Mail      mailer.Mailer
	Logger    *slog.Logger

	// EnumerationKey feeds the deterministic fake salt for unknown emails.
	// Generated at startup when empty; restarts then change the fake salts,
	// which is acceptable since real salts never change this way.
	EnumerationKey []byte

	// CertValidity overrides the session certificate lifetime.
	CertValidity time.Duration
}

// Engine coordinates the account protocol flows. All mutable state lives in
// the stores; the engine itself is safe for concurrent use.
type Engine struct {
	accounts     account.Store
	tokens       TokenIssuer
	authority    *certauth.Authority
	admin        *gameserver.AdminVerifier
	mail         mailer.Mailer
	logger       *slog.Logger
	enumKey      []byte
	certValidity time.Duration
}

// NewEngine creates an Engine, validating required dependencies.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Accounts == nil {
		return nil, oops.Code("ENGINE_INVALID_DEPS").Errorf("account store is required")
	}
	if deps.Tokens == nil {
		return nil, oops.Code("ENGINE_INVALID_DEPS").Errorf("token issuer is required")
	}
	if deps.Authority == nil {
		return nil, oops.Code("ENGINE_INVALID_DEPS").Errorf("certificate authority is required")
	}
	if deps.Admin == nil {
		return nil, oops.Code("ENGINE_INVALID_DEPS").Errorf("admin verifier is required")
	}
	if deps.Mail == nil {
		return nil, oops.Code("ENGINE_INVALID_DEPS").Errorf("mailer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enumKey := deps.EnumerationKey
	if len(enumKey) == 0 {
		enumKey = make([]byte, 32)
		if _, err := rand.Read(enumKey); err != nil {
			return nil, oops.Code("ENGINE_INIT_FAILED").
				With("operation", "generate enumeration key").
				Wrap(err)
		}
	}

	validity := deps.CertValidity
	if validity <= 0 {
		validity = certauth.DefaultValidity
	}

	return &Engine{
		accounts:     deps.Accounts,
		tokens:       deps.Tokens,
		authority:    deps.Authority,
		admin:        deps.Admin,
		mail:         deps.Mail,
		logger:       logger,
		enumKey:      enumKey,
		certValidity: validity,
	}, nil
}

// sendMail dispatches best-effort mail. Enumeration-sensitive flows must not
// surface delivery failures to the caller.
func (e *Engine) sendMail(ctx context.Context, mail mailer.Mail) {
	if err := e.mail.Send(ctx, mail); err != nil {
		errutil.LogError(e.logger, "mail dispatch failed", err)
	}
}

func (e *Engine) newSession(id account.ID, pub ed25519.PublicKey) (*Session, error) {
	der, err := e.authority.SignSession(id, pub, e.certValidity)
	if err != nil {
		return nil, oops.Code("AUTH_CERT_SIGN_FAILED").
			With("account_id", uint64(id)).
			Wrap(err)
	}
	return &Session{AccountID: id, Certificate: der}, nil
}
