// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package account

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ID identifies an account. Zero is the invalid sentinel and is never
// assigned to a real account; ids are never reused after deletion.
type ID uint64

// InvalidID is the reserved "no account" sentinel.
const InvalidID ID = 0

// Valid reports whether the id refers to a real account.
func (id ID) Valid() bool { return id != InvalidID }

// Account is an account row. Credentials live in identity links, not here.
type Account struct {
	ID        ID
	CreatedAt time.Time
}

// Method is the authentication method of an identity link. The tag strings
// are persisted as a discriminant column and must stay stable; renaming one
// is a schema migration, not a code change.
type Method string

// Known identity methods.
const (
	MethodEmail Method = "email"
	MethodSteam Method = "steam"
)

// Valid reports whether the method is a known tag.
func (m Method) Valid() bool {
	return m == MethodEmail || m == MethodSteam
}

// IdentityLink binds an account to one way of authenticating. Each method
// value (email address, external id) is unique system-wide.
type IdentityLink struct {
	ID        ulid.ULID
	AccountID ID
	Method    Method

	// Email method fields.
	Email    string
	Verifier []byte
	Salt     []byte

	// Third-party method fields.
	Provider   string
	ExternalID string

	CreatedAt time.Time
}

// NewEmailLink creates a validated email identity link. The verifier and
// salt come from DeriveVerifier / NewSalt; the account id is assigned by the
// store on insert.
func NewEmailLink(email string, verifier, salt []byte) (*IdentityLink, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if len(verifier) == 0 {
		return nil, oops.Code("ACCOUNT_INVALID_LINK").Errorf("verifier cannot be empty")
	}
	if len(salt) == 0 {
		return nil, oops.Code("ACCOUNT_INVALID_LINK").Errorf("salt cannot be empty")
	}
	return &IdentityLink{
		ID:        ulid.Make(),
		Method:    MethodEmail,
		Email:     email,
		Verifier:  verifier,
		Salt:      salt,
		CreatedAt: time.Now(),
	}, nil
}

// NewThirdPartyLink creates a validated third-party identity link.
func NewThirdPartyLink(provider Method, externalID string) (*IdentityLink, error) {
	if provider != MethodSteam {
		return nil, oops.Code("ACCOUNT_INVALID_LINK").
			With("provider", string(provider)).
			Errorf("unknown identity provider")
	}
	if externalID == "" {
		return nil, oops.Code("ACCOUNT_INVALID_LINK").Errorf("external id cannot be empty")
	}
	return &IdentityLink{
		ID:         ulid.Make(),
		Method:     provider,
		Provider:   string(provider),
		ExternalID: externalID,
		CreatedAt:  time.Now(),
	}, nil
}

// ValidateEmail checks that the address is parseable and bare (no display
// name, no angle brackets).
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("invalid email address")
	}
	return nil
}

// Credential is the proof material stored for an email identity link.
type Credential struct {
	AccountID ID
	Salt      []byte
	Verifier  []byte
}

// Store manages account and identity-link persistence. It exclusively owns
// both row kinds.
type Store interface {
	// CreateAccount inserts a new account with its initial identity link in
	// one transaction. Returns ErrEmailExists (or ErrAlreadyExists for
	// third-party links) when the method value is already taken.
	CreateAccount(ctx context.Context, initial *IdentityLink) (ID, error)

	// Exists reports whether an account row exists.
	Exists(ctx context.Context, id ID) (bool, error)

	// VerifierFor returns the stored salt and verifier for an email.
	// Returns ErrNotFound if no email link matches.
	VerifierFor(ctx context.Context, email string) (*Credential, error)

	// LinkIdentity attaches an additional identity link to an account.
	LinkIdentity(ctx context.Context, id ID, link *IdentityLink) error

	// UnlinkIdentity removes one identity link. Returns ErrLastCredential
	// if the link is the account's only remaining one.
	UnlinkIdentity(ctx context.Context, id ID, method Method) error

	// ReplaceCredentials swaps the verifier and salt of the account's email
	// link and revokes every outstanding token for the account, atomically.
	ReplaceCredentials(ctx context.Context, id ID, verifier, salt []byte) error

	// DeleteAccount removes an account and, via cascade, its links.
	DeleteAccount(ctx context.Context, id ID) error
}
