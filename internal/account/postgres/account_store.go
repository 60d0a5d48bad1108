// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/store"
)

// AccountStore implements account.Store using PostgreSQL.
type AccountStore struct {
	db store.DB
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db store.DB) *AccountStore {
	return &AccountStore{db: db}
}

// CreateAccount inserts the account row and its initial identity link in one
// transaction. The account id comes from a forward-only identity sequence,
// so deleted ids are never handed out again.
func (s *AccountStore) CreateAccount(ctx context.Context, initial *account.IdentityLink) (account.ID, error) {
	var id account.ID
	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO accounts DEFAULT VALUES RETURNING id
		`)
		if err := row.Scan(&id); err != nil {
			return oops.Code("ACCOUNT_CREATE_FAILED").
				With("operation", "insert account").
				Wrap(err)
		}
		return insertLink(ctx, tx, id, initial)
	})
	if err != nil {
		return account.InvalidID, err
	}
	return id, nil
}

// Exists reports whether an account row exists.
func (s *AccountStore) Exists(ctx context.Context, id account.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)
	`, uint64(id)).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("operation", "check account existence").
			With("account_id", uint64(id)).
			Wrap(err)
	}
	return exists, nil
}

// VerifierFor retrieves the stored credential for an email (case-insensitive).
func (s *AccountStore) VerifierFor(ctx context.Context, email string) (*account.Credential, error) {
	var cred account.Credential
	err := s.db.QueryRow(ctx, `
		SELECT account_id, salt, verifier
		FROM identity_links
		WHERE method = 'email' AND LOWER(email) = LOWER($1)
	`, email).Scan(&cred.AccountID, &cred.Salt, &cred.Verifier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_VERIFIER_LOOKUP_FAILED").
			With("operation", "get credential by email").
			With("email", email).
			Wrap(err)
	}
	return &cred, nil
}

// LinkIdentity attaches an additional identity link to an existing account.
func (s *AccountStore) LinkIdentity(ctx context.Context, id account.ID, link *account.IdentityLink) error {
	return insertLink(ctx, s.db, id, link)
}

// UnlinkIdentity removes one identity link. The remaining-link count is read
// under FOR UPDATE so two concurrent unlinks cannot both pass the
// last-credential check.
func (s *AccountStore) UnlinkIdentity(ctx context.Context, id account.ID, method account.Method) error {
	return store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var total int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM identity_links
			WHERE account_id = $1
			FOR UPDATE
		`, uint64(id)).Scan(&total)
		if err != nil {
			return oops.Code("ACCOUNT_UNLINK_FAILED").
				With("operation", "count identity links").
				With("account_id", uint64(id)).
				Wrap(err)
		}
		if total <= 1 {
			return oops.Code("ACCOUNT_LAST_CREDENTIAL").
				With("account_id", uint64(id)).
				Wrap(account.ErrLastCredential)
		}

		result, err := tx.Exec(ctx, `
			DELETE FROM identity_links
			WHERE account_id = $1 AND method = $2
		`, uint64(id), string(method))
		if err != nil {
			return oops.Code("ACCOUNT_UNLINK_FAILED").
				With("operation", "delete identity link").
				With("account_id", uint64(id)).
				With("method", string(method)).
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.Code("ACCOUNT_LINK_NOT_FOUND").
				With("account_id", uint64(id)).
				With("method", string(method)).
				Wrap(account.ErrNotFound)
		}
		return nil
	})
}

// ReplaceCredentials swaps the verifier and salt of the account's email link
// and revokes every outstanding token for the account. Both happen in one
// transaction: nothing issued under the old credentials survives the swap.
func (s *AccountStore) ReplaceCredentials(ctx context.Context, id account.ID, verifier, salt []byte) error {
	return store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE identity_links SET verifier = $2, salt = $3
			WHERE account_id = $1 AND method = 'email'
		`, uint64(id), verifier, salt)
		if err != nil {
			return oops.Code("ACCOUNT_REPLACE_CREDENTIALS_FAILED").
				With("operation", "update email credential").
				With("account_id", uint64(id)).
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.Code("ACCOUNT_LINK_NOT_FOUND").
				With("account_id", uint64(id)).
				Wrap(account.ErrNotFound)
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM tokens WHERE account_id = $1
		`, uint64(id)); err != nil {
			return oops.Code("ACCOUNT_REPLACE_CREDENTIALS_FAILED").
				With("operation", "revoke tokens").
				With("account_id", uint64(id)).
				Wrap(err)
		}
		return nil
	})
}

// DeleteAccount removes an account; identity links and tokens go with it via
// cascade.
func (s *AccountStore) DeleteAccount(ctx context.Context, id account.ID) error {
	result, err := s.db.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1
	`, uint64(id))
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("account_id", uint64(id)).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", uint64(id)).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// insertLink inserts an identity link row, mapping unique violations to the
// domain sentinel matching the violated constraint.
func insertLink(ctx context.Context, db store.DB, id account.ID, link *account.IdentityLink) error {
	var email, provider, externalID *string
	var verifier, salt []byte
	if link.Method == account.MethodEmail {
		email = &link.Email
		verifier = link.Verifier
		salt = link.Salt
	} else {
		provider = &link.Provider
		externalID = &link.ExternalID
	}

	_, err := db.Exec(ctx, `
		INSERT INTO identity_links (
			id, account_id, method, email, verifier, salt,
			provider, external_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		link.ID.String(),
		uint64(id),
		string(link.Method),
		email,
		verifier,
		salt,
		provider,
		externalID,
		link.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			sentinel := account.ErrAlreadyExists
			if link.Method == account.MethodEmail {
				sentinel = account.ErrEmailExists
			}
			return oops.Code("ACCOUNT_IDENTITY_EXISTS").
				With("method", string(link.Method)).
				With("constraint", pgErr.ConstraintName).
				Wrap(sentinel)
		}
		return oops.Code("ACCOUNT_LINK_FAILED").
			With("operation", "insert identity link").
			With("method", string(link.Method)).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ account.Store = (*AccountStore)(nil)
