// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/store"
	"github.com/aetherforge/accounts/internal/token"
)

// TokenStore implements token.Store using PostgreSQL.
type TokenStore struct {
	db store.DB
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(db store.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Insert stores a new token.
func (s *TokenStore) Insert(ctx context.Context, tok *token.Token) error {
	return insertToken(ctx, s.db, tok)
}

// InsertOTPCapped stores an OTP after evicting the requester's oldest live
// codes down to cap-1. The live rows are read under FOR UPDATE so concurrent
// requests serialize on the same requester and the cap holds.
func (s *TokenStore) InsertOTPCapped(ctx context.Context, tok *token.Token, cap int) error {
	return store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var rows pgx.Rows
		var err error
		if tok.AccountID.Valid() {
			rows, err = tx.Query(ctx, `
				SELECT id FROM tokens
				WHERE kind = 'otp' AND account_id = $1 AND expires_at > $2
				ORDER BY created_at
				FOR UPDATE
			`, uint64(tok.AccountID), tok.CreatedAt)
		} else {
			rows, err = tx.Query(ctx, `
				SELECT id FROM tokens
				WHERE kind = 'otp' AND account_id IS NULL
				  AND LOWER(email) = LOWER($1) AND expires_at > $2
				ORDER BY created_at
				FOR UPDATE
			`, tok.Email, tok.CreatedAt)
		}
		if err != nil {
			return oops.Code("TOKEN_OTP_CAP_FAILED").
				With("operation", "list live otps").
				Wrap(err)
		}

		var live []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return oops.Code("TOKEN_OTP_CAP_FAILED").
					With("operation", "scan live otp id").
					Wrap(err)
			}
			live = append(live, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return oops.Code("TOKEN_OTP_CAP_FAILED").
				With("operation", "iterate live otps").
				Wrap(err)
		}

		// Oldest first; evict until one slot is free.
		if excess := len(live) - (cap - 1); excess > 0 {
			_, err := tx.Exec(ctx, `
				DELETE FROM tokens WHERE id = ANY($1)
			`, live[:excess])
			if err != nil {
				return oops.Code("TOKEN_OTP_CAP_FAILED").
					With("operation", "evict oldest otps").
					With("evicted", excess).
					Wrap(err)
			}
		}

		return insertToken(ctx, tx, tok)
	})
}

// Consume removes the token matching (kind, hash) and returns it. The
// removal sticks even when the token turns out to be expired or orphaned,
// so a secret never matches twice.
func (s *TokenStore) Consume(ctx context.Context, kind token.Kind, hash string, now time.Time) (*token.Token, error) {
	var tok *token.Token
	var missing, orphaned bool

	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			DELETE FROM tokens
			WHERE kind = $1 AND token_hash = $2
			RETURNING id, kind, method, token_hash, account_id, email,
			          expires_at, created_at
		`, string(kind), hash)

		var err error
		tok, err = scanToken(row)
		if errors.Is(err, pgx.ErrNoRows) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}

		if tok.AccountID.Valid() {
			var exists bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)
			`, uint64(tok.AccountID)).Scan(&exists)
			if err != nil {
				return oops.Code("TOKEN_CONSUME_FAILED").
					With("operation", "validate token account").
					With("account_id", uint64(tok.AccountID)).
					Wrap(err)
			}
			orphaned = !exists
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case missing:
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("kind", string(kind)).
			Wrap(token.ErrNotFound)
	case tok.Expired(now):
		return nil, oops.Code("TOKEN_EXPIRED").
			With("kind", string(kind)).
			With("expired_at", tok.ExpiresAt).
			Wrap(token.ErrExpired)
	case orphaned:
		return nil, oops.Code("TOKEN_ACCOUNT_GONE").
			With("kind", string(kind)).
			With("account_id", uint64(tok.AccountID)).
			Wrap(account.ErrNotFound)
	}
	return tok, nil
}

// RevokeAll removes every token referencing the account.
func (s *TokenStore) RevokeAll(ctx context.Context, id account.ID) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM tokens WHERE account_id = $1
	`, uint64(id))
	if err != nil {
		return oops.Code("TOKEN_REVOKE_ALL_FAILED").
			With("operation", "delete account tokens").
			With("account_id", uint64(id)).
			Wrap(err)
	}
	return nil
}

// SweepExpired removes tokens past their TTL.
func (s *TokenStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM tokens WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("TOKEN_SWEEP_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func insertToken(ctx context.Context, db store.DB, tok *token.Token) error {
	var accountID *uint64
	if tok.AccountID.Valid() {
		v := uint64(tok.AccountID)
		accountID = &v
	}
	var email *string
	if tok.Email != "" {
		email = &tok.Email
	}

	_, err := db.Exec(ctx, `
		INSERT INTO tokens (
			id, kind, method, token_hash, account_id, email,
			expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		tok.ID.String(),
		string(tok.Kind),
		string(tok.Method),
		tok.Hash,
		accountID,
		email,
		tok.ExpiresAt,
		tok.CreatedAt,
	)
	if err != nil {
		return oops.Code("TOKEN_INSERT_FAILED").
			With("operation", "insert token").
			With("kind", string(tok.Kind)).
			Wrap(err)
	}
	return nil
}

// scanToken scans a single row into a Token.
// Callers are responsible for handling pgx.ErrNoRows.
func scanToken(row pgx.Row) (*token.Token, error) {
	var (
		idStr     string
		kind      string
		method    string
		hash      string
		accountID *uint64
		email     *string
		expiresAt time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &kind, &method, &hash, &accountID, &email,
		&expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers map to the domain sentinel
		}
		return nil, oops.Code("TOKEN_SCAN_FAILED").
			With("operation", "scan token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	tok := &token.Token{
		ID:        id,
		Kind:      token.Kind(kind),
		Method:    account.Method(method),
		Hash:      hash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}
	if accountID != nil {
		tok.AccountID = account.ID(*accountID)
	}
	if email != nil {
		tok.Email = *email
	}
	return tok, nil
}

// Compile-time interface check.
var _ token.Store = (*TokenStore)(nil)
