// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/token"
)

func newMockStore(t *testing.T) (*TokenStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewTokenStore(mock), mock
}

func loginToken(id account.ID) *token.Token {
	now := time.Now().Truncate(time.Microsecond)
	return &token.Token{
		ID:        ulid.Make(),
		Kind:      token.KindLogin,
		Method:    account.MethodEmail,
		Hash:      token.HashSecret("secret"),
		AccountID: id,
		Email:     "player@example.com",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

func TestInsert(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.ID(7))
	accountID := uint64(7)

	mock.ExpectExec(`INSERT INTO tokens`).
		WithArgs(tok.ID.String(), "login", "email", tok.Hash,
			&accountID, &tok.Email, tok.ExpiresAt, tok.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Insert(context.Background(), tok))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOTPCappedUnderCap(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.ID(7))
	tok.Kind = token.KindOTP

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM tokens`).
		WithArgs(uint64(7), tok.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).
			AddRow(ulid.Make().String()))
	mock.ExpectExec(`INSERT INTO tokens`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.InsertOTPCapped(context.Background(), tok, token.OTPLiveCap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOTPCappedEvictsOldest(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.ID(7))
	tok.Kind = token.KindOTP
	oldest := ulid.Make().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM tokens`).
		WithArgs(uint64(7), tok.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).
			AddRow(oldest).
			AddRow(ulid.Make().String()).
			AddRow(ulid.Make().String()))
	mock.ExpectExec(`DELETE FROM tokens WHERE id = ANY`).
		WithArgs([]string{oldest}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO tokens`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.InsertOTPCapped(context.Background(), tok, token.OTPLiveCap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOTPCappedAnonymousRequester(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.InvalidID)
	tok.Kind = token.KindOTP

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM tokens`).
		WithArgs(tok.Email, tok.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO tokens`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.InsertOTPCapped(context.Background(), tok, token.OTPLiveCap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func consumeColumns() []string {
	return []string{"id", "kind", "method", "token_hash", "account_id",
		"email", "expires_at", "created_at"}
}

func TestConsume(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.ID(7))
	now := time.Now()
	accountID := uint64(7)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM tokens`).
		WithArgs("login", tok.Hash).
		WillReturnRows(pgxmock.NewRows(consumeColumns()).
			AddRow(tok.ID.String(), "login", "email", tok.Hash,
				&accountID, &tok.Email, tok.ExpiresAt, tok.CreatedAt))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(uint64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	got, err := s.Consume(context.Background(), token.KindLogin, tok.Hash, now)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	assert.Equal(t, account.ID(7), got.AccountID)
	assert.Equal(t, "player@example.com", got.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM tokens`).
		WithArgs("login", "deadbeef").
		WillReturnRows(pgxmock.NewRows(consumeColumns()))
	mock.ExpectCommit()

	_, err := s.Consume(context.Background(), token.KindLogin, "deadbeef", time.Now())
	assert.ErrorIs(t, err, token.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeExpiredStillRemoves(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.ID(7))
	tok.ExpiresAt = time.Now().Add(-time.Minute)
	accountID := uint64(7)

	// The deletion commits even though the token is expired, so the same
	// secret never matches again.
	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM tokens`).
		WithArgs("login", tok.Hash).
		WillReturnRows(pgxmock.NewRows(consumeColumns()).
			AddRow(tok.ID.String(), "login", "email", tok.Hash,
				&accountID, &tok.Email, tok.ExpiresAt, tok.CreatedAt))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(uint64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	_, err := s.Consume(context.Background(), token.KindLogin, tok.Hash, time.Now())
	assert.ErrorIs(t, err, token.ErrExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeOrphanedAccount(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.ID(7))
	accountID := uint64(7)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM tokens`).
		WithArgs("login", tok.Hash).
		WillReturnRows(pgxmock.NewRows(consumeColumns()).
			AddRow(tok.ID.String(), "login", "email", tok.Hash,
				&accountID, &tok.Email, tok.ExpiresAt, tok.CreatedAt))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(uint64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectCommit()

	_, err := s.Consume(context.Background(), token.KindLogin, tok.Hash, time.Now())
	assert.ErrorIs(t, err, account.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeAnonymousTokenSkipsAccountCheck(t *testing.T) {
	s, mock := newMockStore(t)
	tok := loginToken(account.InvalidID)
	tok.Kind = token.KindRegister

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM tokens`).
		WithArgs("register", tok.Hash).
		WillReturnRows(pgxmock.NewRows(consumeColumns()).
			AddRow(tok.ID.String(), "register", "email", tok.Hash,
				(*uint64)(nil), &tok.Email, tok.ExpiresAt, tok.CreatedAt))
	mock.ExpectCommit()

	got, err := s.Consume(context.Background(), token.KindRegister, tok.Hash, time.Now())
	require.NoError(t, err)
	assert.Equal(t, account.InvalidID, got.AccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAll(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM tokens WHERE account_id`).
		WithArgs(uint64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, s.RevokeAll(context.Background(), account.ID(4)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepExpired(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM tokens WHERE expires_at`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := s.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
