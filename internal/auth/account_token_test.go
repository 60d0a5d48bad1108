// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/auth"
	"github.com/aetherforge/accounts/internal/auth/mocks"
	"github.com/aetherforge/accounts/internal/token"
)

func TestRequestAccountToken(t *testing.T) {
	ctx := context.Background()

	t.Run("known email gets a token", func(t *testing.T) {
		accounts := mocks.NewMockAccountStore(t)
		tokens := mocks.NewMockTokenIssuer(t)
		mail := mocks.NewMockMailer(t)
		engine := newTestEngine(t, accounts, tokens, mail)

		accounts.On("VerifierFor", ctx, "player@example.com").
			Return(&account.Credential{AccountID: 7}, nil)
		tokens.On("Issue", ctx, token.Request{
			Kind:      token.KindLogin,
			AccountID: 7,
			Email:     "player@example.com",
		}).Return("acct-token", &token.Token{Kind: token.KindLogin}, nil)
		mail.On("Send", ctx, mock.Anything).Return(nil)

		require.NoError(t, engine.RequestAccountToken(ctx, "player@example.com"))
	})

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		accounts := mocks.NewMockAccountStore(t)
		engine := newTestEngine(t, accounts, mocks.NewMockTokenIssuer(t), mocks.NewMockMailer(t))

		accounts.On("VerifierFor", ctx, "ghost@example.com").
			Return(nil, account.ErrNotFound)

		assert.NoError(t, engine.RequestAccountToken(ctx, "ghost@example.com"))
	})
}

func TestRedeemAccountToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token yields a session", func(t *testing.T) {
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, mocks.NewMockAccountStore(t), tokens, mocks.NewMockMailer(t))

		tokens.On("Consume", ctx, token.KindLogin, "acct-token").
			Return(&token.Token{Kind: token.KindLogin, AccountID: 7}, nil)

		session, err := engine.RedeemAccountToken(ctx, "acct-token", auth.SessionData{
			Proof: testProof(), PublicKey: testClientKey(t),
		})
		require.NoError(t, err)
		assert.Equal(t, account.ID(7), session.AccountID)
	})

	t.Run("token for a deleted account fails", func(t *testing.T) {
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, mocks.NewMockAccountStore(t), tokens, mocks.NewMockMailer(t))

		tokens.On("Consume", ctx, token.KindLogin, "orphan").
			Return(nil, account.ErrNotFound)

		_, err := engine.RedeemAccountToken(ctx, "orphan", auth.SessionData{
			Proof: testProof(), PublicKey: testClientKey(t),
		})
		assert.ErrorIs(t, err, account.ErrNotFound)
	})
}

func TestRevokeSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes the token then revokes everything", func(t *testing.T) {
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, mocks.NewMockAccountStore(t), tokens, mocks.NewMockMailer(t))

		tokens.On("Consume", ctx, token.KindLogin, "acct-token").
			Return(&token.Token{Kind: token.KindLogin, AccountID: 7}, nil)
		tokens.On("RevokeAll", ctx, account.ID(7)).Return(nil)

		require.NoError(t, engine.RevokeSessions(ctx, "acct-token"))
	})

	t.Run("spent token revokes nothing", func(t *testing.T) {
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, mocks.NewMockAccountStore(t), tokens, mocks.NewMockMailer(t))

		tokens.On("Consume", ctx, token.KindLogin, "spent").
			Return(nil, token.ErrNotFound)

		assert.ErrorIs(t, engine.RevokeSessions(ctx, "spent"), token.ErrNotFound)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes the token then deletes", func(t *testing.T) {
		accounts := mocks.NewMockAccountStore(t)
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, accounts, tokens, mocks.NewMockMailer(t))

		tokens.On("Consume", ctx, token.KindLogin, "acct-token").
			Return(&token.Token{Kind: token.KindLogin, AccountID: 7}, nil)
		accounts.On("DeleteAccount", ctx, account.ID(7)).Return(nil)

		require.NoError(t, engine.DeleteAccount(ctx, "acct-token"))
	})

	t.Run("spent token blocks deletion", func(t *testing.T) {
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, mocks.NewMockAccountStore(t), tokens, mocks.NewMockMailer(t))

		tokens.On("Consume", ctx, token.KindLogin, "spent").
			Return(nil, token.ErrNotFound)

		assert.ErrorIs(t, engine.DeleteAccount(ctx, "spent"), token.ErrNotFound)
	})
}

func TestRequestOTPs(t *testing.T) {
	ctx := context.Background()

	t.Run("passes through to the issuer", func(t *testing.T) {
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, mocks.NewMockAccountStore(t), tokens, mocks.NewMockMailer(t))

		tokens.On("IssueOTPs", ctx, token.Request{AccountID: 7}, 2).
			Return([]string{"CODE1", "CODE2"}, nil)

		codes, err := engine.RequestOTPs(ctx, account.ID(7), 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"CODE1", "CODE2"}, codes)
	})

	t.Run("over-cap request propagates the quota error", func(t *testing.T) {
		tokens := mocks.NewMockTokenIssuer(t)
		engine := newTestEngine(t, mocks.NewMockAccountStore(t), tokens, mocks.NewMockMailer(t))

		tokens.On("IssueOTPs", ctx, token.Request{AccountID: 7}, 4).
			Return(nil, token.ErrQuotaExceeded)

		_, err := engine.RequestOTPs(ctx, account.ID(7), 4)
		assert.ErrorIs(t, err, token.ErrQuotaExceeded)
	})

	t.Run("invalid account id is rejected", func(t *testing.T) {
		engine := newTestEngine(t,
			mocks.NewMockAccountStore(t), mocks.NewMockTokenIssuer(t), mocks.NewMockMailer(t))

		_, err := engine.RequestOTPs(ctx, account.InvalidID, 1)
		assert.Error(t, err)
	})
}
