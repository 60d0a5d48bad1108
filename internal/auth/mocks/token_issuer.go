// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/auth"
	"github.com/aetherforge/accounts/internal/token"
)

// MockTokenIssuer is a mock implementation of auth.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

// NewMockTokenIssuer creates a MockTokenIssuer that asserts its expectations
// during test cleanup.
func NewMockTokenIssuer(t *testing.T) *MockTokenIssuer {
	t.Helper()
	m := &MockTokenIssuer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenIssuer) Issue(ctx context.Context, req token.Request) (string, *token.Token, error) {
	args := m.Called(ctx, req)
	var tok *token.Token
	if v := args.Get(1); v != nil {
		tok = v.(*token.Token)
	}
	return args.String(0), tok, args.Error(2)
}

func (m *MockTokenIssuer) IssueOTPs(ctx context.Context, req token.Request, count int) ([]string, error) {
	args := m.Called(ctx, req, count)
	var codes []string
	if v := args.Get(0); v != nil {
		codes = v.([]string)
	}
	return codes, args.Error(1)
}

func (m *MockTokenIssuer) Consume(ctx context.Context, kind token.Kind, secret string) (*token.Token, error) {
	args := m.Called(ctx, kind, secret)
	if tok := args.Get(0); tok != nil {
		return tok.(*token.Token), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTokenIssuer) RevokeAll(ctx context.Context, id account.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ auth.TokenIssuer = (*MockTokenIssuer)(nil)
