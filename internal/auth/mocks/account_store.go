// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

// Package mocks provides testify mocks for the auth engine's collaborators.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/aetherforge/accounts/internal/account"
)

// MockAccountStore is a mock implementation of account.Store.
type MockAccountStore struct {
	mock.Mock
}

// NewMockAccountStore creates a MockAccountStore that asserts its
// expectations during test cleanup.
func NewMockAccountStore(t *testing.T) *MockAccountStore {
	t.Helper()
	m := &MockAccountStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountStore) CreateAccount(ctx context.Context, initial *account.IdentityLink) (account.ID, error) {
	args := m.Called(ctx, initial)
	return args.Get(0).(account.ID), args.Error(1)
}

func (m *MockAccountStore) Exists(ctx context.Context, id account.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) VerifierFor(ctx context.Context, email string) (*account.Credential, error) {
	args := m.Called(ctx, email)
	if cred := args.Get(0); cred != nil {
		return cred.(*account.Credential), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) LinkIdentity(ctx context.Context, id account.ID, link *account.IdentityLink) error {
	args := m.Called(ctx, id, link)
	return args.Error(0)
}

func (m *MockAccountStore) UnlinkIdentity(ctx context.Context, id account.ID, method account.Method) error {
	args := m.Called(ctx, id, method)
	return args.Error(0)
}

func (m *MockAccountStore) ReplaceCredentials(ctx context.Context, id account.ID, verifier, salt []byte) error {
	args := m.Called(ctx, id, verifier, salt)
	return args.Error(0)
}

func (m *MockAccountStore) DeleteAccount(ctx context.Context, id account.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ account.Store = (*MockAccountStore)(nil)
