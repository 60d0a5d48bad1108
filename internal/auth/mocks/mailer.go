// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/aetherforge/accounts/internal/mailer"
)

// MockMailer is a mock implementation of mailer.Mailer.
type MockMailer struct {
	mock.Mock
}

// NewMockMailer creates a MockMailer that asserts its expectations during
// test cleanup.
func NewMockMailer(t *testing.T) *MockMailer {
	t.Helper()
	m := &MockMailer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockMailer) Send(ctx context.Context, mail mailer.Mail) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}

var _ mailer.Mailer = (*MockMailer)(nil)
