// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package auth

import (
	"context"

	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/token"
)

// RequestOTPs issues up to the live cap of one-time codes for an account.
// Codes beyond the cap evict the account's oldest live one.
func (e *Engine) RequestOTPs(ctx context.Context, id account.ID, count int) ([]string, error) {
	if !id.Valid() {
		return nil, oops.Code("AUTH_OTP_REQUEST_FAILED").
			Errorf("otp request requires a valid account id")
	}

	codes, err := e.tokens.IssueOTPs(ctx, token.Request{AccountID: id}, count)
	if err != nil {
		return nil, err
	}

	e.logger.Info("otps issued", "account_id", uint64(id), "count", len(codes))
	return codes, nil
}
