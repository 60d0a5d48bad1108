// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package token

import "errors"

// ErrNotFound is returned when no live token matches the presented secret,
// including the case where another consumer got there first.
var ErrNotFound = errors.New("token not found")

// ErrExpired is returned when the matched token is past its TTL. The token
// is removed as a side effect.
var ErrExpired = errors.New("token expired")

// ErrQuotaExceeded is returned when a single request asks for more OTPs than
// the live cap allows.
var ErrQuotaExceeded = errors.New("otp quota exceeded")
