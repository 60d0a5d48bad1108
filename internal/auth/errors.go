// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package auth

import "errors"

// ErrBadCredentials is returned when a login proof fails. It deliberately
// does not distinguish an unknown email from a wrong proof.
var ErrBadCredentials = errors.New("bad credentials")
