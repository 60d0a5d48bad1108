// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account or link does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registering an email that already has an
// account.
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyExists is returned when an identity-link method value is already
// taken by another account.
var ErrAlreadyExists = errors.New("identity already exists")

// ErrLastCredential is returned when unlinking would leave the account with
// no way to authenticate.
var ErrLastCredential = errors.New("last remaining credential")
