// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/auth"
	"github.com/aetherforge/accounts/internal/gameserver"
	"github.com/aetherforge/accounts/internal/token"
)

// Error codes returned in JSON error bodies. Stable; clients match on them.
const (
	CodeInvalidRequest = "invalid_request"
	CodeEmailExists    = "email_exists"
	CodeBadCredentials = "bad_credentials"
	CodeTokenInvalid   = "token_invalid"
	CodeQuotaExceeded  = "quota_exceeded"
	CodeLastCredential = "last_credential"
	CodeUnauthorized   = "unauthorized"
	CodeInternalError  = "internal_error"
)

// APIError is the JSON error payload.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// httpError combines an HTTP status code with an APIError.
type httpError struct {
	status   int
	apiError APIError
}

func (e *httpError) Error() string {
	return e.apiError.Message
}

// writeError maps a domain error to a status code and writes the JSON body.
func writeError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, account.ErrEmailExists):
		return &httpError{http.StatusConflict, APIError{CodeEmailExists, "Email already has an account"}}
	case errors.Is(err, account.ErrAlreadyExists):
		return &httpError{http.StatusConflict, APIError{CodeEmailExists, "Identity already linked"}}
	case errors.Is(err, account.ErrLastCredential):
		return &httpError{http.StatusConflict, APIError{CodeLastCredential, "Cannot remove the last credential"}}
	case errors.Is(err, auth.ErrBadCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeBadCredentials, "Invalid email or password"}}

	// Spent, expired, unknown, and orphaned tokens all collapse into one
	// answer so callers cannot probe token state.
	case errors.Is(err, token.ErrNotFound),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, account.ErrNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeTokenInvalid, "Token is invalid or expired"}}

	case errors.Is(err, token.ErrQuotaExceeded):
		return &httpError{http.StatusTooManyRequests, APIError{CodeQuotaExceeded, "Too many codes requested"}}
	case errors.Is(err, gameserver.ErrUnauthorized):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Admin verification failed"}}
	}

	var oe oops.OopsError
	if errors.As(err, &oe) && oe.Code() == "ACCOUNT_INVALID_EMAIL" {
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Invalid email address"}}
	}

	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// newInvalidRequestError reports a malformed request body or field.
func newInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

func newInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
