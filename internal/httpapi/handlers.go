// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package httpapi

import (
	"crypto/ed25519"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/auth"
	"github.com/aetherforge/accounts/internal/observability"
	"github.com/aetherforge/accounts/pkg/errutil"
)

type handler struct {
	engine  *auth.Engine
	metrics *observability.Metrics
	logger  *slog.Logger
}

type emailRequest struct {
	Email string `json:"email"`
}

type registerCompleteRequest struct {
	Token     string `json:"token"`
	Proof     []byte `json:"proof"`
	PublicKey []byte `json:"public_key"`
}

type loginCompleteRequest struct {
	Email     string `json:"email"`
	Proof     []byte `json:"proof"`
	PublicKey []byte `json:"public_key"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type otpRequest struct {
	AccountID uint64 `json:"account_id"`
	Count     int    `json:"count"`
}

type gameserverVerifyRequest struct {
	PublicKey     []byte `json:"public_key"`
	AdminPassword string `json:"admin_password"`
}

type registerTokenResponse struct {
	RegisterToken string `json:"register_token"`
}

type sessionResponse struct {
	AccountID            uint64 `json:"account_id"`
	Certificate          []byte `json:"certificate"`
	RequiresVerification bool   `json:"requires_verification"`
}

type saltResponse struct {
	Salt   []byte            `json:"salt"`
	Params account.KDFParams `json:"params"`
}

type otpResponse struct {
	Codes []string `json:"codes"`
}

type groupResponse struct {
	GroupID string `json:"group_id"`
}

// RequestRegisterToken handles POST /api/register/request-token.
// The token is returned to the caller and mailed for out-of-band delivery.
func (h *handler) RequestRegisterToken(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	secret, err := h.engine.RequestRegisterToken(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.WithLabelValues("register").Inc()
	}
	writeJSON(w, http.StatusOK, registerTokenResponse{RegisterToken: secret})
}

// CompleteRegistration handles POST /api/register/complete.
func (h *handler) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req registerCompleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pub, err := clientKey(req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.engine.CompleteRegistration(r.Context(), req.Token, auth.SessionData{
		Proof:     req.Proof,
		PublicKey: pub,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RegistrationsTotal.Inc()
		h.metrics.CertsSignedTotal.Inc()
	}
	writeJSON(w, http.StatusCreated, sessionResponseFrom(session))
}

// LoginSalt handles POST /api/login/salt. Unknown emails receive a
// deterministic fake salt, so the response shape never leaks existence.
func (h *handler) LoginSalt(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	salt, params, err := h.engine.LoginSalt(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, saltResponse{Salt: salt, Params: params})
}

// CompleteLogin handles POST /api/login/complete.
func (h *handler) CompleteLogin(w http.ResponseWriter, r *http.Request) {
	var req loginCompleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pub, err := clientKey(req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.engine.CompleteLogin(r.Context(), req.Email, auth.SessionData{
		Proof:     req.Proof,
		PublicKey: pub,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		}
		writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues("success").Inc()
		h.metrics.CertsSignedTotal.Inc()
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(session))
}

// RequestOTPs handles POST /api/otp/request.
func (h *handler) RequestOTPs(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	codes, err := h.engine.RequestOTPs(r.Context(), account.ID(req.AccountID), req.Count)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.WithLabelValues("otp").Add(float64(len(codes)))
	}
	writeJSON(w, http.StatusOK, otpResponse{Codes: codes})
}

// ForgotPassword handles POST /api/password/forgot. Always 202: the response
// must not reveal whether the address has an account, and a mail or store
// hiccup looks the same as success.
func (h *handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		errutil.LogError(h.logger, "forgot password failed", err)
	}
	writeJSON(w, http.StatusAccepted, nil)
}

// ResetPassword handles POST /api/password/reset.
func (h *handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req registerCompleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pub, err := clientKey(req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.engine.ResetPassword(r.Context(), req.Token, auth.SessionData{
		Proof:     req.Proof,
		PublicKey: pub,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CertsSignedTotal.Inc()
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(session))
}

// RequestAccountToken handles POST /api/account-token/request. Always 202,
// same reasoning as ForgotPassword.
func (h *handler) RequestAccountToken(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.RequestAccountToken(r.Context(), req.Email); err != nil {
		errutil.LogError(h.logger, "account token request failed", err)
	}
	writeJSON(w, http.StatusAccepted, nil)
}

// RevokeSessions handles POST /api/sessions/revoke.
func (h *handler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.RevokeSessions(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount handles POST /api/account/delete.
func (h *handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.DeleteAccount(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyGameServer handles POST /api/gameserver/verify.
func (h *handler) VerifyGameServer(w http.ResponseWriter, r *http.Request) {
	var req gameserverVerifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pub, err := clientKey(req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}

	group, err := h.engine.VerifyGameServer(pub, req.AdminPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, groupResponse{GroupID: group.String()})
}

func sessionResponseFrom(s *auth.Session) sessionResponse {
	return sessionResponse{
		AccountID:            uint64(s.AccountID),
		Certificate:          s.Certificate,
		RequiresVerification: s.RequiresVerification,
	}
}

func clientKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, newInvalidRequestError("public_key must be a 32-byte ed25519 key")
	}
	return ed25519.PublicKey(raw), nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return newInvalidRequestError("malformed request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
