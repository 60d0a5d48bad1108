// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

// Package auth implements the account protocol flows.
//
// # Flows
//
// Each public Engine method is one protocol flow:
//   - RequestRegisterToken / CompleteRegistration - account creation
//   - LoginSalt / CompleteLogin - proof-based login
//   - ForgotPassword / ResetPassword - credential replacement
//   - RequestOTPs - one-time codes, capped per requester
//   - RequestAccountToken / RedeemAccountToken - password-less re-auth
//   - DeleteAccount - token-gated account removal
//   - VerifyGameServer - admin-gated group verification
//
// Every mutating step is a single store transaction, so an abandoned request
// either fully committed or had no effect. Flows that could reveal whether
// an email address is registered answer identically in both cases.
package auth
