// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

// Package mailer delivers account emails: verification codes, register
// links, and password-reset tokens.
package mailer

import (
	"context"
	"log/slog"
)

// Mail is one outbound message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer dispatches outbound mail. Delivery failures are the caller's to
// handle; flows that must not leak address existence log and swallow them.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// LogMailer writes mail to the log instead of delivering it. Used in
// development and tests; production deployments sit behind a relay that
// tails the queue.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, mail Mail) error {
	m.logger.Info("outbound mail",
		"to", mail.To,
		"subject", mail.Subject,
		"body", mail.Body)
	return nil
}

// Compile-time interface check.
var _ Mailer = (*LogMailer)(nil)
