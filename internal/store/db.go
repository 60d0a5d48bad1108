// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

// Package store provides PostgreSQL connection plumbing and schema management.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DB is the database capability the repositories depend on. It is satisfied
// by *pgxpool.Pool, pgx.Tx, and pgxmock pools, so the same repository code
// runs against the pool, inside a transaction, or under test.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so a request abandoned mid-flight
// either fully committed or had no effect.
func WithTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return oops.Code("DB_BEGIN_FAILED").Wrap(err)
	}

	defer func() {
		// Rollback after commit is a no-op error; ignore it.
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback of a committed tx returns ErrTxClosed
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return nil
		}
		return oops.Code("DB_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
