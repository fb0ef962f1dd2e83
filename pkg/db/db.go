// SPDX-License-Identifier: Apache-2.0

// Package db wraps a pgx connection pool with retry-on-lock-timeout
// semantics. pkg/restore uses its RetryLockTimeout helper; the traversal
// engine talks to its snapshot pool directly.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	lockNotAvailableCode = "55P03"
	maxBackoffDuration   = 1 * time.Minute
	backoffInterval      = 1 * time.Second
)

// DB is the pgx-shaped connection surface RDB provides. It is satisfied by
// *RDB; no other package in this module takes a DB.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	WithRetryableTransaction(ctx context.Context, f func(context.Context, pgx.Tx) error) error
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

// RDB wraps a *pgxpool.Pool, retrying statements using an exponential
// backoff (with jitter) on lock_timeout errors (SQLSTATE 55P03).
type RDB struct {
	Pool *pgxpool.Pool
}

// New opens a pgx pool against connStr.
func New(ctx context.Context, connStr string) (*RDB, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	return &RDB{Pool: pool}, nil
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == lockNotAvailableCode
}

// RetryLockTimeout retries op, backing off between attempts, until it
// succeeds or fails with an error other than lock_timeout (55P03). Exported
// so callers that cannot route a statement through RDB's pool-level
// Exec/Query — because it must run on a transaction or session they already
// hold, such as pkg/restore's DDL and constraint-deferral statements — can
// still apply the same retry policy RDB uses internally.
func RetryLockTimeout(ctx context.Context, op func() error) error {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	for {
		err := op()
		if err == nil || !isLockNotAvailable(err) {
			return err
		}
		if err := sleepCtx(ctx, b.Duration()); err != nil {
			return err
		}
	}
}

// Exec wraps pgxpool.Pool.Exec, retrying on lock_timeout errors.
func (db *RDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := RetryLockTimeout(ctx, func() error {
		var err error
		tag, err = db.Pool.Exec(ctx, sql, args...)
		return err
	})
	return tag, err
}

// Query wraps pgxpool.Pool.Query, retrying on lock_timeout errors.
func (db *RDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows pgx.Rows
	err := RetryLockTimeout(ctx, func() error {
		var err error
		rows, err = db.Pool.Query(ctx, sql, args...)
		return err
	})
	return rows, err
}

// QueryRow wraps pgxpool.Pool.QueryRow. Lock-timeout retries don't apply here
// since the error surfaces only on Scan.
func (db *RDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.Pool.QueryRow(ctx, sql, args...)
}

// CopyFrom wraps pgxpool.Pool.CopyFrom, retrying the whole copy on
// lock_timeout errors. rowSrc must be safe to replay.
func (db *RDB) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	var n int64
	err := RetryLockTimeout(ctx, func() error {
		var err error
		n, err = db.Pool.CopyFrom(ctx, tableName, columnNames, rowSrc)
		return err
	})
	return n, err
}

// WithRetryableTransaction runs f in a transaction, retrying on lock_timeout
// errors.
func (db *RDB) WithRetryableTransaction(ctx context.Context, f func(context.Context, pgx.Tx) error) error {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	for {
		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return err
		}

		err = f(ctx, tx)
		if err == nil {
			return tx.Commit(ctx)
		}

		if errRollback := tx.Rollback(ctx); errRollback != nil && !errors.Is(errRollback, pgx.ErrTxClosed) {
			return errRollback
		}

		if isLockNotAvailable(err) {
			if err := sleepCtx(ctx, b.Duration()); err != nil {
				return err
			}
			continue
		}

		return err
	}
}

// Acquire checks out a dedicated connection from the pool, for callers that
// need session-local state (temp tables, snapshot import, COPY TO STDOUT).
func (db *RDB) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	return db.Pool.Acquire(ctx)
}

func (db *RDB) Close() {
	db.Pool.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ScanFirstValue scans the first value of rows under the assumption that
// rows contains a single row with a single column.
func ScanFirstValue[T any](rows pgx.Rows, dest *T) error {
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return err
		}
	}
	return rows.Err()
}
