// SPDX-License-Identifier: Apache-2.0

package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/internal/testutils"
	"github.com/pgslice/pgslice/pkg/db"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestExec(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(ctx context.Context, conn *pgxpool.Conn, connStr string) {
		setupTableLock(t, connStr, 2*time.Second)
		ensureLockTimeout(t, conn, 100)

		rdb := &db.RDB{Pool: conn.Pool()}
		_, err := rdb.Exec(ctx, "INSERT INTO test(id) VALUES (1)")
		require.NoError(t, err)
	})
}

func TestExecWhenContextCancelled(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(ctx context.Context, conn *pgxpool.Conn, connStr string) {
		ctx, cancel := context.WithCancel(ctx)

		setupTableLock(t, connStr, 2*time.Second)
		ensureLockTimeout(t, conn, 100)

		rdb := &db.RDB{Pool: conn.Pool()}

		go time.AfterFunc(500*time.Millisecond, cancel)

		_, err := rdb.Exec(ctx, "INSERT INTO test(id) VALUES (1)")
		require.Errorf(t, err, "context canceled")
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(ctx context.Context, conn *pgxpool.Conn, connStr string) {
		setupTableLock(t, connStr, 2*time.Second)
		ensureLockTimeout(t, conn, 100)

		rdb := &db.RDB{Pool: conn.Pool()}
		rows, err := rdb.Query(ctx, "SELECT COUNT(*) FROM test")
		require.NoError(t, err)

		var count int
		err = db.ScanFirstValue(rows, &count)
		assert.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestQueryWhenContextCancelled(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(ctx context.Context, conn *pgxpool.Conn, connStr string) {
		ctx, cancel := context.WithCancel(ctx)

		setupTableLock(t, connStr, 2*time.Second)
		ensureLockTimeout(t, conn, 100)

		rdb := &db.RDB{Pool: conn.Pool()}

		go time.AfterFunc(500*time.Millisecond, cancel)

		_, err := rdb.Query(ctx, "SELECT COUNT(*) FROM test")
		require.Errorf(t, err, "context canceled")
	})
}

func TestWithRetryableTransaction(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(ctx context.Context, conn *pgxpool.Conn, connStr string) {
		setupTableLock(t, connStr, 2*time.Second)
		ensureLockTimeout(t, conn, 100)

		rdb := &db.RDB{Pool: conn.Pool()}
		err := rdb.WithRetryableTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return tx.QueryRow(ctx, "SELECT 1 FROM test").Scan(new(int))
		})
		require.NoError(t, err)
	})
}

func TestWithRetryableTransactionWhenContextCancelled(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(ctx context.Context, conn *pgxpool.Conn, connStr string) {
		ctx, cancel := context.WithCancel(ctx)

		setupTableLock(t, connStr, 2*time.Second)
		ensureLockTimeout(t, conn, 100)

		rdb := &db.RDB{Pool: conn.Pool()}

		go time.AfterFunc(500*time.Millisecond, cancel)

		err := rdb.WithRetryableTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return tx.QueryRow(ctx, "SELECT 1 FROM test").Scan(new(int))
		})
		require.Errorf(t, err, "context canceled")
	})
}

// setupTableLock connects a second, independent connection, creates a table,
// and holds an access-exclusive lock on it for d.
func setupTableLock(t *testing.T, connStr string, d time.Duration) {
	t.Helper()
	ctx := context.Background()

	conn2, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(conn2.Close)

	_, err = conn2.Exec(ctx, "CREATE TABLE test (id INT PRIMARY KEY)")
	require.NoError(t, err)

	errCh := make(chan error)
	go func() {
		tx, err := conn2.Begin(ctx)
		if err != nil {
			errCh <- err
			return
		}

		if _, err = tx.Exec(ctx, "LOCK TABLE test IN ACCESS EXCLUSIVE MODE"); err != nil {
			errCh <- err
			return
		}

		errCh <- nil

		time.Sleep(d)

		_ = tx.Commit(ctx)
	}()

	err = <-errCh
	require.NoError(t, err)
}

func ensureLockTimeout(t *testing.T, conn *pgxpool.Conn, ms int) {
	t.Helper()
	ctx := context.Background()

	query := fmt.Sprintf("SET lock_timeout = '%dms'", ms)
	_, err := conn.Exec(ctx, query)
	require.NoError(t, err)

	var lockTimeout string
	err = conn.QueryRow(ctx, "SHOW lock_timeout").Scan(&lockTimeout)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%dms", ms), lockTimeout)
}
