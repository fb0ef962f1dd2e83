// SPDX-License-Identifier: Apache-2.0

// Package snapshot implements the leader/follower session pool that shares
// one exportable, repeatable-read transactional snapshot across every
// connection used by a single dump. Grounded on
// slice_db/pg/__init__.py's export_snapshot/freeze_transaction and
// slice_db/dump_temp_table.py's pool construction.
package snapshot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgslice/pgslice/pkg/work"
)

// sessionSetup is run on every connection (leader and followers) immediately
// after acquisition, matching slice_db/common.py's setup_connection: no
// server-side timeouts, row security off, and an empty search_path so
// unqualified identifiers never resolve unexpectedly.
const sessionSetup = `
SET lock_timeout = 0;
SET statement_timeout = 0;
SET idle_in_transaction_session_timeout = 0;
SET row_security = off;
SET search_path = '';
`

// Pool hands out connections that all observe the exact same database
// snapshot, for the duration of one dump.
type Pool struct {
	pool *pgxpool.Pool
	sem  *work.LIFOSemaphore

	snapshotID string
	leaderTx   pgx.Tx
	leader     *pgxpool.Conn
}

// Open acquires the leader session, exports its snapshot, and returns a Pool
// able to hand out up to parallelism follower sessions bound to that
// snapshot. The caller must call Close when the dump completes to release
// the leader's transaction.
func Open(ctx context.Context, pool *pgxpool.Pool, parallelism int) (*Pool, error) {
	leader, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring leader session: %w", err)
	}

	if _, err := leader.Exec(ctx, sessionSetup); err != nil {
		leader.Release()
		return nil, fmt.Errorf("configuring leader session: %w", err)
	}

	tx, err := leader.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		leader.Release()
		return nil, fmt.Errorf("starting leader transaction: %w", err)
	}

	var snapshotID string
	if err := tx.QueryRow(ctx, "SELECT pg_export_snapshot()").Scan(&snapshotID); err != nil {
		_ = tx.Rollback(ctx)
		leader.Release()
		return nil, fmt.Errorf("exporting snapshot: %w", err)
	}

	p := &Pool{
		pool:       pool,
		sem:        work.NewLIFOSemaphore(parallelism),
		snapshotID: snapshotID,
		leaderTx:   tx,
		leader:     leader,
	}

	return p, nil
}

// Session is one follower connection bound to the dump's snapshot. Release
// must be called when the caller is done with it.
type Session struct {
	Conn *pgxpool.Conn
	tx   pgx.Tx
	pool *Pool
}

// Acquire blocks until a follower slot is free (cancellable by ctx), opens a
// fresh repeatable-read transaction on a new connection, and binds it to the
// pool's exported snapshot.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if err := p.sem.Acquire(ctx); err != nil {
		return nil, err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		p.sem.Release()
		return nil, err
	}

	if _, err := conn.Exec(ctx, sessionSetup); err != nil {
		conn.Release()
		p.sem.Release()
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		conn.Release()
		p.sem.Release()
		return nil, err
	}

	if _, err := tx.Exec(ctx, "SET TRANSACTION SNAPSHOT '"+p.snapshotID+"'"); err != nil {
		_ = tx.Rollback(ctx)
		conn.Release()
		p.sem.Release()
		return nil, fmt.Errorf("binding follower to snapshot: %w", err)
	}

	return &Session{Conn: conn, tx: tx, pool: p}, nil
}

// Tx returns the session's bound transaction, for issuing the temp-table
// and COPY statements of the traversal protocol.
func (s *Session) Tx() pgx.Tx { return s.tx }

// Release ends the follower's transaction and returns its connection and
// pool slot.
func (s *Session) Release(ctx context.Context) {
	_ = s.tx.Rollback(ctx) // read-only transaction; rollback is always safe
	s.Conn.Release()
	s.pool.sem.Release()
}

// Close rolls back the leader's transaction, which must stay open for the
// full dump so the exported snapshot remains valid, and releases its
// session.
func (p *Pool) Close(ctx context.Context) error {
	err := p.leaderTx.Rollback(ctx)
	p.leader.Release()
	return err
}
