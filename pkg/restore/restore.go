// SPDX-License-Identifier: Apache-2.0

// Package restore implements the scheduler that loads a slice archive back
// into a database: pre-data DDL, monotonic sequence restoration, a live
// foreign-key DAG honoured across concurrent per-table loaders, deferrable
// constraints handled inside one transaction when available, and post-data
// DDL. Grounded on slice_db/restore.py's Restore/RestoreItem, corrected per
// §4.5's resolution of the original's single-connection deferral gap.
package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgslice/pgslice/pkg/archive"
	"github.com/pgslice/pgslice/pkg/configschema"
	"github.com/pgslice/pgslice/pkg/db"
	"github.com/pgslice/pgslice/pkg/dbschema"
	"github.com/pgslice/pgslice/pkg/manifest"
	"github.com/pgslice/pgslice/pkg/pgmodel"
	"github.com/pgslice/pgslice/pkg/progress"
	"github.com/pgslice/pgslice/pkg/work"
)

// Options configures one restore run.
type Options struct {
	// Parallelism bounds concurrent table loaders. Values < 1 are treated
	// as 1. Ignored in effect (but harmless) when Sessions is a
	// transaction-backed SessionProvider, since those serialise anyway.
	Parallelism int

	// Transaction reports whether Sessions shares one transaction across
	// every item, which is required to honour deferrable constraints.
	Transaction bool

	// Logger receives progress events. Defaults to a noop logger.
	Logger progress.Logger
}

// Engine runs one restore: an archive reader, a session provider, and a
// metadata connection for live foreign-key introspection.
type Engine struct {
	reader   *archive.Reader
	sessions SessionProvider
	meta     dbschema.Queryer
	opts     Options
}

// New builds an Engine. meta is used only for read-only catalog
// introspection (live FK constraints) and may be the same pool/transaction
// sessions draws from.
func New(reader *archive.Reader, sessions SessionProvider, meta dbschema.Queryer, opts Options) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Logger == nil {
		opts.Logger = progress.NewNoopLogger()
	}
	return &Engine{reader: reader, sessions: sessions, meta: meta, opts: opts}
}

// Run executes the full restore: pre-data DDL, sequences, dependency-ordered
// table loads, and post-data DDL. It returns once every item has completed
// or the first error has cancelled the rest.
func (e *Engine) Run(ctx context.Context) error {
	m, err := e.readManifest()
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	if m.Sections != nil {
		if err := e.runDDLSection(ctx, e.reader.OpenPreData, m.Sections.PreData); err != nil {
			return fmt.Errorf("running pre-data DDL: %w", err)
		}
	}

	if err := e.restoreSequences(ctx, m); err != nil {
		return fmt.Errorf("restoring sequences: %w", err)
	}

	deps, err := e.buildDependencies(ctx, m)
	if err != nil {
		return fmt.Errorf("building restore dependency graph: %w", err)
	}

	if err := e.runItems(ctx, m, deps); err != nil {
		return err
	}

	if m.Sections != nil {
		if err := e.runDDLSection(ctx, e.reader.OpenPostData, m.Sections.PostData); err != nil {
			return fmt.Errorf("running post-data DDL: %w", err)
		}
	}

	return nil
}

func (e *Engine) readManifest() (*manifest.Manifest, error) {
	r, err := e.reader.OpenManifest()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return configschema.ParseManifestDoc(data)
}

// runDDLSection executes a pre-data or post-data DDL section. The statements
// are read from the archive once, up front; if any statement in the section
// fails with a lock_timeout (55P03), the whole section is re-run from its
// first statement on a freshly acquired session — a statement error aborts whatever transaction it ran in, so a
// bare re-exec of just the failing statement would only surface a stale
// "transaction aborted" error instead of actually retrying. db.RetryLockTimeout
// applies the same backoff policy pkg/db uses for its own pool-level Exec.
func (e *Engine) runDDLSection(ctx context.Context, open func(int) (io.ReadCloser, error), count int) error {
	if count == 0 {
		return nil
	}

	stmts := make([]string, count)
	for i := 1; i <= count; i++ {
		r, err := open(i)
		if err != nil {
			return fmt.Errorf("opening DDL entry %d: %w", i, err)
		}
		stmt, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("reading DDL entry %d: %w", i, err)
		}
		stmts[i-1] = string(stmt)
	}

	return db.RetryLockTimeout(ctx, func() error {
		session, err := e.sessions.Acquire(ctx)
		if err != nil {
			return err
		}
		defer session.Release(ctx)

		for i, stmt := range stmts {
			if _, err := session.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("executing DDL entry %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// restoreSequences sets each captured sequence's value, never rewinding
// past its current value.
func (e *Engine) restoreSequences(ctx context.Context, m *manifest.Manifest) error {
	if len(m.Sequences) == 0 {
		return nil
	}

	session, err := e.sessions.Acquire(ctx)
	if err != nil {
		return err
	}
	defer session.Release(ctx)

	for id, seq := range m.Sequences {
		r, err := e.reader.OpenSequence(id)
		if err != nil {
			return fmt.Errorf("opening sequence entry %s: %w", id, err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("reading sequence entry %s: %w", id, err)
		}

		value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return fmt.Errorf("parsing sequence value for %s: %w", id, err)
		}

		if _, err := session.Exec(ctx, restoreSequenceSQL, seq.Schema, seq.Name, value); err != nil {
			return fmt.Errorf("restoring sequence %s: %w", id, err)
		}
		e.opts.Logger.LogSequenceRestored(id, value)
	}
	return nil
}

// restoreSequenceSQL only calls setval when it would not move the sequence
// backwards, per §4.5 step 3's monotonicity requirement. pg_sequences
// reports last_value as null for a sequence nextval has never touched.
const restoreSequenceSQL = `
SELECT setval(format('%I.%I', $1::text, $2::text)::regclass, $3)
FROM pg_catalog.pg_sequences
WHERE schemaname = $1 AND sequencename = $2 AND (last_value IS NULL OR last_value < $3)
`

// buildDependencies queries live foreign keys and returns, for each manifest
// table id, the ids of its non-deferrable parent tables that must finish
// loading first. Deferrable constraints between manifest tables are set
// DEFERRED on the shared transaction when available; otherwise they cause a
// DeferralRequiresTransactionError.
func (e *Engine) buildDependencies(ctx context.Context, m *manifest.Manifest) (map[string][]string, error) {
	fks, err := dbschema.ForeignKeys(ctx, e.meta)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string, len(m.Tables))
	var deferredNames []string

	for _, fk := range fks {
		if _, ok := m.Tables[fk.Table]; !ok {
			continue
		}
		if _, ok := m.Tables[fk.ReferenceTable]; !ok {
			continue
		}
		if fk.Table == fk.ReferenceTable {
			continue // self-reference: no useful load order to express
		}

		if fk.Deferrable {
			deferredNames = append(deferredNames, pgx.Identifier{fk.Schema, fk.Name}.Sanitize())
			continue
		}

		deps[fk.Table] = append(deps[fk.Table], fk.ReferenceTable)
	}

	if len(deferredNames) > 0 {
		if !e.opts.Transaction {
			return nil, DeferralRequiresTransactionError{Names: deferredNames}
		}

		sql := fmt.Sprintf("SET CONSTRAINTS %s DEFERRED", strings.Join(deferredNames, ", "))
		err := db.RetryLockTimeout(ctx, func() error {
			session, err := e.sessions.Acquire(ctx)
			if err != nil {
				return err
			}
			defer session.Release(ctx)
			_, err = session.Exec(ctx, sql)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("deferring constraints: %w", err)
		}
		e.opts.Logger.LogConstraintsDeferred(deferredNames)
	}

	return deps, nil
}

func (e *Engine) runItems(ctx context.Context, m *manifest.Manifest, deps map[string][]string) error {
	items := make([]string, 0, len(m.Tables))
	for id := range m.Tables {
		items = append(items, id)
	}

	depsOf := func(id string) []string {
		var out []string
		for _, parent := range deps[id] {
			if _, ok := m.Tables[parent]; ok {
				out = append(out, parent)
			}
		}
		return out
	}

	err := work.RunGraph(ctx, e.opts.Parallelism, items, depsOf, func(ctx context.Context, id string) error {
		return e.loadTable(ctx, id, m.Tables[id])
	})

	var cyc *work.CycleError
	if errors.As(err, &cyc) {
		return pgmodel.CycleError{Nodes: cyc.Nodes}
	}
	return err
}

func (e *Engine) loadTable(ctx context.Context, id string, table *manifest.Table) error {
	session, err := e.sessions.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring session for %s: %w", id, err)
	}
	defer session.Release(ctx)

	sql := copyFromStdin(table)
	for i := range table.Segments {
		index := i + 1
		r, err := e.reader.OpenSegment(id, index)
		if err != nil {
			return fmt.Errorf("opening %s segment %d: %w", id, index, err)
		}

		_, err = session.CopyFromReader(ctx, sql, r)
		closeErr := r.Close()
		if err != nil {
			return fmt.Errorf("loading %s segment %d: %w", id, index, err)
		}
		if closeErr != nil {
			return closeErr
		}
	}
	e.opts.Logger.LogTableLoaded(id, len(table.Segments))
	return nil
}

func copyFromStdin(table *manifest.Table) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	qualified := pgx.Identifier{table.Schema, table.Name}.Sanitize()
	return fmt.Sprintf("COPY %s (%s) FROM STDIN", qualified, strings.Join(cols, ", "))
}
