// SPDX-License-Identifier: Apache-2.0

// Package traversal implements the reference-graph discovery and extraction
// engine: it walks from a set of root predicates, deduplicates row ids per
// table, partitions novelty into bounded segments, and streams each
// segment's rows into an archive, optionally through a pseudonymization
// transform. Grounded on slice_db/dump_temp_table.py's RootTask/TableTask
// and slice_db/concurrent/work.py's WorkerRunner.
package traversal

import (
	"context"
	"fmt"
	"sync"

	"github.com/pgslice/pgslice/pkg/archive"
	"github.com/pgslice/pgslice/pkg/ddl"
	"github.com/pgslice/pgslice/pkg/manifest"
	"github.com/pgslice/pgslice/pkg/pgmodel"
	"github.com/pgslice/pgslice/pkg/progress"
	"github.com/pgslice/pgslice/pkg/rowid"
	"github.com/pgslice/pgslice/pkg/snapshot"
	"github.com/pgslice/pgslice/pkg/transform"
	"github.com/pgslice/pgslice/pkg/work"
)

// DefaultMaxSegmentRows is the default bound on rows per segment, matching
// slice_db's MAX_SEGMENT_ROWS.
const DefaultMaxSegmentRows = 250_000

// Options configures one dump run.
type Options struct {
	// MaxSegmentRows bounds how many rows a single TableTask extracts.
	// Zero means DefaultMaxSegmentRows.
	MaxSegmentRows int

	// Parallelism bounds concurrent heavyweight (session-holding) tasks.
	// The Engine does not size the snapshot pool; cmd/dump.go opens it with
	// the same value as its follower session cap.
	Parallelism int

	// Transforms, if non-nil, maps a table id to that table's
	// TableTransformer.
	Transforms map[string]*transform.TableTransformer

	// DDL, if non-nil, is invoked once for pre-data and once for
	// post-data to populate the archive's DDL entries.
	DDL *ddl.Emitter

	// Logger receives progress events. Defaults to a noop logger.
	Logger progress.Logger
}

// Engine runs one dump: a schema, a snapshot-bound session pool, and the
// archive writer accumulating output.
type Engine struct {
	schema   *pgmodel.Schema
	pool     *snapshot.Pool
	archive  *archive.Writer
	manifest *manifest.Accumulator
	opts     Options

	setsMu sync.Mutex
	sets   map[string]*rowid.Set

	reachedMu sync.Mutex
	reached   map[string]bool
}

// New builds an Engine. schema is the reference graph, pool is an opened
// snapshot pool sized to opts.Parallelism followers, w is the archive
// writer the engine streams segments and DDL into.
func New(schema *pgmodel.Schema, pool *snapshot.Pool, w *archive.Writer, opts Options) *Engine {
	if opts.MaxSegmentRows <= 0 {
		opts.MaxSegmentRows = DefaultMaxSegmentRows
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Logger == nil {
		opts.Logger = progress.NewNoopLogger()
	}
	return &Engine{
		schema:   schema,
		pool:     pool,
		archive:  w,
		manifest: manifest.NewAccumulator(),
		opts:     opts,
		sets:     map[string]*rowid.Set{},
		reached:  map[string]bool{},
	}
}

func (e *Engine) rowSet(tableID string) *rowid.Set {
	e.setsMu.Lock()
	defer e.setsMu.Unlock()
	s, ok := e.sets[tableID]
	if !ok {
		s = &rowid.Set{}
		e.sets[tableID] = s
	}
	return s
}

func (e *Engine) markReached(tableID string) {
	e.reachedMu.Lock()
	e.reached[tableID] = true
	e.reachedMu.Unlock()
}

func (e *Engine) reachedTables() []string {
	e.reachedMu.Lock()
	defer e.reachedMu.Unlock()
	out := make([]string, 0, len(e.reached))
	for id := range e.reached {
		out = append(out, id)
	}
	return out
}

// Run executes the full dump: discovery and extraction from every root,
// sequence value capture, and, if configured, DDL emission. It returns once
// every task has completed or the first error has cancelled the rest.
func (e *Engine) Run(ctx context.Context, roots []pgmodel.Root) (*manifest.Manifest, error) {
	seed := make([]Task, 0, len(roots))
	for _, root := range roots {
		seed = append(seed, Task{kind: kindRoot, table: root.Table, condition: root.Condition})
	}

	runner := &work.Runner[Task]{Parallelism: e.opts.Parallelism}
	if err := runner.Run(ctx, seed, e.handle); err != nil {
		return nil, err
	}

	if err := e.captureSequences(ctx); err != nil {
		return nil, fmt.Errorf("capturing sequence values: %w", err)
	}

	if e.opts.DDL != nil {
		if err := e.emitDDL(ctx); err != nil {
			return nil, fmt.Errorf("emitting schema DDL: %w", err)
		}
	}

	return e.manifest.Manifest(), nil
}
