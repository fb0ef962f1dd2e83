// SPDX-License-Identifier: Apache-2.0

package traversal

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pgslice/pgslice/pkg/copyformat"
	"github.com/pgslice/pgslice/pkg/pgmodel"
	"github.com/pgslice/pgslice/pkg/rowid"
	"github.com/pgslice/pgslice/pkg/snapshot"
	"github.com/pgslice/pgslice/pkg/transform"
)

const tempTableName = "_slice_db"

const createTempTable = `CREATE TEMP TABLE IF NOT EXISTS ` + tempTableName + ` (tid tid) ON COMMIT DELETE ROWS`

type taskKind int

const (
	kindRoot taskKind = iota
	kindTable
)

// Task is one unit of traversal work: a root's initial predicate scan, or a
// table task extracting and fanning out from a segment of already-discovered
// row ids. Grounded on slice_db/dump_temp_table.py's RootTask/TableTask pair.
type Task struct {
	kind      taskKind
	table     *pgmodel.Table
	condition string // kindRoot only

	segment    []rowid.RowId      // kindTable only
	arrivedRef *pgmodel.Reference // nil for a task seeded directly from a root
	arrivedDir pgmodel.Direction
}

func (e *Engine) handle(ctx context.Context, t Task) ([]Task, error) {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring session: %w", err)
	}
	defer session.Release(ctx)

	switch t.kind {
	case kindRoot:
		return e.handleRoot(ctx, session.Tx(), t)
	default:
		return e.handleTable(ctx, session, t)
	}
}

func (e *Engine) handleRoot(ctx context.Context, tx pgx.Tx, t Task) ([]Task, error) {
	ids, err := queryRowIds(ctx, tx, rootQuery(t.table, t.condition))
	if err != nil {
		return nil, fmt.Errorf("scanning root %s: %w", t.table.ID, err)
	}

	novel := e.rowSet(t.table.ID).Add(ids)
	return e.segmentTasks(t.table, novel, nil, 0), nil
}

func (e *Engine) handleTable(ctx context.Context, session *snapshot.Session, t Task) ([]Task, error) {
	tx := session.Tx()

	if _, err := tx.Exec(ctx, createTempTable); err != nil {
		return nil, fmt.Errorf("creating temp table: %w", err)
	}
	if err := loadTempTable(ctx, tx, t.segment); err != nil {
		return nil, fmt.Errorf("loading segment into temp table: %w", err)
	}
	if _, err := tx.Exec(ctx, "ANALYZE pg_temp."+tempTableName); err != nil {
		return nil, fmt.Errorf("analyzing temp table: %w", err)
	}

	var children []Task
	edges := eligibleEdges(t.table, t.arrivedRef, t.arrivedDir)
	orderEdges(edges)

	for _, e2 := range edges {
		ids, err := queryRowIds(ctx, tx, discoveryQuery(t.table, e2))
		if err != nil {
			return nil, fmt.Errorf("discovering %s via %s: %w", e2.opposite.ID, e2.ref.ID, err)
		}

		novel := e.rowSet(e2.opposite.ID).Add(ids)
		children = append(children, e.segmentTasks(e2.opposite, novel, e2.ref, e2.direction)...)
	}

	if err := e.extractSegment(ctx, session, t.table); err != nil {
		return nil, fmt.Errorf("extracting %s segment: %w", t.table.ID, err)
	}

	return children, nil
}

// segmentTasks marks table reached, records its static manifest metadata,
// and partitions novel into MaxSegmentRows-bounded table tasks arriving via
// ref/dir.
func (e *Engine) segmentTasks(table *pgmodel.Table, novel []rowid.RowId, ref *pgmodel.Reference, dir pgmodel.Direction) []Task {
	if len(novel) == 0 {
		return nil
	}

	e.markReached(table.ID)
	e.manifest.EnsureTable(table.ID, table.Schema, table.Name, table.Columns)

	var out []Task
	for start := 0; start < len(novel); start += e.opts.MaxSegmentRows {
		end := start + e.opts.MaxSegmentRows
		if end > len(novel) {
			end = len(novel)
		}
		segment := append([]rowid.RowId(nil), novel[start:end]...)
		out = append(out, Task{kind: kindTable, table: table, segment: segment, arrivedRef: ref, arrivedDir: dir})
	}
	return out
}

func queryRowIds(ctx context.Context, tx pgx.Tx, sql string) ([]rowid.RowId, error) {
	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rowid.RowId
	for rows.Next() {
		var tid pgtype.TID
		if err := rows.Scan(&tid); err != nil {
			return nil, err
		}
		id, err := rowid.FromBlockOffset(tid.BlockNumber, tid.OffsetNumber)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// loadTempTable bulk-inserts ids into the session's temp table via the
// binary copy protocol.
func loadTempTable(ctx context.Context, tx pgx.Tx, ids []rowid.RowId) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"pg_temp", tempTableName}, []string{"tid"},
		pgx.CopyFromSlice(len(ids), func(i int) ([]any, error) {
			block, offset := ids[i].BlockOffset()
			return []any{pgtype.TID{BlockNumber: block, OffsetNumber: offset, Valid: true}}, nil
		}),
	)
	return err
}

// extractSegment copies the segment's own rows out of the database, applies
// the table's configured transform if any, and writes the result as the
// table's next archive segment entry.
func (e *Engine) extractSegment(ctx context.Context, session *snapshot.Session, t *pgmodel.Table) error {
	index := e.manifest.ReserveSegmentIndex(t.ID)

	entry, err := e.archive.OpenSegment(t.ID, index)
	if err != nil {
		return fmt.Errorf("opening archive entry: %w", err)
	}
	defer entry.Close()

	sql := copyToStdout(extractQuery(t))
	conn := session.Conn.Conn()

	tt := e.opts.Transforms[t.ID]
	if tt == nil || !tt.HasWork() {
		tag, err := conn.PgConn().CopyTo(ctx, entry, sql)
		if err != nil {
			return err
		}
		rowCount := int(tag.RowsAffected())
		e.manifest.SetSegmentRowCount(t.ID, index, rowCount)
		e.opts.Logger.LogSegmentWritten(t.ID, index, rowCount)
		return nil
	}

	var buf bytes.Buffer
	if _, err := conn.PgConn().CopyTo(ctx, &buf, sql); err != nil {
		return err
	}

	rowCount, err := transformCopyStream(&buf, entry, tt)
	if err != nil {
		return err
	}
	e.manifest.SetSegmentRowCount(t.ID, index, rowCount)
	e.opts.Logger.LogSegmentWritten(t.ID, index, rowCount)
	return nil
}

func transformCopyStream(src io.Reader, dst io.Writer, tt *transform.TableTransformer) (int, error) {
	reader := copyformat.NewReader(src)
	writer := copyformat.NewWriter(dst)

	count := 0
	for {
		row, err := reader.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		transformed, err := tt.TransformRow(row)
		if err != nil {
			return count, err
		}
		if err := writer.Write(transformed); err != nil {
			return count, err
		}
		count++
	}
}
