// SPDX-License-Identifier: Apache-2.0

package traversal

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"

	"github.com/pgslice/pgslice/pkg/pgmodel"
)

// captureSequences reads the current value of every sequence owned by a
// table that traversal reached, and writes each as its own archive sidecar
// entry. Sequence state is outside the dump's snapshot (sequences are
// non-transactional in Postgres), so this runs once discovery has fully
// settled rather than from within any one table task.
func (e *Engine) captureSequences(ctx context.Context) error {
	seen := map[string]pgmodel.Sequence{}
	for _, tableID := range e.reachedTables() {
		table := e.schema.GetTable(tableID)
		if table == nil {
			continue
		}
		for _, seq := range table.Sequences {
			seen[seq.ID] = seq
		}
	}
	if len(seen) == 0 {
		return nil
	}

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring session for sequence capture: %w", err)
	}
	defer session.Release(ctx)

	for id, seq := range seen {
		lastValue, err := e.captureSequence(ctx, session.Tx(), seq)
		if err != nil {
			return err
		}
		e.manifest.SetSequence(id, seq.Schema, seq.Name)
		e.opts.Logger.LogSequenceCaptured(id, lastValue)
	}
	return nil
}

func (e *Engine) captureSequence(ctx context.Context, tx pgx.Tx, seq pgmodel.Sequence) (int64, error) {
	var lastValue int64
	sql := fmt.Sprintf("SELECT last_value FROM %s", qualify(&pgmodel.Table{Schema: seq.Schema, Name: seq.Name}))
	if err := tx.QueryRow(ctx, sql).Scan(&lastValue); err != nil {
		return 0, fmt.Errorf("reading %s: %w", seq.ID, err)
	}

	w, err := e.archive.OpenSequence(seq.ID)
	if err != nil {
		return 0, fmt.Errorf("opening sequence entry for %s: %w", seq.ID, err)
	}
	defer w.Close()

	_, err = io.WriteString(w, fmt.Sprintf("%d\n", lastValue))
	return lastValue, err
}
