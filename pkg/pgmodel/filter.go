// SPDX-License-Identifier: Apache-2.0

package pgmodel

// FilterChildren computes, for a schema document rooted at the given table
// ids, which references should have their REVERSE direction stripped so
// that a table outside the reachable "children" set can no longer reach a
// child table as one of its dependents.
//
// This mirrors slice_db's `schema-filter children` CLI subcommand
// (slice_db/cli/schema_filter.py): starting from the given tables, walk
// REVERSE edges to compute the set of reachable child tables, then for
// every reference whose source (referencing) table is a child but whose
// target (referenced) table is not, mark that reference's REVERSE direction
// for removal.
//
// The result is a set of reference ids whose REVERSE direction the caller
// should strip before re-serialising the schema document; pgmodel.Schema
// itself is immutable and is not mutated by this function.
func FilterChildren(s *Schema, tableIDs []string) (childTableIDs map[string]bool, stripReverse map[string]bool) {
	childTableIDs = make(map[string]bool)
	stripReverse = make(map[string]bool)

	var visit func(t *Table)
	visit = func(t *Table) {
		if t == nil || childTableIDs[t.ID] {
			return
		}
		childTableIDs[t.ID] = true
		for _, ref := range t.ReverseReferences {
			if ref.Directions.Has(Reverse) {
				visit(ref.Table)
			}
		}
	}

	for _, id := range tableIDs {
		visit(s.GetTable(id))
	}

	for _, t := range s.Tables() {
		if childTableIDs[t.ID] {
			continue
		}
		for _, ref := range t.ReverseReferences {
			if childTableIDs[ref.Table.ID] {
				stripReverse[ref.ID] = true
			}
		}
	}

	return childTableIDs, stripReverse
}
