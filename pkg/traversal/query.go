// SPDX-License-Identifier: Apache-2.0

package traversal

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgslice/pgslice/pkg/pgmodel"
)

func qualify(t *pgmodel.Table) string {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}.Sanitize()
	}
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

func quoteCol(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteCols(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteCol(n)
	}
	return out
}

// rootQuery selects the ctid of every row of table matching condition.
func rootQuery(table *pgmodel.Table, condition string) string {
	return fmt.Sprintf(`SELECT ctid FROM %s WHERE %s ORDER BY ctid`, qualify(table), condition)
}

// edge describes one directed hop out of the current table, derived from a
// Reference and the direction it is being traversed in.
type edge struct {
	ref        *pgmodel.Reference
	direction  pgmodel.Direction
	opposite   *pgmodel.Table
	localCols  []string
	remoteCols []string
	// distinct controls whether the discovery query de-duplicates the
	// opposite table's matched ctids: required when following FORWARD
	// (many children can reference the same parent), unnecessary when
	// following REVERSE (a row has at most one parent per edge).
	distinct bool
}

// eligibleEdges returns every edge out of current that may be followed,
// given the edge that was just used to arrive there (arrived may be nil for
// a root task). It implements the "don't go back the way you came"
// cycle-avoidance rule: the reference just traversed is excluded from being
// immediately re-traversed in the opposite direction.
func eligibleEdges(current *pgmodel.Table, arrived *pgmodel.Reference, arrivedDir pgmodel.Direction) []edge {
	var out []edge

	for _, ref := range current.References {
		if !ref.Directions.Has(pgmodel.Forward) {
			continue
		}
		if arrived == ref && arrivedDir == pgmodel.Reverse {
			continue
		}
		out = append(out, edge{
			ref:        ref,
			direction:  pgmodel.Forward,
			opposite:   ref.ReferenceTable,
			localCols:  ref.Columns,
			remoteCols: ref.ReferenceColumns,
			distinct:   true,
		})
	}

	for _, ref := range current.ReverseReferences {
		if !ref.Directions.Has(pgmodel.Reverse) {
			continue
		}
		if arrived == ref && arrivedDir == pgmodel.Forward {
			continue
		}
		out = append(out, edge{
			ref:        ref,
			direction:  pgmodel.Reverse,
			opposite:   ref.Table,
			localCols:  ref.ReferenceColumns,
			remoteCols: ref.Columns,
			distinct:   false,
		})
	}

	return out
}

// orderEdges sorts edges by their opposite table's estimated row count,
// ascending, so the cheapest joins run first within a table task.
func orderEdges(edges []edge) {
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && edges[j-1].opposite.EstimatedRowCount > edges[j].opposite.EstimatedRowCount; j-- {
			edges[j-1], edges[j] = edges[j], edges[j-1]
		}
	}
}

// discoveryQuery builds the join between the session's temp table of
// candidate ids and e's opposite table, returning the opposite table's
// matched ctids.
func discoveryQuery(current *pgmodel.Table, e edge) string {
	conds := make([]string, len(e.localCols))
	for i := range e.localCols {
		conds[i] = fmt.Sprintf("c.%s = o.%s", quoteCol(e.localCols[i]), quoteCol(e.remoteCols[i]))
	}

	distinct := ""
	if e.distinct {
		distinct = "DISTINCT "
	}

	return fmt.Sprintf(
		`SELECT %so.ctid FROM %s o JOIN %s c ON %s JOIN pg_temp.%s s ON c.ctid = s.tid ORDER BY o.ctid`,
		distinct, qualify(e.opposite), qualify(current), strings.Join(conds, " AND "), tempTableName,
	)
}

// extractQuery builds the COPY source selecting every column of table for
// the rows named in the session's temp table.
func extractQuery(table *pgmodel.Table) string {
	return fmt.Sprintf(
		`SELECT %s FROM %s WHERE ctid = ANY(SELECT tid FROM pg_temp.%s)`,
		strings.Join(quoteCols(table.Columns), ", "), qualify(table), tempTableName,
	)
}

func copyToStdout(sql string) string {
	return fmt.Sprintf("COPY (%s) TO STDOUT", sql)
}
