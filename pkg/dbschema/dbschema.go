// SPDX-License-Identifier: Apache-2.0

// Package dbschema introspects a live Postgres database's catalog and
// builds the pgmodel.Schema the rest of the tool operates against. This is
// the one place allowed to assume a live connection; everything downstream
// works from the resulting in-memory Schema or its JSON document form.
package dbschema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgslice/pgslice/pkg/pgmodel"
)

// Queryer is the subset of pkg/db.DB that catalog introspection needs. A
// *pgxpool.Pool satisfies it directly, as does pkg/db.RDB.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const tablesQuery = `
SELECT n.nspname, c.relname, c.oid, c.reltuples
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'r'
  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
  AND n.nspname !~ '^pg_'
ORDER BY n.nspname, c.relname
`

const columnsQuery = `
SELECT a.attname
FROM pg_catalog.pg_attribute a
WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum
`

const referencesQuery = `
SELECT con.conname,
       tn.nspname, t.relname,
       array_agg(att.attname ORDER BY u.ord) AS columns,
       ftn.nspname, ft.relname,
       array_agg(fatt.attname ORDER BY u.ord) AS ref_columns,
       con.condeferrable
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class t ON t.oid = con.conrelid
JOIN pg_catalog.pg_namespace tn ON tn.oid = t.relnamespace
JOIN pg_catalog.pg_class ft ON ft.oid = con.confrelid
JOIN pg_catalog.pg_namespace ftn ON ftn.oid = ft.relnamespace
JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS u(attnum, fattnum, ord) ON true
JOIN pg_catalog.pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
JOIN pg_catalog.pg_attribute fatt ON fatt.attrelid = con.confrelid AND fatt.attnum = u.fattnum
WHERE con.contype = 'f'
GROUP BY con.conname, tn.nspname, t.relname, ftn.nspname, ft.relname, con.condeferrable
ORDER BY con.conname
`

const sequencesQuery = `
SELECT sn.nspname, s.relname, tn.nspname, t.relname
FROM pg_catalog.pg_class s
JOIN pg_catalog.pg_namespace sn ON sn.oid = s.relnamespace
JOIN pg_catalog.pg_depend d ON d.objid = s.oid AND d.deptype IN ('a', 'i')
JOIN pg_catalog.pg_class t ON t.oid = d.refobjid
JOIN pg_catalog.pg_namespace tn ON tn.oid = t.relnamespace
WHERE s.relkind = 'S'
ORDER BY sn.nspname, s.relname
`

// Introspect reads the table, foreign key, and sequence catalogs of the
// connected database and builds a pgmodel.Schema from them.
func Introspect(ctx context.Context, conn Queryer) (*pgmodel.Schema, error) {
	tables, oids, err := readTables(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}

	for i := range tables {
		cols, err := readColumns(ctx, conn, oids[i])
		if err != nil {
			return nil, fmt.Errorf("reading columns for %s: %w", tables[i].ID, err)
		}
		tables[i].Columns = cols
	}

	sequencesByTable, err := readSequences(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading sequences: %w", err)
	}
	for i := range tables {
		for _, seqID := range sequencesByTable[tables[i].ID] {
			schema, name, _ := splitTableID(seqID)
			tables[i].Sequences = append(tables[i].Sequences, pgmodel.Sequence{ID: seqID, Schema: schema, Name: name})
		}
	}

	references, err := readReferences(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading foreign keys: %w", err)
	}

	return pgmodel.NewSchema(tables, references)
}

func tableID(schema, name string) string {
	return schema + "." + name
}

func splitTableID(id string) (schema, name string, ok bool) {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return id[:i], id[i+1:], true
		}
	}
	return "", id, false
}

func readTables(ctx context.Context, conn Queryer) ([]pgmodel.TableConfig, []uint32, error) {
	rows, err := conn.Query(ctx, tablesQuery)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var tables []pgmodel.TableConfig
	var oids []uint32
	for rows.Next() {
		var schema, name string
		var oid uint32
		var reltuples float32
		if err := rows.Scan(&schema, &name, &oid, &reltuples); err != nil {
			return nil, nil, err
		}
		tables = append(tables, pgmodel.TableConfig{
			ID:                tableID(schema, name),
			Schema:            schema,
			Name:              name,
			EstimatedRowCount: int64(reltuples),
		})
		oids = append(oids, oid)
	}
	return tables, oids, rows.Err()
}

func readColumns(ctx context.Context, conn Queryer, oid uint32) ([]string, error) {
	rows, err := conn.Query(ctx, columnsQuery, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ForeignKey is one live foreign key constraint, as needed by the restore
// scheduler: enough to name it for SET CONSTRAINTS and to place it as an
// edge in the load-order DAG.
type ForeignKey struct {
	Name           string
	Schema         string
	Table          string
	ReferenceTable string
	Deferrable     bool
}

// ForeignKeys reads every live foreign key constraint in the database,
// independent of any dump-time schema document. The restore scheduler uses
// this instead of a manifest-derived graph because constraints may have
// changed since the slice was taken.
func ForeignKeys(ctx context.Context, conn Queryer) ([]ForeignKey, error) {
	refs, err := readReferences(ctx, conn)
	if err != nil {
		return nil, err
	}

	out := make([]ForeignKey, len(refs))
	for i, r := range refs {
		schema, _, _ := splitTableID(r.Table)
		out[i] = ForeignKey{
			Name:           r.Name,
			Schema:         schema,
			Table:          r.Table,
			ReferenceTable: r.ReferenceTable,
			Deferrable:     r.Deferrable,
		}
	}
	return out, nil
}

func readReferences(ctx context.Context, conn Queryer) ([]pgmodel.ReferenceConfig, error) {
	rows, err := conn.Query(ctx, referencesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []pgmodel.ReferenceConfig
	for rows.Next() {
		var name, tableSchema, tableName string
		var columns []string
		var refSchema, refName string
		var refColumns []string
		var deferrable bool
		if err := rows.Scan(&name, &tableSchema, &tableName, &columns, &refSchema, &refName, &refColumns, &deferrable); err != nil {
			return nil, err
		}
		refs = append(refs, pgmodel.ReferenceConfig{
			ID:               name,
			Name:             name,
			Table:            tableID(tableSchema, tableName),
			Columns:          columns,
			ReferenceTable:   tableID(refSchema, refName),
			ReferenceColumns: refColumns,
			Directions:       pgmodel.NewDirections(pgmodel.Forward, pgmodel.Reverse),
			Deferrable:       deferrable,
		})
	}
	return refs, rows.Err()
}

func readSequences(ctx context.Context, conn Queryer) (map[string][]string, error) {
	rows, err := conn.Query(ctx, sequencesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTable := map[string][]string{}
	for rows.Next() {
		var seqSchema, seqName, tableSchema, tableName string
		if err := rows.Scan(&seqSchema, &seqName, &tableSchema, &tableName); err != nil {
			return nil, err
		}
		table := tableID(tableSchema, tableName)
		byTable[table] = append(byTable[table], tableID(seqSchema, seqName))
	}
	return byTable, rows.Err()
}
