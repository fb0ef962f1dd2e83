// SPDX-License-Identifier: Apache-2.0

package traversal_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/internal/testutils"
	"github.com/pgslice/pgslice/pkg/archive"
	"github.com/pgslice/pgslice/pkg/dbschema"
	"github.com/pgslice/pgslice/pkg/manifest"
	"github.com/pgslice/pgslice/pkg/pgmodel"
	"github.com/pgslice/pgslice/pkg/snapshot"
	"github.com/pgslice/pgslice/pkg/traversal"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestEngineRunDiscoversReferencedRowsAndWritesSegments(t *testing.T) {
	testutils.WithPool(t, func(ctx context.Context, pool *pgxpool.Pool, connStr string) {
		_, err := pool.Exec(ctx, `
			CREATE TABLE customers (id serial PRIMARY KEY, name text);
			CREATE TABLE orders (id serial PRIMARY KEY, customer_id integer REFERENCES customers(id), status text);
			CREATE TABLE line_items (id serial PRIMARY KEY, order_id integer REFERENCES orders(id), sku text);

			INSERT INTO customers (id, name) VALUES (1, 'alice'), (2, 'bob');
			INSERT INTO orders (id, customer_id, status) VALUES (10, 1, 'open'), (11, 2, 'closed');
			INSERT INTO line_items (id, order_id, sku) VALUES (100, 10, 'A'), (101, 10, 'B'), (102, 11, 'C');
		`)
		require.NoError(t, err)

		schema, err := dbschema.Introspect(ctx, pool)
		require.NoError(t, err)

		snapPool, err := snapshot.Open(ctx, pool, 2)
		require.NoError(t, err)
		defer snapPool.Close(ctx)

		var buf bytes.Buffer
		writer := archive.NewWriter(&buf)

		engine := traversal.New(schema, snapPool, writer, traversal.Options{Parallelism: 2})

		ordersTable := schema.GetTable("public.orders")
		m, err := engine.Run(ctx, []pgmodel.Root{
			{Table: ordersTable, Condition: "status = 'open'"},
		})
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		assert.Contains(t, m.Tables, "public.orders")
		assert.Contains(t, m.Tables, "public.customers")
		assert.Contains(t, m.Tables, "public.line_items")

		assert.Equal(t, 1, totalRows(m.Tables["public.orders"]))
		assert.Equal(t, 1, totalRows(m.Tables["public.customers"]))
		assert.Equal(t, 2, totalRows(m.Tables["public.line_items"]))

		reader, err := archive.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		entry, err := reader.OpenSegment("public.orders", 1)
		require.NoError(t, err)
		defer entry.Close()
	})
}

func totalRows(t *manifest.Table) int {
	total := 0
	for _, seg := range t.Segments {
		total += seg.RowCount
	}
	return total
}
