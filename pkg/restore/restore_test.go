// SPDX-License-Identifier: Apache-2.0

package restore_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/internal/testutils"
	"github.com/pgslice/pgslice/pkg/archive"
	"github.com/pgslice/pgslice/pkg/manifest"
	"github.com/pgslice/pgslice/pkg/restore"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func buildArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := archive.NewWriter(&buf)

	customers, err := w.OpenSegment("public.customers", 1)
	require.NoError(t, err)
	_, err = customers.Write([]byte("1\talice\n2\tbob\n"))
	require.NoError(t, err)
	require.NoError(t, customers.Close())

	orders, err := w.OpenSegment("public.orders", 1)
	require.NoError(t, err)
	_, err = orders.Write([]byte("10\t1\n11\t2\n"))
	require.NoError(t, err)
	require.NoError(t, orders.Close())

	m := manifest.New()
	m.Tables["public.customers"] = &manifest.Table{
		Schema: "public", Name: "customers", Columns: []string{"id", "name"},
		Segments: []manifest.TableSegment{{RowCount: 2}},
	}
	m.Tables["public.orders"] = &manifest.Table{
		Schema: "public", Name: "orders", Columns: []string{"id", "customer_id"},
		Segments: []manifest.TableSegment{{RowCount: 2}},
	}

	manifestJSON, err := json.Marshal(m)
	require.NoError(t, err)

	manifestEntry, err := w.OpenManifest()
	require.NoError(t, err)
	_, err = manifestEntry.Write(manifestJSON)
	require.NoError(t, err)
	require.NoError(t, manifestEntry.Close())

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestEngineRunLoadsTablesInForeignKeyOrder(t *testing.T) {
	testutils.WithPool(t, func(ctx context.Context, pool *pgxpool.Pool, connStr string) {
		_, err := pool.Exec(ctx, `
			CREATE TABLE customers (id integer PRIMARY KEY, name text);
			CREATE TABLE orders (id integer PRIMARY KEY, customer_id integer REFERENCES customers(id));
		`)
		require.NoError(t, err)

		data := buildArchive(t)
		reader, err := archive.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)

		engine := restore.New(reader, restore.NewPoolProvider(pool), pool, restore.Options{Parallelism: 2})
		require.NoError(t, engine.Run(ctx))

		var customerCount, orderCount int
		require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM customers").Scan(&customerCount))
		require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM orders").Scan(&orderCount))
		assert.Equal(t, 2, customerCount)
		assert.Equal(t, 2, orderCount)
	})
}

func TestEngineRunRejectsDeferredConstraintsWithoutTransaction(t *testing.T) {
	testutils.WithPool(t, func(ctx context.Context, pool *pgxpool.Pool, connStr string) {
		_, err := pool.Exec(ctx, `
			CREATE TABLE customers (id integer PRIMARY KEY, name text);
			CREATE TABLE orders (
				id integer PRIMARY KEY,
				customer_id integer REFERENCES customers(id) DEFERRABLE INITIALLY DEFERRED
			);
		`)
		require.NoError(t, err)

		data := buildArchive(t)
		reader, err := archive.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)

		engine := restore.New(reader, restore.NewPoolProvider(pool), pool, restore.Options{Parallelism: 2})
		err = engine.Run(ctx)
		require.Error(t, err)
		var deferErr restore.DeferralRequiresTransactionError
		assert.ErrorAs(t, err, &deferErr)
	})
}
