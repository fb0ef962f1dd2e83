// SPDX-License-Identifier: Apache-2.0

package dbschema_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/internal/testutils"
	"github.com/pgslice/pgslice/pkg/dbschema"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestIntrospectFindsTablesAndForeignKey(t *testing.T) {
	testutils.WithPool(t, func(ctx context.Context, pool *pgxpool.Pool, connStr string) {
		_, err := pool.Exec(ctx, `
			CREATE TABLE parent (id serial PRIMARY KEY, name text);
			CREATE TABLE child (id serial PRIMARY KEY, parent_id integer REFERENCES parent(id), note text);
		`)
		require.NoError(t, err)

		schema, err := dbschema.Introspect(ctx, pool)
		require.NoError(t, err)

		parent := schema.GetTable("public.parent")
		require.NotNil(t, parent)
		assert.Contains(t, parent.Columns, "name")
		require.Len(t, parent.ReverseReferences, 1)

		child := schema.GetTable("public.child")
		require.NotNil(t, child)
		require.Len(t, child.References, 1)
		assert.Equal(t, "public.parent", child.References[0].ReferenceTable.ID)
		assert.Equal(t, []string{"parent_id"}, child.References[0].Columns)
	})
}
