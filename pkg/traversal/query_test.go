// SPDX-License-Identifier: Apache-2.0

package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/pkg/pgmodel"
)

func buildGraph(t *testing.T) *pgmodel.Schema {
	t.Helper()

	schema, err := pgmodel.NewSchema(
		[]pgmodel.TableConfig{
			{ID: "public.orders", Schema: "public", Name: "orders", Columns: []string{"id", "customer_id"}, EstimatedRowCount: 1000},
			{ID: "public.customers", Schema: "public", Name: "customers", Columns: []string{"id"}, EstimatedRowCount: 10},
			{ID: "public.line_items", Schema: "public", Name: "line_items", Columns: []string{"id", "order_id"}, EstimatedRowCount: 5000},
		},
		[]pgmodel.ReferenceConfig{
			{
				ID: "orders_customer_id_fkey", Name: "orders_customer_id_fkey",
				Table: "public.orders", Columns: []string{"customer_id"},
				ReferenceTable: "public.customers", ReferenceColumns: []string{"id"},
				Directions: pgmodel.NewDirections(pgmodel.Forward, pgmodel.Reverse),
			},
			{
				ID: "line_items_order_id_fkey", Name: "line_items_order_id_fkey",
				Table: "public.line_items", Columns: []string{"order_id"},
				ReferenceTable: "public.orders", ReferenceColumns: []string{"id"},
				Directions: pgmodel.NewDirections(pgmodel.Forward, pgmodel.Reverse),
			},
		},
	)
	require.NoError(t, err)
	return schema
}

func TestEligibleEdgesExcludesTheWayYouCame(t *testing.T) {
	schema := buildGraph(t)
	orders := schema.GetTable("public.orders")
	ref := schema.GetReference("orders_customer_id_fkey")

	edges := eligibleEdges(orders, ref, pgmodel.Reverse)

	for _, e := range edges {
		if e.ref == ref {
			assert.Fail(t, "should not re-traverse the edge just arrived via in the opposite direction")
		}
	}
	// line_items reverse edge should still be eligible.
	found := false
	for _, e := range edges {
		if e.opposite.ID == "public.line_items" {
			found = true
			assert.Equal(t, pgmodel.Reverse, e.direction)
			assert.False(t, e.distinct)
		}
	}
	assert.True(t, found)
}

func TestEligibleEdgesFromRootHasNoExclusion(t *testing.T) {
	schema := buildGraph(t)
	orders := schema.GetTable("public.orders")

	edges := eligibleEdges(orders, nil, 0)
	assert.Len(t, edges, 2)
}

func TestOrderEdgesSortsByEstimatedRowCountAscending(t *testing.T) {
	schema := buildGraph(t)
	orders := schema.GetTable("public.orders")

	edges := eligibleEdges(orders, nil, 0)
	orderEdges(edges)

	require.Len(t, edges, 2)
	assert.Equal(t, "public.customers", edges[0].opposite.ID)
	assert.Equal(t, "public.line_items", edges[1].opposite.ID)
}

func TestDiscoveryQueryUsesDistinctOnlyForward(t *testing.T) {
	schema := buildGraph(t)
	orders := schema.GetTable("public.orders")
	edges := eligibleEdges(orders, nil, 0)

	for _, e := range edges {
		sql := discoveryQuery(orders, e)
		if e.direction == pgmodel.Forward {
			assert.Contains(t, sql, "SELECT DISTINCT")
		} else {
			assert.NotContains(t, sql, "DISTINCT")
		}
	}
}

func TestRootQueryOrdersByCtid(t *testing.T) {
	schema := buildGraph(t)
	orders := schema.GetTable("public.orders")
	sql := rootQuery(orders, "status = 'open'")
	assert.Contains(t, sql, `"public"."orders"`)
	assert.Contains(t, sql, "ORDER BY ctid")
	assert.Contains(t, sql, "status = 'open'")
}
