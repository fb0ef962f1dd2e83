// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgslice/pgslice/cmd/flags"
	"github.com/pgslice/pgslice/pkg/configschema"
	"github.com/pgslice/pgslice/pkg/dbschema"
	"github.com/pgslice/pgslice/pkg/pgmodel"
)

func schemaCmd() *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the live database's reference graph as a schema document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd.Context())
		},
	}

	schemaCmd.AddCommand(filterChildrenCmd())
	return schemaCmd
}

func runSchema(ctx context.Context) error {
	pool, err := openPool(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	schema, err := dbschema.Introspect(ctx, pool)
	if err != nil {
		return fmt.Errorf("introspecting schema: %w", err)
	}

	return printSchemaDoc(configschema.FromSchema(schema))
}

func filterChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter-children <table>...",
		Short: "Strip reverse references that lead into the given tables' child closure from outside it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilterChildren(cmd.Context(), args)
		},
	}
}

func runFilterChildren(ctx context.Context, tableIDs []string) error {
	pool, err := openPool(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	schema, err := dbschema.Introspect(ctx, pool)
	if err != nil {
		return fmt.Errorf("introspecting schema: %w", err)
	}

	for _, id := range tableIDs {
		if schema.GetTable(id) == nil {
			return pgmodel.UnknownTableError{TableID: id, Context: "filter-children argument"}
		}
	}

	_, stripReverse := pgmodel.FilterChildren(schema, tableIDs)

	doc := configschema.FromSchema(schema)
	for id, ref := range doc.References {
		if !stripReverse[id] {
			continue
		}
		filtered := ref.Directions[:0]
		for _, d := range ref.Directions {
			if d != configschema.DirectionReverse {
				filtered = append(filtered, d)
			}
		}
		ref.Directions = filtered
		doc.References[id] = ref
	}

	return printSchemaDoc(doc)
}

func printSchemaDoc(doc *configschema.SchemaDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling schema document: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
