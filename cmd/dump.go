// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgslice/pgslice/cmd/flags"
	"github.com/pgslice/pgslice/pkg/archive"
	"github.com/pgslice/pgslice/pkg/configschema"
	"github.com/pgslice/pgslice/pkg/ddl"
	"github.com/pgslice/pgslice/pkg/pgmodel"
	"github.com/pgslice/pgslice/pkg/progress"
	"github.com/pgslice/pgslice/pkg/snapshot"
	"github.com/pgslice/pgslice/pkg/transform"
	"github.com/pgslice/pgslice/pkg/traversal"
)

func dumpCmd() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump a referentially-consistent slice of a database to an archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.Context())
		},
	}

	flags.DumpFlags(dumpCmd)
	return dumpCmd
}

func runDump(ctx context.Context) error {
	if flags.SchemaFile() == "" {
		return fmt.Errorf("--schema is required")
	}
	if flags.Output() == "" {
		return fmt.Errorf("--output is required")
	}

	schemaData, err := os.ReadFile(flags.SchemaFile())
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	schemaDoc, err := configschema.ParseSchemaDoc(schemaData)
	if err != nil {
		return fmt.Errorf("parsing schema file: %w", err)
	}
	schema, err := schemaDoc.ToSchema()
	if err != nil {
		return fmt.Errorf("building schema: %w", err)
	}

	roots, err := parseRoots(schema, flags.Roots())
	if err != nil {
		return err
	}

	transforms, err := loadTransforms(schema)
	if err != nil {
		return err
	}

	pool, err := openPool(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	jobs := flags.Jobs()
	if jobs <= 0 {
		jobs = 1
	}

	snap, err := snapshot.Open(ctx, pool, jobs)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer snap.Close(ctx)

	out, err := os.Create(flags.Output())
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	writer := archive.NewWriter(out)

	opts := traversal.Options{
		Parallelism: jobs,
		Transforms:  transforms,
		Logger:      progress.NewLogger(),
	}
	if flags.IncludeSchema() {
		opts.DDL = &ddl.Emitter{
			Command: "pg_dump",
			Args:    []string{flags.PostgresURL()},
		}
	}

	engine := traversal.New(schema, snap, writer, opts)
	m, err := engine.Run(ctx, roots)
	if err != nil {
		return fmt.Errorf("running dump: %w", err)
	}

	mw, err := writer.OpenManifest()
	if err != nil {
		return fmt.Errorf("opening manifest entry: %w", err)
	}
	if err := json.NewEncoder(mw).Encode(m); err != nil {
		mw.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	return writer.Close()
}

// parseRoots turns "<table>:<condition>" flag values into pgmodel.Root
// entries, resolving each table against schema.
func parseRoots(schema *pgmodel.Schema, specs []string) ([]pgmodel.Root, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --root is required")
	}

	roots := make([]pgmodel.Root, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("--root %q must be of the form <table>:<condition>", spec)
		}
		tableID, condition := parts[0], parts[1]

		table := schema.GetTable(tableID)
		if table == nil {
			return nil, pgmodel.UnknownRootTableError{TableID: tableID}
		}
		if err := pgmodel.ValidateCondition(condition); err != nil {
			return nil, pgmodel.InvalidRootConditionError{TableID: tableID, Condition: condition, Cause: err}
		}

		roots = append(roots, pgmodel.Root{Table: table, Condition: condition})
	}
	return roots, nil
}

// loadTransforms reads the optional transform document and builds one
// TableTransformer per table that has configured column transforms.
func loadTransforms(schema *pgmodel.Schema) (map[string]*transform.TableTransformer, error) {
	if flags.TransformFile() == "" {
		return nil, nil
	}

	data, err := os.ReadFile(flags.TransformFile())
	if err != nil {
		return nil, fmt.Errorf("reading transform file: %w", err)
	}
	doc, err := configschema.ParseTransformDoc(data)
	if err != nil {
		return nil, fmt.Errorf("parsing transform file: %w", err)
	}

	specs := make(map[string]transform.Spec, len(doc.Transforms))
	for name, t := range doc.Transforms {
		specs[name] = transform.Spec{Class: t.Class, Config: t.Config}
	}
	tctx := transform.NewContext(specs, []byte(flags.Pepper()))

	out := make(map[string]*transform.TableTransformer, len(doc.Tables))
	for tableID, tableDoc := range doc.Tables {
		table := schema.GetTable(tableID)
		if table == nil {
			return nil, pgmodel.UnknownTableError{TableID: tableID, Context: "transform document"}
		}
		tt, err := transform.NewTableTransformer(tctx, table.Columns, tableDoc.Columns)
		if err != nil {
			return nil, fmt.Errorf("building transform for table %q: %w", tableID, err)
		}
		out[tableID] = tt
	}
	return out, nil
}
