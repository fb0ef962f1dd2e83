// SPDX-License-Identifier: Apache-2.0

// Package configschema defines the JSON document shapes for the three
// configuration documents spec.md §6 names (schema, transform, manifest) and
// a thin structural pre-flight validation pass over them.
//
// Grounded on slice_db/formats/{schema,dump,transform}.py's dataclasses_json
// shapes; Go structs mirror their camelCase JSON field names directly rather
// than round-tripping through a dataclass-style schema() call.
package configschema

import (
	"encoding/json"

	"github.com/oapi-codegen/nullable"

	"github.com/pgslice/pgslice/pkg/pgmodel"
)

// Direction is the JSON spelling of a pgmodel.Direction.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// ReferenceDoc is one entry of SchemaDoc.References.
type ReferenceDoc struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Table            string              `json:"table"`
	Columns          []string            `json:"columns"`
	ReferenceTable   string              `json:"referenceTable"`
	ReferenceColumns []string            `json:"referenceColumns"`
	Directions       []Direction         `json:"directions"`
	Deferrable       nullable.Nullable[bool] `json:"deferrable,omitempty"`
}

// TableDoc is one entry of SchemaDoc.Tables.
type TableDoc struct {
	Schema    string   `json:"schema,omitempty"`
	Name      string   `json:"name"`
	Columns   []string `json:"columns"`
	Sequences []string `json:"sequences,omitempty"`
}

// SequenceDoc is one entry of SchemaDoc.Sequences.
type SequenceDoc struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
}

// SchemaDoc is the input "Schema JSON" document of spec.md §6: the
// reference graph configuration consumed to build a pgmodel.Schema.
type SchemaDoc struct {
	References map[string]ReferenceDoc `json:"references"`
	Sequences  map[string]SequenceDoc  `json:"sequences,omitempty"`
	Tables     map[string]TableDoc     `json:"tables"`
}

// ToSchema builds an immutable pgmodel.Schema from the document, defaulting
// a reference's directions to {forward, reverse} and deferrable to false
// when omitted, matching slice_db's DumpReference defaults.
func (d *SchemaDoc) ToSchema() (*pgmodel.Schema, error) {
	tables := make([]pgmodel.TableConfig, 0, len(d.Tables))
	for id, t := range d.Tables {
		var seqs []pgmodel.Sequence
		for _, seqID := range t.Sequences {
			sd, ok := d.Sequences[seqID]
			if !ok {
				continue
			}
			seqs = append(seqs, pgmodel.Sequence{ID: seqID, Schema: sd.Schema, Name: sd.Name})
		}
		tables = append(tables, pgmodel.TableConfig{
			ID:        id,
			Schema:    t.Schema,
			Name:      t.Name,
			Columns:   t.Columns,
			Sequences: seqs,
		})
	}

	refs := make([]pgmodel.ReferenceConfig, 0, len(d.References))
	for id, r := range d.References {
		dirs := r.Directions
		if dirs == nil {
			dirs = []Direction{DirectionForward, DirectionReverse}
		}
		var pd []pgmodel.Direction
		for _, dir := range dirs {
			if dir == DirectionForward {
				pd = append(pd, pgmodel.Forward)
			} else {
				pd = append(pd, pgmodel.Reverse)
			}
		}

		deferrable := false
		if v, err := r.Deferrable.Get(); err == nil {
			deferrable = v
		}

		refs = append(refs, pgmodel.ReferenceConfig{
			ID:               id,
			Name:             r.Name,
			Table:            r.Table,
			Columns:          r.Columns,
			ReferenceTable:   r.ReferenceTable,
			ReferenceColumns: r.ReferenceColumns,
			Directions:       pgmodel.NewDirections(pd...),
			Deferrable:       deferrable,
		})
	}

	return pgmodel.NewSchema(tables, refs)
}

// FromSchema serialises a pgmodel.Schema back into a SchemaDoc, the inverse
// of ToSchema. Used by the `schema` CLI command to print a live database's
// introspected graph, and by `schema filter-children` to re-emit a document
// with some references' reverse direction stripped.
func FromSchema(s *pgmodel.Schema) *SchemaDoc {
	doc := &SchemaDoc{
		References: make(map[string]ReferenceDoc),
		Sequences:  make(map[string]SequenceDoc),
		Tables:     make(map[string]TableDoc),
	}

	for _, t := range s.Tables() {
		seqIDs := make([]string, 0, len(t.Sequences))
		for _, seq := range t.Sequences {
			seqIDs = append(seqIDs, seq.ID)
			doc.Sequences[seq.ID] = SequenceDoc{Schema: seq.Schema, Name: seq.Name}
		}
		doc.Tables[t.ID] = TableDoc{Schema: t.Schema, Name: t.Name, Columns: t.Columns, Sequences: seqIDs}
	}

	for _, r := range s.References() {
		dirs := []Direction{}
		if r.Directions.Has(pgmodel.Forward) {
			dirs = append(dirs, DirectionForward)
		}
		if r.Directions.Has(pgmodel.Reverse) {
			dirs = append(dirs, DirectionReverse)
		}
		doc.References[r.ID] = ReferenceDoc{
			ID:               r.ID,
			Name:             r.Name,
			Table:            r.Table.ID,
			Columns:          r.Columns,
			ReferenceTable:   r.ReferenceTable.ID,
			ReferenceColumns: r.ReferenceColumns,
			Directions:       dirs,
			Deferrable:       nullable.NewNullableWithValue(r.Deferrable),
		}
	}

	return doc
}

// ParseSchemaDoc decodes and lightly validates a schema document.
func ParseSchemaDoc(data []byte) (*SchemaDoc, error) {
	if err := Validate(SchemaJSONSchema, data); err != nil {
		return nil, err
	}
	var doc SchemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
