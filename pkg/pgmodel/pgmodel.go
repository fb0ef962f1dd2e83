// SPDX-License-Identifier: Apache-2.0

// Package pgmodel is the in-memory reference-graph data model: tables,
// references, sequences, roots, and the immutable schema built from them.
package pgmodel

import "fmt"

// Direction is a permission to traverse a Reference in a given sense.
type Direction int

const (
	// Forward traverses from the referencing (child) row to the referenced
	// (parent) row.
	Forward Direction = iota
	// Reverse traverses from the referenced (parent) row to rows that
	// reference it (children).
	Reverse
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "reverse"
}

// Directions is a set of Direction values, as the low two bits of an int.
type Directions uint8

const (
	DirForward Directions = 1 << iota
	DirReverse
)

func NewDirections(ds ...Direction) Directions {
	var out Directions
	for _, d := range ds {
		if d == Forward {
			out |= DirForward
		} else {
			out |= DirReverse
		}
	}
	return out
}

func (d Directions) Has(dir Direction) bool {
	if dir == Forward {
		return d&DirForward != 0
	}
	return d&DirReverse != 0
}

// Sequence is a table's identity/serial sequence.
type Sequence struct {
	ID     string
	Schema string
	Name   string
}

// Table is a node in the reference graph.
type Table struct {
	ID      string
	Schema  string
	Name    string
	Columns []string

	// References are outgoing edges (this table is the source).
	References []*Reference
	// ReverseReferences are incoming edges (this table is the target).
	ReverseReferences []*Reference

	Sequences []Sequence

	// EstimatedRowCount informs reference traversal ordering (§4.3.2 step 4);
	// populated from pg_catalog by pkg/dbschema, defaulting to 0 otherwise.
	EstimatedRowCount int64
}

// QualifiedName returns "schema.name", or just "name" if Schema is empty.
func (t *Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

// Reference is an edge in the graph: Table.Columns reference
// ReferenceTable.ReferenceColumns.
type Reference struct {
	ID               string
	Name             string
	Table            *Table
	Columns          []string
	ReferenceTable   *Table
	ReferenceColumns []string
	Directions       Directions
	Deferrable       bool
}

// Root is a traversal entry point: every row of Table matching Condition is
// a root match. Condition is a trusted SQL boolean expression, spliced
// verbatim into a WHERE clause.
type Root struct {
	Table     *Table
	Condition string
}

// Schema is the immutable, uniquely-indexed collection of tables,
// references, and sequences built from a validated configuration document.
// Every reference endpoint is guaranteed to resolve to a table in the same
// Schema.
type Schema struct {
	tables     map[string]*Table
	references map[string]*Reference
	sequences  map[string]Sequence
}

// TableConfig, ReferenceConfig, and SequenceConfig are the plain data shapes
// a Schema is built from, decoupled from pkg/configschema's JSON document
// shape so this package has no JSON-tag dependency.
type TableConfig struct {
	ID                string
	Schema            string
	Name              string
	Columns           []string
	Sequences         []Sequence
	EstimatedRowCount int64
}

type ReferenceConfig struct {
	ID               string
	Name             string
	Table            string
	Columns          []string
	ReferenceTable   string
	ReferenceColumns []string
	Directions       Directions
	Deferrable       bool
}

// NewSchema validates and constructs a Schema from tables and references,
// mirroring slice_db's Schema.__init__: duplicate ids and dangling
// reference endpoints are rejected up front.
func NewSchema(tables []TableConfig, references []ReferenceConfig) (*Schema, error) {
	s := &Schema{
		tables:     make(map[string]*Table, len(tables)),
		references: make(map[string]*Reference, len(references)),
		sequences:  make(map[string]Sequence),
	}

	for _, tc := range tables {
		if _, exists := s.tables[tc.ID]; exists {
			return nil, &DuplicateDefinitionError{Kind: "table", ID: tc.ID}
		}
		t := &Table{
			ID:                tc.ID,
			Schema:            tc.Schema,
			Name:              tc.Name,
			Columns:           tc.Columns,
			EstimatedRowCount: tc.EstimatedRowCount,
		}
		t.Sequences = append(t.Sequences, tc.Sequences...)
		for _, seq := range tc.Sequences {
			s.sequences[seq.ID] = seq
		}
		s.tables[tc.ID] = t
	}

	for _, rc := range references {
		table, ok := s.tables[rc.Table]
		if !ok {
			return nil, &UnknownTableError{TableID: rc.Table, Context: fmt.Sprintf("reference %q", rc.ID)}
		}
		refTable, ok := s.tables[rc.ReferenceTable]
		if !ok {
			return nil, &UnknownTableError{TableID: rc.ReferenceTable, Context: fmt.Sprintf("reference %q", rc.ID)}
		}
		if _, exists := s.references[rc.ID]; exists {
			return nil, &DuplicateDefinitionError{Kind: "reference", ID: rc.ID}
		}

		ref := &Reference{
			ID:               rc.ID,
			Name:             rc.Name,
			Table:            table,
			Columns:          rc.Columns,
			ReferenceTable:   refTable,
			ReferenceColumns: rc.ReferenceColumns,
			Directions:       rc.Directions,
			Deferrable:       rc.Deferrable,
		}
		s.references[rc.ID] = ref
		table.References = append(table.References, ref)
		refTable.ReverseReferences = append(refTable.ReverseReferences, ref)
	}

	return s, nil
}

// GetTable returns the table with the given id, or nil if none exists.
func (s *Schema) GetTable(id string) *Table {
	return s.tables[id]
}

// MustGetTable returns the table with the given id, panicking if it does
// not exist. Used internally once ids are already known-valid.
func (s *Schema) MustGetTable(id string) *Table {
	t, ok := s.tables[id]
	if !ok {
		panic(fmt.Sprintf("pgmodel: table %q does not exist", id))
	}
	return t
}

// GetReference returns the reference with the given id, or nil.
func (s *Schema) GetReference(id string) *Reference {
	return s.references[id]
}

// Tables returns every table in the schema, in no particular order.
func (s *Schema) Tables() []*Table {
	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	return out
}

// References returns every reference in the schema, in no particular order.
func (s *Schema) References() []*Reference {
	out := make([]*Reference, 0, len(s.references))
	for _, r := range s.references {
		out = append(out, r)
	}
	return out
}

// Sequences returns every sequence declared by any table in the schema.
func (s *Schema) Sequences() []Sequence {
	out := make([]Sequence, 0, len(s.sequences))
	for _, sq := range s.sequences {
		out = append(out, sq)
	}
	return out
}
