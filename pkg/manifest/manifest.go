// SPDX-License-Identifier: Apache-2.0

// Package manifest is the typed view of an archive's manifest.json: the
// per-table segment list, optional DDL section counts, and the sequence
// value sidecars.
package manifest

import "sync"

// TableSegment records the row count of one written segment. Segment index
// is implicit in its position within Table.Segments (1-indexed on disk).
type TableSegment struct {
	RowCount int `json:"rowCount"`
}

// Table is a manifest entry for one dumped table.
type Table struct {
	Schema   string         `json:"schema"`
	Name     string         `json:"name"`
	Columns  []string       `json:"columns"`
	Segments []TableSegment `json:"segments"`
}

// Sequence is a manifest entry for one sequence whose value was captured.
type Sequence struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Sections records how many individual DDL statements were captured for a
// pre-data or post-data section, or nil if DDL emission was not enabled.
type Sections struct {
	PreData  int `json:"preData"`
	PostData int `json:"postData"`
}

// Manifest is the serialisable structure written as the archive's
// manifest.json member.
type Manifest struct {
	Tables    map[string]*Table    `json:"tables"`
	Sequences map[string]*Sequence `json:"sequences"`
	Sections  *Sections            `json:"sections,omitempty"`
}

// New returns an empty Manifest ready for accumulation during a dump.
func New() *Manifest {
	return &Manifest{
		Tables:    make(map[string]*Table),
		Sequences: make(map[string]*Sequence),
	}
}

// Accumulator is a mutex-guarded builder for a Manifest, safe for concurrent
// use by traversal tasks writing segments for many tables at once.
type Accumulator struct {
	mu sync.Mutex
	m  *Manifest
}

// NewAccumulator wraps a fresh Manifest for concurrent accumulation.
func NewAccumulator() *Accumulator {
	return &Accumulator{m: New()}
}

// EnsureTable registers a table's static metadata the first time any of its
// segments are written.
func (a *Accumulator) EnsureTable(id, schema, name string, columns []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.m.Tables[id]; ok {
		return
	}
	a.m.Tables[id] = &Table{Schema: schema, Name: name, Columns: columns}
}

// AddSegment records a newly written segment for table id, returning its
// 1-indexed position.
func (a *Accumulator) AddSegment(id string, rowCount int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.m.Tables[id]
	t.Segments = append(t.Segments, TableSegment{RowCount: rowCount})
	return len(t.Segments)
}

// ReserveSegmentIndex allocates the next 1-indexed segment slot for table id
// without yet knowing its row count, so a writer can pick the archive entry
// name before streaming starts. SetSegmentRowCount fills in the count once
// extraction finishes.
func (a *Accumulator) ReserveSegmentIndex(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.m.Tables[id]
	t.Segments = append(t.Segments, TableSegment{})
	return len(t.Segments)
}

// SetSegmentRowCount fills in the row count of a previously reserved segment
// index (1-indexed).
func (a *Accumulator) SetSegmentRowCount(id string, index, rowCount int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.m.Tables[id].Segments[index-1].RowCount = rowCount
}

// SetSequence records that sequence id was captured.
func (a *Accumulator) SetSequence(id, schema, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.Sequences[id] = &Sequence{Schema: schema, Name: name}
}

// SetSections records how many pre-data/post-data statements were captured.
func (a *Accumulator) SetSections(preData, postData int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.Sections = &Sections{PreData: preData, PostData: postData}
}

// Manifest returns the accumulated manifest. Callers must not mutate tables
// further once this is called for serialisation.
func (a *Accumulator) Manifest() *Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m
}
