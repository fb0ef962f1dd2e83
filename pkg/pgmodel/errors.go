// SPDX-License-Identifier: Apache-2.0

package pgmodel

import "fmt"

// UnknownTableError is returned when a reference names a table id that has
// no corresponding table definition.
type UnknownTableError struct {
	TableID string
	Context string
}

func (e UnknownTableError) Error() string {
	return fmt.Sprintf("no table %q, needed by %s", e.TableID, e.Context)
}

// DuplicateDefinitionError is returned when a table or reference id is
// defined more than once in the same schema document.
type DuplicateDefinitionError struct {
	Kind string // "table" or "reference"
	ID   string
}

func (e DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("multiple definitions for %s %q", e.Kind, e.ID)
}

// UnknownRootTableError is returned when a dump Root names a table id that
// does not exist in the schema.
type UnknownRootTableError struct {
	TableID string
}

func (e UnknownRootTableError) Error() string {
	return fmt.Sprintf("no table %q for root", e.TableID)
}

// InvalidRootConditionError is returned when a Root's condition fragment
// fails the defensive SQL parse (it is not a single well-formed expression).
type InvalidRootConditionError struct {
	TableID   string
	Condition string
	Cause     error
}

func (e InvalidRootConditionError) Error() string {
	return fmt.Sprintf("root condition for table %q is not a valid expression: %v", e.TableID, e.Cause)
}

func (e InvalidRootConditionError) Unwrap() error {
	return e.Cause
}

// CycleError is returned when a static dependency graph (the restore DAG
// over non-deferrable constraints) contains a cycle.
type CycleError struct {
	Nodes []string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("cycle detected among: %v", e.Nodes)
}
