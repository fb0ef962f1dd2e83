// SPDX-License-Identifier: Apache-2.0

package pgmodel

import (
	"fmt"

	pgq "github.com/pganalyze/pg_query_go/v6"
)

// ValidateCondition defensively parses a root condition fragment by
// splicing it into a throwaway `SELECT 1 WHERE <condition>` and asking
// Postgres's own parser (via pg_query_go, the parser pgroll itself depends
// on) to accept it as a single statement. It rejects conditions that smuggle
// a statement terminator or are otherwise not a single boolean expression.
//
// This is a defensive parse, not a semantic validator: the condition remains
// a trusted fragment that is spliced verbatim into a WHERE clause at
// traversal time.
func ValidateCondition(condition string) error {
	probe := "SELECT 1 WHERE " + condition

	tree, err := pgq.Parse(probe)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	if len(tree.GetStmts()) != 1 {
		return fmt.Errorf("expected a single expression, got %d statements", len(tree.GetStmts()))
	}

	return nil
}
