// SPDX-License-Identifier: Apache-2.0

package transform

import "github.com/pgslice/pgslice/pkg/copyformat"

// TableTransformer applies one Transformer per column to every row of a
// table's extracted data, leaving unconfigured columns untouched.
type TableTransformer struct {
	byColumn []Transformer // nil entry means "no transform for this column"
}

// NewTableTransformer builds a TableTransformer for a table whose columns
// are given in order. columnTransforms maps column name to transform name;
// names not present in columnTransforms pass through unchanged.
func NewTableTransformer(ctx *Context, columns []string, columnTransforms map[string]string) (*TableTransformer, error) {
	byColumn := make([]Transformer, len(columns))
	for i, col := range columns {
		name, ok := columnTransforms[col]
		if !ok {
			continue
		}
		t, err := ctx.GetTransform(name)
		if err != nil {
			return nil, err
		}
		byColumn[i] = t
	}
	return &TableTransformer{byColumn: byColumn}, nil
}

// TransformRow returns a new row with each column's configured transform
// applied; row itself is not modified. Fields beyond the transformer's
// columns are copied through unchanged.
func (t *TableTransformer) TransformRow(row copyformat.Row) (copyformat.Row, error) {
	out := make(copyformat.Row, len(row))
	for i, field := range row {
		if i >= len(t.byColumn) || t.byColumn[i] == nil {
			out[i] = field
			continue
		}
		transformed, err := t.byColumn[i].Transform(field)
		if err != nil {
			return nil, err
		}
		out[i] = transformed
	}
	return out, nil
}

// HasWork reports whether any column of the table actually has a transform
// configured, so callers can skip the copy-format round trip entirely for
// untransformed tables.
func (t *TableTransformer) HasWork() bool {
	for _, c := range t.byColumn {
		if c != nil {
			return true
		}
	}
	return false
}
