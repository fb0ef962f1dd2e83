// SPDX-License-Identifier: Apache-2.0

package transform_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/pkg/copyformat"
	"github.com/pgslice/pgslice/pkg/transform"
)

func TestTableTransformerLeavesUnconfiguredColumnsAlone(t *testing.T) {
	specs := map[string]transform.Spec{
		"redact": {Class: "Const", Config: json.RawMessage(`{"value": "***"}`)},
	}
	ctx := transform.NewContext(specs, []byte("pepper"))

	tt, err := transform.NewTableTransformer(ctx, []string{"id", "email"}, map[string]string{"email": "redact"})
	require.NoError(t, err)
	assert.True(t, tt.HasWork())

	row := copyformat.Row{strPtr("1"), strPtr("a@example.com")}
	out, err := tt.TransformRow(row)
	require.NoError(t, err)
	assert.Equal(t, "1", *out[0])
	assert.Equal(t, "***", *out[1])
}

func TestTableTransformerNoWorkWhenNoColumnsConfigured(t *testing.T) {
	ctx := transform.NewContext(map[string]transform.Spec{}, nil)
	tt, err := transform.NewTableTransformer(ctx, []string{"id"}, map[string]string{})
	require.NoError(t, err)
	assert.False(t, tt.HasWork())
}
