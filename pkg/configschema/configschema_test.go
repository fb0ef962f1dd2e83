// SPDX-License-Identifier: Apache-2.0

package configschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/pkg/configschema"
)

const sampleSchema = `{
  "tables": {
    "parent": {"name": "parent", "columns": ["id"]},
    "child": {"name": "child", "columns": ["id", "parent_id"]}
  },
  "references": {
    "child_parent_id_fkey": {
      "table": "child",
      "columns": ["parent_id"],
      "referenceTable": "parent",
      "referenceColumns": ["id"]
    }
  }
}`

func TestParseSchemaDoc(t *testing.T) {
	doc, err := configschema.ParseSchemaDoc([]byte(sampleSchema))
	require.NoError(t, err)

	schema, err := doc.ToSchema()
	require.NoError(t, err)

	parent := schema.GetTable("parent")
	require.NotNil(t, parent)
	assert.Len(t, parent.ReverseReferences, 1)
}

func TestParseSchemaDocRejectsMissingRequiredField(t *testing.T) {
	_, err := configschema.ParseSchemaDoc([]byte(`{"tables": {}}`))
	require.Error(t, err)
}

func TestParseTransformDoc(t *testing.T) {
	doc, err := configschema.ParseTransformDoc([]byte(`{
		"transforms": {"name": {"class": "GivenName"}},
		"tables": {"child": {"columns": {"first_name": "name"}}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "GivenName", doc.Transforms["name"].Class)
	assert.Equal(t, "name", doc.Tables["child"].Columns["first_name"])
}
