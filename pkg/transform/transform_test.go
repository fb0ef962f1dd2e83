// SPDX-License-Identifier: Apache-2.0

package transform_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/pkg/transform"
)

func strPtr(s string) *string { return &s }

func build(t *testing.T, specs map[string]transform.Spec, name string) transform.Transformer {
	t.Helper()
	ctx := transform.NewContext(specs, []byte("pepper"))
	tr, err := ctx.GetTransform(name)
	require.NoError(t, err)
	return tr
}

func TestNullAlwaysNil(t *testing.T) {
	tr := build(t, map[string]transform.Spec{"n": {Class: "Null"}}, "n")
	out, err := tr.Transform(strPtr("hello"))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestConstPassesNilThrough(t *testing.T) {
	tr := build(t, map[string]transform.Spec{
		"c": {Class: "Const", Config: json.RawMessage(`{"value": "redacted"}`)},
	}, "c")

	out, err := tr.Transform(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = tr.Transform(strPtr("hello"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "redacted", *out)
}

func TestComposeChainsTransforms(t *testing.T) {
	specs := map[string]transform.Spec{
		"replace": {Class: "Replace", Config: json.RawMessage(`{"old": "foo", "new": "bar"}`)},
		"const":   {Class: "Const", Config: json.RawMessage(`{"value": "done"}`)},
		"combo":   {Class: "Compose", Config: json.RawMessage(`["replace", "const"]`)},
	}
	tr := build(t, specs, "combo")
	out, err := tr.Transform(strPtr("FOO bar"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "done", *out)
}

func TestReplaceIsCaseInsensitive(t *testing.T) {
	tr := build(t, map[string]transform.Spec{
		"r": {Class: "Replace", Config: json.RawMessage(`{"old": "secret", "new": "***"}`)},
	}, "r")
	out, err := tr.Transform(strPtr("my SECRET value"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "my *** value", *out)
}

func TestIncrementingConstCountsUp(t *testing.T) {
	tr := build(t, map[string]transform.Spec{
		"i": {Class: "IncrementingConst", Config: json.RawMessage(`{"value": "user"}`)},
	}, "i")

	first, err := tr.Transform(strPtr("a@example.com"))
	require.NoError(t, err)
	second, err := tr.Transform(strPtr("b@example.com"))
	require.NoError(t, err)

	assert.Equal(t, "user 1", *first)
	assert.Equal(t, "user 2", *second)
}

func TestIncrementingConstExcludeBypasses(t *testing.T) {
	tr := build(t, map[string]transform.Spec{
		"i": {Class: "IncrementingConst", Config: json.RawMessage(`{"value": "user", "exclude": "@internal.example"}`)},
	}, "i")

	out, err := tr.Transform(strPtr("admin@internal.example"))
	require.NoError(t, err)
	assert.Equal(t, "admin@internal.example", *out)
}

func TestAlphanumericIsDeterministicAndPreservesCategories(t *testing.T) {
	tr := build(t, map[string]transform.Spec{"a": {Class: "Alphanumeric"}}, "a")

	first, err := tr.Transform(strPtr("AB12cd"))
	require.NoError(t, err)
	second, err := tr.Transform(strPtr("AB12cd"))
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	require.Len(t, *first, 6)
	assert.True(t, strings.ToUpper((*first)[0:2]) == (*first)[0:2])
	assert.True(t, (*first)[2] >= '0' && (*first)[2] <= '9')
}

func TestAlphanumericUniqueNoCollisionSameLength(t *testing.T) {
	tr := build(t, map[string]transform.Spec{
		"a": {Class: "Alphanumeric", Config: json.RawMessage(`{"unique": true}`)},
	}, "a")

	a, err := tr.Transform(strPtr("ABC123"))
	require.NoError(t, err)
	b, err := tr.Transform(strPtr("XYZ987"))
	require.NoError(t, err)

	require.Len(t, *a, 6)
	require.Len(t, *b, 6)
	assert.NotEqual(t, *a, *b)
}

func TestGivenNameDeterministic(t *testing.T) {
	tr := build(t, map[string]transform.Spec{"g": {Class: "GivenName"}}, "g")
	a, err := tr.Transform(strPtr("Alice"))
	require.NoError(t, err)
	b, err := tr.Transform(strPtr("Alice"))
	require.NoError(t, err)
	assert.Equal(t, *a, *b)
}

func TestDateYearStaysWithinYear(t *testing.T) {
	tr := build(t, map[string]transform.Spec{"d": {Class: "DateYear"}}, "d")
	out, err := tr.Transform(strPtr("2020-06-15"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(*out, "2020-"))
}

func TestGeozipStaysWithinPrefixWhenKnown(t *testing.T) {
	tr := build(t, map[string]transform.Spec{"z": {Class: "Geozip"}}, "z")
	out, err := tr.Transform(strPtr("10001"))
	require.NoError(t, err)
	require.Len(t, *out, 5)
	assert.Equal(t, "100", (*out)[0:3])
}

func TestJsonPathTransformsMatchedField(t *testing.T) {
	specs := map[string]transform.Spec{
		"redact": {Class: "Const", Config: json.RawMessage(`{"value": "***"}`)},
		"jp": {
			Class:  "JsonPath",
			Config: json.RawMessage(`[{"path": "$.ssn", "transform": "redact"}]`),
		},
	}
	tr := build(t, specs, "jp")
	out, err := tr.Transform(strPtr(`{"ssn": "123-45-6789", "name": "Alice"}`))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(*out), &decoded))
	assert.Equal(t, "***", decoded["ssn"])
	assert.Equal(t, "Alice", decoded["name"])
}

func TestUnknownTransformNameErrors(t *testing.T) {
	ctx := transform.NewContext(map[string]transform.Spec{}, nil)
	_, err := ctx.GetTransform("missing")
	require.Error(t, err)
}

func TestComposeCycleBuildsDeferredBinding(t *testing.T) {
	specs := map[string]transform.Spec{
		"a": {Class: "Compose", Config: json.RawMessage(`["b"]`)},
		"b": {Class: "Compose", Config: json.RawMessage(`["a"]`)},
	}
	ctx := transform.NewContext(specs, nil)
	tr, err := ctx.GetTransform("a")
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestComposeForwardReferenceResolves(t *testing.T) {
	specs := map[string]transform.Spec{
		"combo":   {Class: "Compose", Config: json.RawMessage(`["replace"]`)},
		"replace": {Class: "Replace", Config: json.RawMessage(`{"old": "foo", "new": "bar"}`)},
	}
	ctx := transform.NewContext(specs, nil)
	tr, err := ctx.GetTransform("combo")
	require.NoError(t, err)
	out, err := tr.Transform(strPtr("FOO baz"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "bar baz", *out)
}
