// SPDX-License-Identifier: Apache-2.0

package copyformat_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/pkg/copyformat"
)

func strp(s string) *string { return &s }

func TestParseFieldNull(t *testing.T) {
	f, err := copyformat.ParseField(`\N`)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestParseFieldEscapes(t *testing.T) {
	f, err := copyformat.ParseField(`a\tb\nc\\d`)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "a\tb\nc\\d", *f)
}

func TestParseFieldMalformedEscape(t *testing.T) {
	_, err := copyformat.ParseField(`a\qb`)
	require.Error(t, err)
	var malformed *copyformat.MalformedEscapeError
	assert.ErrorAs(t, err, &malformed)
}

func TestSerializeFieldRoundTrip(t *testing.T) {
	for _, s := range []string{"plain", "has\ttab", "has\nnewline", `back\slash`, "", "\v\b\f\r"} {
		serialized := copyformat.SerializeField(strp(s))
		parsed, err := copyformat.ParseField(serialized)
		require.NoError(t, err)
		require.NotNil(t, parsed)
		assert.Equal(t, s, *parsed)
	}
}

func TestSerializeFieldNull(t *testing.T) {
	assert.Equal(t, `\N`, copyformat.SerializeField(nil))
}

func TestRowRoundTrip(t *testing.T) {
	row := copyformat.Row{strp("alice"), nil, strp("has\ttab")}
	line := copyformat.SerializeRow(row)

	parsed, err := copyformat.ParseRow(line)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, "alice", *parsed[0])
	assert.Nil(t, parsed[1])
	assert.Equal(t, "has\ttab", *parsed[2])
}

func TestReaderWriter(t *testing.T) {
	var buf strings.Builder
	w := copyformat.NewWriter(&buf)
	require.NoError(t, w.Write(copyformat.Row{strp("a"), nil}))
	require.NoError(t, w.Write(copyformat.Row{strp("b"), strp("c")}))

	r := copyformat.NewReader(strings.NewReader(buf.String()))

	row1, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", *row1[0])
	assert.Nil(t, row1[1])

	row2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", *row2[0])
	assert.Equal(t, "c", *row2[1])

	_, err = r.Next()
	assert.Error(t, err)
}
