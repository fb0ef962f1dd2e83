// SPDX-License-Identifier: Apache-2.0

package archive_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/pkg/archive"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := archive.NewWriter(&buf)

	mf, err := w.OpenManifest()
	require.NoError(t, err)
	_, err = io.WriteString(mf, `{"tables":{}}`)
	require.NoError(t, err)
	require.NoError(t, mf.Close())

	seg, err := w.OpenSegment("public.parent", 1)
	require.NoError(t, err)
	_, err = io.WriteString(seg, "1\tone\n2\ttwo\n")
	require.NoError(t, err)
	require.NoError(t, seg.Close())

	seq, err := w.OpenSequence("public.parent_id_seq")
	require.NoError(t, err)
	_, err = io.WriteString(seq, "3")
	require.NoError(t, err)
	require.NoError(t, seq.Close())

	require.NoError(t, w.Close())

	r, err := archive.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	mfr, err := r.OpenManifest()
	require.NoError(t, err)
	b, err := io.ReadAll(mfr)
	require.NoError(t, err)
	assert.Equal(t, `{"tables":{}}`, string(b))

	segr, err := r.OpenSegment("public.parent", 1)
	require.NoError(t, err)
	b, err = io.ReadAll(segr)
	require.NoError(t, err)
	assert.Equal(t, "1\tone\n2\ttwo\n", string(b))

	seqr, err := r.OpenSequence("public.parent_id_seq")
	require.NoError(t, err)
	b, err = io.ReadAll(seqr)
	require.NoError(t, err)
	assert.Equal(t, "3", string(b))
}
