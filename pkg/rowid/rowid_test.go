// SPDX-License-Identifier: Apache-2.0

package rowid_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgslice/pgslice/pkg/rowid"
)

func TestFromBlockOffsetRoundTrip(t *testing.T) {
	id, err := rowid.FromBlockOffset(42, 7)
	require.NoError(t, err)

	block, offset := id.BlockOffset()
	assert.Equal(t, uint32(42), block)
	assert.Equal(t, uint16(7), offset)
}

func TestSetAddReturnsOnlyNovelty(t *testing.T) {
	var s rowid.Set

	first := s.Add([]rowid.RowId{3, 1, 2})
	assert.ElementsMatch(t, []rowid.RowId{3, 1, 2}, first)
	assert.Equal(t, 3, s.Len())

	second := s.Add([]rowid.RowId{2, 4})
	assert.ElementsMatch(t, []rowid.RowId{4}, second)
	assert.Equal(t, 4, s.Len())

	assert.Equal(t, []rowid.RowId{1, 2, 3, 4}, s.Snapshot())
}

func TestSetAddEmpty(t *testing.T) {
	var s rowid.Set
	assert.Nil(t, s.Add(nil))
	assert.Equal(t, 0, s.Len())
}

func TestSetAddConcurrentNoDoubleCounting(t *testing.T) {
	var s rowid.Set

	const n = 200
	ids := make([]rowid.RowId, n)
	for i := range ids {
		ids[i] = rowid.RowId(i % 50)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			novel := s.Add(ids)
			mu.Lock()
			total += len(novel)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, total)
	assert.Equal(t, 50, s.Len())
}
