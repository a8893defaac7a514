package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Round-trips every field Initialize writes through its reader, matching
// §6's block binary format field-for-field.
func TestBlockHeaderInitializeRoundTrip(t *testing.T) {
	layout := NewBlockLayout([]uint8{8, 4, 2, 1}, 4096)
	store := NewBlockStore(layout.BlockSize(), 0, 0)
	block, err := store.Get()
	require.NoError(t, err)

	header := NewBlockHeader(block)
	header.Initialize(layout, 7)

	assert.Equal(t, uint32(7), header.LayoutVersion())
	assert.Equal(t, layout.NumSlots(), header.NumSlots())
	assert.Equal(t, uint32(0), header.NumRecords())

	numCols := layout.NumCols()
	assert.Equal(t, numCols, header.NumAttrs(numCols))
	for c := uint16(0); c < numCols; c++ {
		assert.Equal(t, layout.AttrOffset(c), header.AttrOffset(c))
		assert.Equal(t, layout.AttrSize(c), header.AttrSize(numCols, c))
	}
}

func TestBlockHeaderNumRecordsIncrementDecrement(t *testing.T) {
	layout := NewBlockLayout([]uint8{8, 4}, 4096)
	store := NewBlockStore(layout.BlockSize(), 0, 0)
	block, err := store.Get()
	require.NoError(t, err)

	header := NewBlockHeader(block)
	header.Initialize(layout, 1)

	header.IncrementNumRecords()
	header.IncrementNumRecords()
	assert.Equal(t, uint32(2), header.NumRecords())

	header.DecrementNumRecords()
	assert.Equal(t, uint32(1), header.NumRecords())
}
