package storage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S4 CopyToProjectedRow: for each column in an all-columns projection, write
// a random byte pattern or mark null; readback either returns null or the
// exact byte pattern.
func TestProjectedRowNullsAndReadback(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	layout := NewBlockLayout([]uint8{8, 1, 2, 4, 8, 1}, DefaultBlockSize)

	allCols := make([]uint16, layout.NumCols()-1)
	for i := range allCols {
		allCols[i] = uint16(i + 1)
	}
	initializer := NewProjectedRowInitializer(layout, allCols)
	buf := make([]byte, initializer.ProjectedRowSize())
	row := initializer.InitializeRow(buf)

	require.Equal(t, uint16(len(allCols)), row.NumColumns())
	assert.Equal(t, allCols, row.ColumnIds())

	written := make([]uint64, row.NumColumns())
	isNull := make([]bool, row.NumColumns())
	for i := uint16(0); i < row.NumColumns(); i++ {
		colID := row.ColumnIdAt(i)
		size := layout.AttrSize(colID)
		if r.Intn(2) == 0 {
			isNull[i] = true
			row.SetNull(i)
			continue
		}
		v := r.Uint64()
		written[i] = v
		dst := row.AccessForceNotNull(i)
		WriteBytes(size, v, dst)
	}

	for i := uint16(0); i < row.NumColumns(); i++ {
		val := row.AccessWithNullCheck(i)
		if isNull[i] {
			assert.Nil(t, val)
			continue
		}
		require.NotNil(t, val)
		colID := row.ColumnIdAt(i)
		size := layout.AttrSize(colID)
		var mask uint64
		if size == Size8 {
			mask = ^uint64(0)
		} else {
			mask = (uint64(1) << (8 * size)) - 1
		}
		assert.Equal(t, written[i]&mask, ReadBytes(size, val))
	}
}

func TestProjectedRowColumnIndex(t *testing.T) {
	layout := NewBlockLayout([]uint8{8, 4, 2, 1}, DefaultBlockSize)
	initializer := NewProjectedRowInitializer(layout, []uint16{1, 3})
	buf := make([]byte, initializer.ProjectedRowSize())
	row := initializer.InitializeRow(buf)

	pos, ok := row.ColumnIndex(3)
	assert.True(t, ok)
	assert.Equal(t, uint16(1), pos)

	_, ok = row.ColumnIndex(2)
	assert.False(t, ok)
}

func TestProjectedRowInitializerRejectsDuplicateColumns(t *testing.T) {
	layout := NewBlockLayout([]uint8{8, 4}, DefaultBlockSize)
	assert.Panics(t, func() { NewProjectedRowInitializer(layout, []uint16{1, 1}) })
}

// Memory-safety-style check (mirrors the source's ProjectedRowTests.Alignment):
// every value position lands aligned to its own attribute size.
func TestProjectedRowValuesAligned(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for iter := 0; iter < 30; iter++ {
		n := 1 + r.Intn(20)
		sizes := randomAttrSizes(r, n+1) // +1 for the hidden column 0
		layout := NewBlockLayout(sizes, DefaultBlockSize)

		cols := make([]uint16, layout.NumCols()-1)
		for i := range cols {
			cols[i] = uint16(i + 1)
		}
		initializer := NewProjectedRowInitializer(layout, cols)
		buf := make([]byte, initializer.ProjectedRowSize())
		row := initializer.InitializeRow(buf)

		for i := uint16(0); i < row.NumColumns(); i++ {
			offset := row.valueOffsetAt(i)
			size := uint32(layout.AttrSize(row.ColumnIdAt(i)))
			assert.Zero(t, offset%size)
		}
	}
}
