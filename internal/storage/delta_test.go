package storage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRow(t *testing.T, layout BlockLayout, cols []uint16) ProjectedRow {
	t.Helper()
	initializer := NewProjectedRowInitializer(layout, cols)
	buf := make([]byte, initializer.ProjectedRowSize())
	return initializer.InitializeRow(buf)
}

func populateRandom(r *rand.Rand, layout BlockLayout, row ProjectedRow) {
	for i := uint16(0); i < row.NumColumns(); i++ {
		colID := row.ColumnIdAt(i)
		size := layout.AttrSize(colID)
		if r.Intn(2) == 0 {
			row.SetNull(i)
			continue
		}
		WriteBytes(size, r.Uint64(), row.AccessForceNotNull(i))
	}
}

func cloneRow(layout BlockLayout, src ProjectedRow) ProjectedRow {
	cp := make([]byte, len(src.Bytes()))
	copy(cp, src.Bytes())
	return WrapProjectedRow(cp)
}

func assertRowsEqual(t *testing.T, layout BlockLayout, a, b ProjectedRow) {
	t.Helper()
	require.Equal(t, a.NumColumns(), b.NumColumns())
	for i := uint16(0); i < a.NumColumns(); i++ {
		colID := a.ColumnIdAt(i)
		require.Equal(t, colID, b.ColumnIdAt(i))
		av := a.AccessWithNullCheck(i)
		bv := b.AccessWithNullCheck(i)
		if av == nil || bv == nil {
			assert.Equal(t, av == nil, bv == nil, "column %d null mismatch", colID)
			continue
		}
		size := layout.AttrSize(colID)
		assert.Equal(t, ReadBytes(size, av), ReadBytes(size, bv), "column %d value mismatch", colID)
	}
}

// Property 5: delta idempotence.
func TestApplyDeltaIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	layout := NewBlockLayout([]uint8{8, 4, 2, 1, 8}, DefaultBlockSize)
	target := buildRow(t, layout, []uint16{1, 2, 3, 4})
	populateRandom(r, layout, target)

	delta := buildRow(t, layout, []uint16{2, 4})
	populateRandom(r, layout, delta)

	once := cloneRow(layout, target)
	ApplyDelta(layout, delta, once)

	twice := cloneRow(layout, target)
	ApplyDelta(layout, delta, twice)
	ApplyDelta(layout, delta, twice)

	assertRowsEqual(t, layout, once, twice)
}

// Property 4: delta commutativity over disjoint columns.
func TestApplyDeltaCommutesOverDisjointColumns(t *testing.T) {
	r := rand.New(rand.NewSource(22))
	layout := NewBlockLayout([]uint8{8, 4, 2, 1, 8}, DefaultBlockSize)
	base := buildRow(t, layout, []uint16{1, 2, 3, 4})
	populateRandom(r, layout, base)

	d1 := buildRow(t, layout, []uint16{1, 3})
	populateRandom(r, layout, d1)
	d2 := buildRow(t, layout, []uint16{2, 4})
	populateRandom(r, layout, d2)

	order1 := cloneRow(layout, base)
	ApplyDelta(layout, d1, order1)
	ApplyDelta(layout, d2, order1)

	order2 := cloneRow(layout, base)
	ApplyDelta(layout, d2, order2)
	ApplyDelta(layout, d1, order2)

	assertRowsEqual(t, layout, order1, order2)
}

// S6 ApplyDelta: only columns in the delta change; columns outside the
// delta retain both their null status and byte content exactly.
func TestApplyDeltaOnlyTouchesItsOwnColumns(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	layout := NewBlockLayout([]uint8{8, 4, 2, 1, 8}, DefaultBlockSize)
	target := buildRow(t, layout, []uint16{1, 2, 3, 4})
	populateRandom(r, layout, target)
	before := cloneRow(layout, target)

	delta := buildRow(t, layout, []uint16{2})
	populateRandom(r, layout, delta)

	ApplyDelta(layout, delta, target)

	for i := uint16(0); i < target.NumColumns(); i++ {
		colID := target.ColumnIdAt(i)
		if colID == 2 {
			dv := delta.AccessWithNullCheck(0)
			tv := target.AccessWithNullCheck(i)
			if dv == nil {
				assert.Nil(t, tv)
			} else {
				size := layout.AttrSize(colID)
				require.NotNil(t, tv)
				assert.Equal(t, ReadBytes(size, dv), ReadBytes(size, tv))
			}
			continue
		}
		beforeVal := before.AccessWithNullCheck(i)
		afterVal := target.AccessWithNullCheck(i)
		if beforeVal == nil {
			assert.Nil(t, afterVal)
			continue
		}
		size := layout.AttrSize(colID)
		require.NotNil(t, afterVal)
		assert.Equal(t, ReadBytes(size, beforeVal), ReadBytes(size, afterVal))
	}
}

// §4.5 step 1: a delta column absent from the target projection is skipped,
// not an error — this is the normal case when Select applies a before-image
// onto a caller's strict subset projection.
func TestApplyDeltaSkipsColumnsNotInTarget(t *testing.T) {
	r := rand.New(rand.NewSource(24))
	layout := NewBlockLayout([]uint8{8, 4, 2}, DefaultBlockSize)
	target := buildRow(t, layout, []uint16{1})
	populateRandom(r, layout, target)
	before := cloneRow(layout, target)

	delta := buildRow(t, layout, []uint16{2})
	populateRandom(r, layout, delta)

	assert.NotPanics(t, func() { ApplyDelta(layout, delta, target) })
	assertRowsEqual(t, layout, before, target)
}
