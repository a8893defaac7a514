package storage

// copyValueWithNullCheck copies size bytes from from into to's value at
// position pos, or sets pos null if from is nil. from==nil and to's null bit
// are how both ProjectedRow and TupleAccessStrategy represent "no value" —
// this is the one place that translates from the former into a
// ProjectedRow (CopyWithNullCheckToSlot does the same toward a slot).
func copyValueWithNullCheck(from []byte, to ProjectedRow, pos uint16, size uint8) {
	if from == nil {
		to.SetNull(pos)
		return
	}
	dst := to.AccessForceNotNull(pos)
	copy(dst[:size], from[:size])
}

// CopyWithNullCheckToSlot copies size bytes from from into accessor's view
// of to's column colID, or marks that column null if from is nil.
func CopyWithNullCheckToSlot(from []byte, accessor TupleAccessStrategy, to TupleSlot, colID uint16, size uint8) {
	if from == nil {
		accessor.SetNull(to, colID)
		return
	}
	dst := accessor.AccessForceNotNull(to, colID)
	copy(dst[:size], from[:size])
}

// CopyAttrIntoProjection copies the value (or null) of the column projected
// at position in to, reading it off from's backing block via accessor.
func CopyAttrIntoProjection(accessor TupleAccessStrategy, from TupleSlot, to ProjectedRow, position uint16) {
	colID := to.ColumnIdAt(position)
	size := accessor.GetBlockLayout().AttrSize(colID)
	val := accessor.AccessWithNullCheck(from, colID)
	copyValueWithNullCheck(val, to, position, size)
}

// CopyAttrFromProjection copies the value (or null) projected at position in
// from into to's backing block via accessor.
func CopyAttrFromProjection(accessor TupleAccessStrategy, to TupleSlot, from ProjectedRow, position uint16) {
	colID := from.ColumnIdAt(position)
	size := accessor.GetBlockLayout().AttrSize(colID)
	val := from.AccessWithNullCheck(position)
	CopyWithNullCheckToSlot(val, accessor, to, colID, size)
}

// ApplyDelta merges delta into buffer: every column present in both delta
// and buffer has its value (or null-ness) copied into buffer. A delta column
// absent from buffer's projection is skipped, per §4.5 step 1 — this is the
// ordinary case when Select applies an UndoRecord's before-image onto a
// caller-chosen partial projection that doesn't cover every column the
// before-image happens to carry.
//
// Applying the same delta twice is idempotent, and applying two deltas that
// touch disjoint columns commutes; applying two deltas touching the same
// column does not (last writer wins), matching ordinary assignment
// semantics — there is no merge function beyond overwrite.
func ApplyDelta(layout BlockLayout, delta ProjectedRow, buffer ProjectedRow) {
	n := delta.NumColumns()
	for i := uint16(0); i < n; i++ {
		colID := delta.ColumnIdAt(i)
		pos, ok := buffer.ColumnIndex(colID)
		if !ok {
			continue
		}
		size := layout.AttrSize(colID)
		copyValueWithNullCheck(delta.AccessWithNullCheck(i), buffer, pos, size)
	}
}
