package storage

import "fmt"

// TupleSlot is a logical handle identifying one tuple's position: a block
// and a slot offset within it. TupleSlot is a plain comparable value (Go
// structs of comparable fields compare and hash by value already), so it
// can be used directly as a map key without a custom Equal/Hash pair.
type TupleSlot struct {
	Block  *RawBlock
	Offset uint32
}

// TupleAccessStrategy interprets a RawBlock as a header plus mini-blocks. It
// is stateless beyond the BlockLayout it was built for, and is safe to share
// across goroutines and blocks.
type TupleAccessStrategy struct {
	layout BlockLayout
}

// NewTupleAccessStrategy builds a TupleAccessStrategy for layout.
func NewTupleAccessStrategy(layout BlockLayout) TupleAccessStrategy {
	return TupleAccessStrategy{layout: layout}
}

// GetBlockLayout returns the layout this strategy interprets blocks as.
func (t TupleAccessStrategy) GetBlockLayout() BlockLayout {
	return t.layout
}

// InitializeRawBlock writes the header, attr_offsets, and per-column
// metadata for t's layout into block, which must be freshly zeroed (as
// BlockStore.Get guarantees). After this call the presence bitmap of
// column 0 is all-zero (every slot reads as free) and num_records is 0.
func (t TupleAccessStrategy) InitializeRawBlock(block *RawBlock, layoutVersion uint32) {
	NewBlockHeader(block).Initialize(t.layout, layoutVersion)
}

// columnBitmapBytes returns the bitmap's size within any column's
// mini-block, which is identical for every column since it only depends on
// num_slots.
func (t TupleAccessStrategy) columnBitmapBytes() uint32 {
	return BitmapSizeInBytes(t.layout.NumSlots())
}

// ColumnNullBitmap returns the null/presence bitmap for col on block.
func (t TupleAccessStrategy) ColumnNullBitmap(block *RawBlock, col uint16) *ConcurrentBitmap {
	start := t.layout.AttrOffset(col)
	end := start + t.columnBitmapBytes()
	return NewConcurrentBitmap(block.Data[start:end])
}

// ColumnStart returns the byte slice of col's value array (i.e. past its
// bitmap), usable as value[0..num_slots-1].
func (t TupleAccessStrategy) ColumnStart(block *RawBlock, col uint16) []byte {
	start := t.layout.AttrOffset(col) + t.columnBitmapBytes()
	return block.Data[start:]
}

func (t TupleAccessStrategy) attrAddr(slot TupleSlot, col uint16) []byte {
	size := uint32(t.layout.AttrSize(col))
	start := t.ColumnStart(slot.Block, col)
	byteOff := slot.Offset * size
	return start[byteOff : byteOff+size]
}

// AccessWithNullCheck returns the attribute bytes at (slot, col), or nil if
// the column's null bit is not set.
func (t TupleAccessStrategy) AccessWithNullCheck(slot TupleSlot, col uint16) []byte {
	t.checkColumn(col)
	if !t.ColumnNullBitmap(slot.Block, col).Test(slot.Offset) {
		return nil
	}
	return t.attrAddr(slot, col)
}

// AccessWithoutNullCheck returns the attribute bytes at (slot, col) without
// consulting the null bit. Per §4.3's edge policy this is only valid on the
// presence column, whose value is always considered present. DataTable
// does not call it: it keeps version-chain heads in a side table rather
// than in column 0's value bytes.
func (t TupleAccessStrategy) AccessWithoutNullCheck(slot TupleSlot, col uint16) []byte {
	if col != PresenceColumnID {
		panic("storage: AccessWithoutNullCheck is only valid on the presence column")
	}
	t.checkColumn(col)
	return t.attrAddr(slot, col)
}

// AccessForceNotNull returns the attribute bytes at (slot, col), setting the
// null bit first if it was not already set. This is the sole write-path
// accessor: every in-place write to a tuple's column goes through it.
func (t TupleAccessStrategy) AccessForceNotNull(slot TupleSlot, col uint16) []byte {
	t.checkColumn(col)
	bitmap := t.ColumnNullBitmap(slot.Block, col)
	if !bitmap.Test(slot.Offset) {
		bitmap.Flip(slot.Offset, false) // noop (benign race) if another writer just set it
	}
	return t.attrAddr(slot, col)
}

// SetNull clears the null bit for (slot, col). If col is the presence
// column this is slot deallocation: num_records is decremented exactly
// when the flip actually transitions the bit (a losing racer does nothing).
func (t TupleAccessStrategy) SetNull(slot TupleSlot, col uint16) {
	t.checkColumn(col)
	if t.ColumnNullBitmap(slot.Block, col).Flip(slot.Offset, true) && col == PresenceColumnID {
		NewBlockHeader(slot.Block).DecrementNumRecords()
	}
}

// Allocate finds the first free slot in block (column 0's presence bit
// clear) and claims it by flipping that bit from false to true. Multiple
// goroutines may race on the same block; exactly one wins any given bit.
// Allocate returns false iff every bit is set and none could be flipped —
// i.e. the block is full (§4.8 BlockFull).
func (t TupleAccessStrategy) Allocate(block *RawBlock, out *TupleSlot) bool {
	bitmap := t.ColumnNullBitmap(block, PresenceColumnID)
	numSlots := t.layout.NumSlots()
	for i := uint32(0); i < numSlots; i++ {
		if bitmap.Test(i) {
			continue
		}
		if bitmap.Flip(i, false) {
			*out = TupleSlot{Block: block, Offset: i}
			NewBlockHeader(block).IncrementNumRecords()
			return true
		}
		// Someone else won this bit first; keep probing.
	}
	return false
}

func (t TupleAccessStrategy) checkColumn(col uint16) {
	if col >= t.layout.NumCols() {
		panic(fmt.Sprintf("storage: column %d out of range for layout with %d columns", col, t.layout.NumCols()))
	}
}
