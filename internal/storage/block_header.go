package storage

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Offsets of the fixed-width prefix of a block header, per §6's binary
// format:
//
//	offset 0  : u32 layout_version
//	        4 : u32 num_records        (mutable)
//	        8 : u32 num_slots
//	       12 : u32 attr_offsets[num_cols]
//	          : u16 num_attrs
//	          : u8  attr_sizes[num_attrs]
const (
	offsetLayoutVersion = 0
	offsetNumRecords    = 4
	offsetNumSlots      = 8
	offsetAttrOffsets   = 12
)

// BlockHeader is a typed, read-mostly view borrowing a RawBlock's bytes. It
// replaces the source's reinterpret-cast struct overlay (§9) with explicit
// offset accessors: every field but num_records is immutable once
// Initialize has run, so only num_records needs atomic access.
type BlockHeader struct {
	data []byte
}

// NewBlockHeader views block's bytes as a BlockHeader. The block need not
// be initialised yet.
func NewBlockHeader(block *RawBlock) BlockHeader {
	return BlockHeader{data: block.Data}
}

// Initialize writes the header and per-column metadata described by layout
// into a zeroed block. It does not touch the mini-blocks: the presence
// bitmap of column 0 stays all-zero from the precondition (so every slot
// reads as free), and num_records is written as zero. Precondition:
// block.Data is all-zero, as guaranteed by BlockStore.Get.
func (h BlockHeader) Initialize(layout BlockLayout, layoutVersion uint32) {
	binary.LittleEndian.PutUint32(h.data[offsetLayoutVersion:], layoutVersion)
	binary.LittleEndian.PutUint32(h.data[offsetNumRecords:], 0)
	binary.LittleEndian.PutUint32(h.data[offsetNumSlots:], layout.NumSlots())

	numCols := layout.NumCols()
	for c := uint16(0); c < numCols; c++ {
		off := offsetAttrOffsets + uint32(c)*4
		binary.LittleEndian.PutUint32(h.data[off:], layout.AttrOffset(c))
	}

	numAttrsOff := offsetAttrOffsets + uint32(numCols)*4
	binary.LittleEndian.PutUint16(h.data[numAttrsOff:], numCols)

	attrSizesOff := numAttrsOff + 2
	for c := uint16(0); c < numCols; c++ {
		h.data[uint32(attrSizesOff)+uint32(c)] = layout.AttrSize(c)
	}
}

// LayoutVersion returns the layout_version this block was initialised with.
func (h BlockHeader) LayoutVersion() uint32 {
	return binary.LittleEndian.Uint32(h.data[offsetLayoutVersion:])
}

// NumSlots returns the maximum number of tuples this block can hold.
func (h BlockHeader) NumSlots() uint32 {
	return binary.LittleEndian.Uint32(h.data[offsetNumSlots:])
}

// AttrOffset returns the byte offset of column col's mini-block.
func (h BlockHeader) AttrOffset(col uint16) uint32 {
	off := offsetAttrOffsets + uint32(col)*4
	return binary.LittleEndian.Uint32(h.data[off:])
}

// numAttrsOffset depends on the number of attr_offsets entries before it,
// which is num_cols; the header stores that count only in num_attrs itself,
// after those entries. num_cols is static per BlockLayout. Callers that need NumAttrs
// must supply numCols (from the BlockLayout they initialised the block
// with), since the on-disk header alone does not self-describe where its
// own num_attrs field starts without knowing how many attr_offsets precede
// it.
func (h BlockHeader) numAttrsOffset(numCols uint16) uint32 {
	return offsetAttrOffsets + uint32(numCols)*4
}

// NumAttrs returns the num_attrs field, given the column count of the
// layout the block was initialised with.
func (h BlockHeader) NumAttrs(numCols uint16) uint16 {
	return binary.LittleEndian.Uint16(h.data[h.numAttrsOffset(numCols):])
}

// AttrSize returns the attr_sizes[col] field, given the column count of the
// layout the block was initialised with.
func (h BlockHeader) AttrSize(numCols uint16, col uint16) uint8 {
	attrSizesOff := h.numAttrsOffset(numCols) + 2
	return h.data[attrSizesOff+uint32(col)]
}

// numRecordsPtr returns a pointer suitable for atomic access to num_records.
func (h BlockHeader) numRecordsPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(&h.data[offsetNumRecords]))
}

// NumRecords loads the relaxed, advisory tuple counter.
func (h BlockHeader) NumRecords() uint32 {
	return atomic.LoadUint32(h.numRecordsPtr())
}

// IncrementNumRecords bumps the relaxed tuple counter. Allocate is the sole
// increment site (spec.md §9, second open question).
func (h BlockHeader) IncrementNumRecords() {
	atomic.AddUint32(h.numRecordsPtr(), 1)
}

// DecrementNumRecords drops the relaxed tuple counter. SetNull on the
// presence column is the sole decrement site.
func (h BlockHeader) DecrementNumRecords() {
	atomic.AddUint32(h.numRecordsPtr(), ^uint32(0))
}
