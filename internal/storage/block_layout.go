package storage

import (
	"fmt"
	"slices"
	"sort"
)

// headerFixedBytes is the portion of the block header before attr_offsets:
// layout_version (4) + num_records (4) + num_slots (4).
const headerFixedBytes = 12

// BlockLayout is an immutable schema descriptor for a RawBlock: the ordered
// per-column attribute widths, the derived column count, the byte offset of
// each column's mini-block inside a block, and the maximum number of tuples
// (slots) a block of this layout can hold.
//
// Column 0 is always the presence column: its null bitmap doubles as the
// block's slot-occupancy bitmap (PresenceColumnID).
//
// BlockLayout is pure and stateless past construction: two layouts built
// from the same attrSizes and blockSize always compute the same fields.
type BlockLayout struct {
	attrSizes   []uint8
	attrOffsets []uint32
	numSlots    uint32
	blockSize   uint32
	headerSize  uint32
}

// PresenceColumnID is the distinguished column whose null bit also encodes
// slot occupancy (TupleSlot allocated vs. free).
const PresenceColumnID uint16 = 0

// NewBlockLayout builds a BlockLayout for the given per-column byte widths,
// each of which must be one of {1, 2, 4, 8}. Columns are reordered into the
// canonical descending-size order used internally (column 0 is always the
// widest, and therefore the byte layout is the same regardless of the order
// the caller supplied attrSizes in) — ascending column id then corresponds
// to non-increasing attribute size, matching §3's convention.
//
// NewBlockLayout panics if attrSizes is empty, contains an invalid width, or
// blockSize is too small to hold even a single slot; these are all
// programmer errors per §7.
func NewBlockLayout(attrSizes []uint8, blockSize uint32) BlockLayout {
	if len(attrSizes) == 0 {
		panic("storage: BlockLayout requires at least one column")
	}
	sizes := slices.Clone(attrSizes)
	for _, s := range sizes {
		if !ValidAttrSize(s) {
			panic(fmt.Sprintf("storage: invalid attribute size %d, must be one of {1,2,4,8}", s))
		}
	}
	// Stable sort descending: ties keep the caller's relative order, which
	// keeps layout construction deterministic for equal-width columns.
	sort.SliceStable(sizes, func(i, j int) bool { return sizes[i] > sizes[j] })

	numCols := uint32(len(sizes))
	headerSize := headerFixedBytes + numCols*4 /* attr_offsets */ + 2 /* num_attrs */ + numCols /* attr_sizes */
	contentStart := PadUpToSize(8, headerSize)

	layout := BlockLayout{
		attrSizes:  sizes,
		blockSize:  blockSize,
		headerSize: headerSize,
	}

	numSlots := layout.maxSlotsFitting(contentStart, blockSize)
	if numSlots == 0 {
		panic("storage: block size too small to hold a single slot for this layout")
	}
	layout.numSlots = numSlots
	layout.attrOffsets = layout.computeAttrOffsets(contentStart, numSlots)
	return layout
}

// contentBytes returns the total bytes all mini-blocks occupy (excluding
// the block header) for n slots under this layout.
func (l BlockLayout) contentBytes(n uint32) uint32 {
	var total uint32
	bm := BitmapSizeInBytes(n)
	for _, size := range l.attrSizes {
		length := bm + n*uint32(size)
		total += PadUpToSize(8, length)
	}
	return total
}

// maxSlotsFitting binary-searches the largest n such that
// contentStart + contentBytes(n) <= blockSize.
func (l BlockLayout) maxSlotsFitting(contentStart, blockSize uint32) uint32 {
	if contentStart > blockSize {
		return 0
	}
	budget := blockSize - contentStart
	lo, hi := uint32(0), blockSize // blockSize is a safe, if loose, upper bound
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if l.contentBytes(mid) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// computeAttrOffsets lays out each column's mini-block start, 8-byte
// aligned, in attr-size descending (= column ascending) order.
func (l BlockLayout) computeAttrOffsets(contentStart, numSlots uint32) []uint32 {
	offsets := make([]uint32, len(l.attrSizes))
	bm := BitmapSizeInBytes(numSlots)
	cursor := contentStart
	for i, size := range l.attrSizes {
		offsets[i] = cursor
		length := bm + numSlots*uint32(size)
		cursor += PadUpToSize(8, length)
	}
	return offsets
}

// AttrSize returns the byte width of column col.
func (l BlockLayout) AttrSize(col uint16) uint8 {
	return l.attrSizes[col]
}

// NumCols returns the number of columns in this layout.
func (l BlockLayout) NumCols() uint16 {
	return uint16(len(l.attrSizes))
}

// NumSlots returns the maximum number of tuples a block of this layout can
// hold.
func (l BlockLayout) NumSlots() uint32 {
	return l.numSlots
}

// HeaderSize returns the byte size of the block header, before any 8-byte
// alignment padding to the first mini-block.
func (l BlockLayout) HeaderSize() uint32 {
	return l.headerSize
}

// AttrOffset returns the byte offset of column col's mini-block from the
// start of a RawBlock.
func (l BlockLayout) AttrOffset(col uint16) uint32 {
	return l.attrOffsets[col]
}

// BlockSize returns the RawBlock size this layout was computed for.
func (l BlockLayout) BlockSize() uint32 {
	return l.blockSize
}

// Equal reports whether two layouts describe the same column widths and
// block size, and therefore the same byte layout.
func (l BlockLayout) Equal(other BlockLayout) bool {
	return l.blockSize == other.blockSize && slices.Equal(l.attrSizes, other.attrSizes)
}

// Key returns a value usable as a map key for caching layouts of identical
// shape, since a slice-bearing struct cannot be a map key directly.
func (l BlockLayout) Key() string {
	return fmt.Sprintf("%d:%x", l.blockSize, l.attrSizes)
}
