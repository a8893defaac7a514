package storage

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
)

// ProjectedRowInitializer precomputes the byte layout for a fixed set of
// table columns: given the same BlockLayout and column-id set, it always
// produces rows of the same size with the same value offsets, so it can be
// built once per statement shape and reused to stamp out many rows.
//
// Mirrors the original's ProjectedRowInitializer constructor math (see
// original_source/.../delta_record.cpp): columns are sorted ascending by id,
// and each field is packed immediately after the previous one, padded up to
// the alignment the next field needs.
type ProjectedRowInitializer struct {
	colIds  []uint16
	offsets []uint32
	size    uint32
}

// NewProjectedRowInitializer builds an initializer projecting colIds (a
// subset, possibly all, of layout's columns) out of a tuple. colIds must be
// unique; they need not already be sorted.
func NewProjectedRowInitializer(layout BlockLayout, colIds []uint16) ProjectedRowInitializer {
	if len(colIds) == 0 {
		panic("storage: ProjectedRowInitializer requires at least one column")
	}
	ids := slices.Clone(colIds)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			panic(fmt.Sprintf("storage: duplicate column id %d in projection", ids[i]))
		}
	}

	n := uint32(len(ids))
	size := uint32(6) // size(4) + num_cols(2)
	size = PadUpToSize(4, size+n*2)
	size = PadUpToSize(8, size+n*4)
	bitmapBytes := (n + 7) / 8
	size = PadUpToSize(layout.AttrSize(ids[0]), size+bitmapBytes)

	offsets := make([]uint32, n)
	for i, id := range ids {
		offsets[i] = size
		nextAlign := uint8(8)
		if i+1 < len(ids) {
			nextAlign = layout.AttrSize(ids[i+1])
		}
		size = PadUpToSize(nextAlign, size+uint32(layout.AttrSize(id)))
	}

	return ProjectedRowInitializer{colIds: ids, offsets: offsets, size: size}
}

// ProjectedRowSize returns the number of bytes InitializeRow needs.
func (p ProjectedRowInitializer) ProjectedRowSize() uint32 {
	return p.size
}

// NumColumns returns the number of columns this initializer projects.
func (p ProjectedRowInitializer) NumColumns() uint16 {
	return uint16(len(p.colIds))
}

// ColumnIds returns a copy of the (sorted) column ids this initializer projects.
func (p ProjectedRowInitializer) ColumnIds() []uint16 {
	return slices.Clone(p.colIds)
}

// InitializeRow stamps a fresh row header (size, num_cols, col_ids,
// value_offsets, a cleared all-null bitmap) into buffer, which must be at
// least ProjectedRowSize() bytes, and returns a ProjectedRow view over it.
func (p ProjectedRowInitializer) InitializeRow(buffer []byte) ProjectedRow {
	if uint32(len(buffer)) < p.size {
		panic("storage: buffer too small for ProjectedRowInitializer")
	}
	row := ProjectedRow{buf: buffer[:p.size]}
	binary.LittleEndian.PutUint32(row.buf[offsetRowSize:], p.size)
	binary.LittleEndian.PutUint16(row.buf[offsetRowNumCols:], uint16(len(p.colIds)))
	for i, id := range p.colIds {
		binary.LittleEndian.PutUint16(row.buf[colIdsStart+uint32(i)*2:], id)
	}
	voOff := row.valueOffsetsOffset()
	for i, off := range p.offsets {
		binary.LittleEndian.PutUint32(row.buf[voOff+uint32(i)*4:], off)
	}
	bmOff, bmLen := row.bitmapOffset(), row.bitmapBytes()
	clear(row.buf[bmOff : bmOff+bmLen])
	return row
}

// Fixed offsets of a ProjectedRow's header, per the layout described above
// ProjectedRowInitializer: everything past num_cols is variable-width and
// computed from it.
const (
	offsetRowSize    = 0
	offsetRowNumCols = 4
	colIdsStart      = 6
)

// ProjectedRow is a self-describing, partial-tuple byte image: a subset of a
// table's columns, their values, and a bitmap of which are null. It is the
// unit of data DataTable.Insert/Update/Select exchange with callers, and the
// before-image an UndoRecord embeds.
//
// A ProjectedRow never allocates; it is always a view over a caller-owned
// buffer (typically from a per-transaction arena), mirroring the "column
// view" idiom the rest of this package uses (BlockHeader, ConcurrentBitmap).
type ProjectedRow struct {
	buf []byte
}

// WrapProjectedRow views an already-initialized buffer (e.g. one copied out
// of an UndoRecord) as a ProjectedRow.
func WrapProjectedRow(buf []byte) ProjectedRow {
	return ProjectedRow{buf: buf}
}

// Size returns the row's total byte size, including its header.
func (r ProjectedRow) Size() uint32 {
	return binary.LittleEndian.Uint32(r.buf[offsetRowSize:])
}

// NumColumns returns the number of columns projected into this row.
func (r ProjectedRow) NumColumns() uint16 {
	return binary.LittleEndian.Uint16(r.buf[offsetRowNumCols:])
}

// Bytes returns the row's raw backing buffer (e.g. to copy into an
// UndoRecord's embedded before-image).
func (r ProjectedRow) Bytes() []byte {
	return r.buf
}

func (r ProjectedRow) valueOffsetsOffset() uint32 {
	n := r.NumColumns()
	return PadUpToSize(4, colIdsStart+uint32(n)*2)
}

func (r ProjectedRow) bitmapOffset() uint32 {
	n := r.NumColumns()
	return PadUpToSize(8, r.valueOffsetsOffset()+uint32(n)*4)
}

func (r ProjectedRow) bitmapBytes() uint32 {
	return (uint32(r.NumColumns()) + 7) / 8
}

// ColumnIds returns a copy of this row's projected column ids, ascending.
func (r ProjectedRow) ColumnIds() []uint16 {
	n := r.NumColumns()
	ids := make([]uint16, n)
	for i := uint16(0); i < n; i++ {
		ids[i] = r.ColumnIdAt(i)
	}
	return ids
}

// ColumnIdAt returns the table column id at position i in this row.
func (r ProjectedRow) ColumnIdAt(i uint16) uint16 {
	r.checkIndex(i)
	return binary.LittleEndian.Uint16(r.buf[colIdsStart+uint32(i)*2:])
}

func (r ProjectedRow) valueOffsetAt(i uint16) uint32 {
	return binary.LittleEndian.Uint32(r.buf[r.valueOffsetsOffset()+uint32(i)*4:])
}

// ColumnIndex binary-searches for colID among this row's projected columns,
// since they are stored sorted ascending. ok is false if colID isn't
// projected into this row at all.
func (r ProjectedRow) ColumnIndex(colID uint16) (i uint16, ok bool) {
	n := r.NumColumns()
	lo, hi := uint16(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if r.ColumnIdAt(mid) < colID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n && r.ColumnIdAt(lo) == colID {
		return lo, true
	}
	return 0, false
}

func (r ProjectedRow) bitTest(i uint16) bool {
	byteIdx := r.bitmapOffset() + uint32(i)/8
	mask := byte(1) << (i % 8)
	return r.buf[byteIdx]&mask != 0
}

func (r ProjectedRow) bitSet(i uint16, v bool) {
	byteIdx := r.bitmapOffset() + uint32(i)/8
	mask := byte(1) << (i % 8)
	if v {
		r.buf[byteIdx] |= mask
	} else {
		r.buf[byteIdx] &^= mask
	}
}

func (r ProjectedRow) checkIndex(i uint16) {
	if i >= r.NumColumns() {
		panic(fmt.Sprintf("storage: column position %d out of range for row with %d columns", i, r.NumColumns()))
	}
}

// IsNull reports whether position i's bit is clear (null).
func (r ProjectedRow) IsNull(i uint16) bool {
	r.checkIndex(i)
	return !r.bitTest(i)
}

// AccessWithNullCheck returns the value bytes at position i, or nil if that
// column's bit is clear. As in the original, the returned slice runs to the
// end of the row buffer rather than being trimmed to the column's exact
// width — callers already know that width (from the BlockLayout they built
// this projection against) and pass it explicitly to WriteBytes/ReadBytes.
func (r ProjectedRow) AccessWithNullCheck(i uint16) []byte {
	r.checkIndex(i)
	if !r.bitTest(i) {
		return nil
	}
	return r.buf[r.valueOffsetAt(i):]
}

// AccessForceNotNull returns the value bytes at position i, setting the bit
// first if it was clear. This is the write-path accessor: every write to a
// ProjectedRow's value goes through it.
func (r ProjectedRow) AccessForceNotNull(i uint16) []byte {
	r.checkIndex(i)
	if !r.bitTest(i) {
		r.bitSet(i, true)
	}
	return r.buf[r.valueOffsetAt(i):]
}

// SetNull clears position i's bit, without touching its value bytes.
func (r ProjectedRow) SetNull(i uint16) {
	r.checkIndex(i)
	r.bitSet(i, false)
}

// SetNotNull sets position i's bit, without touching its value bytes.
func (r ProjectedRow) SetNotNull(i uint16) {
	r.checkIndex(i)
	r.bitSet(i, true)
}
