package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dbcore/tuplestore/internal/txn"
)

// versionPointerAttrSize is the width of the hidden column DataTable
// prepends to every user layout as column 0. The source stores the
// version-chain head pointer directly in that column's value bytes; Go's
// garbage collector cannot safely trace a pointer hidden inside a
// RawBlock's raw []byte the way it traces a typed field, so this
// implementation keeps the column only for its presence bitmap (slot
// occupancy) and parks the real, GC-visible chain head in a side table —
// managedBlock.versions. The column still needs to exist and be the
// widest possible width so BlockLayout's canonical descending sort pins it
// at position 0, matching §3's "column 0 is the presence column".
const versionPointerAttrSize = Size8

// userColumnOffset is the BlockLayout column id of the caller's column 0,
// once the hidden version-pointer column has been prepended.
const userColumnOffset = 1

// versionChain is the CAS-guarded head cell for one slot's UndoRecord
// chain.
type versionChain struct {
	head atomic.Pointer[UndoRecord]
}

// managedBlock pairs a RawBlock with the out-of-band version-chain heads
// for its slots (see versionPointerAttrSize).
type managedBlock struct {
	block    *RawBlock
	versions []versionChain
}

// DataTable is the top-level Insert/Update/Select surface: it owns a set of
// same-layout RawBlocks and stitches TupleAccessStrategy's in-place bytes
// together with per-slot UndoRecord chains to give callers a multi-version
// view with write-lock conflict detection.
type DataTable struct {
	mu            sync.Mutex
	store         *BlockStore
	accessor      TupleAccessStrategy
	layout        BlockLayout
	layoutVersion uint32
	blocks        []*managedBlock
	index         map[*RawBlock]*managedBlock
	allColumns    ProjectedRowInitializer
}

// NewDataTable builds a DataTable over userAttrSizes — the caller's schema,
// not including the hidden version-pointer column DataTable manages itself.
func NewDataTable(store *BlockStore, userAttrSizes []uint8, layoutVersion uint32) *DataTable {
	attrSizes := make([]uint8, 0, len(userAttrSizes)+1)
	attrSizes = append(attrSizes, versionPointerAttrSize)
	attrSizes = append(attrSizes, userAttrSizes...)
	layout := NewBlockLayout(attrSizes, store.BlockSize())

	allCols := make([]uint16, len(userAttrSizes))
	for i := range allCols {
		allCols[i] = uint16(i + userColumnOffset)
	}

	return &DataTable{
		store:         store,
		accessor:      NewTupleAccessStrategy(layout),
		layout:        layout,
		layoutVersion: layoutVersion,
		index:         make(map[*RawBlock]*managedBlock),
		allColumns:    NewProjectedRowInitializer(layout, allCols),
	}
}

// Layout returns the BlockLayout this table's blocks use, including the
// hidden version-pointer column at position 0.
func (t *DataTable) Layout() BlockLayout { return t.layout }

// AllColumns returns the ids, in this table's column-id space, of every
// user column — a convenience for building all-column projections.
func (t *DataTable) AllColumns() []uint16 {
	return t.allColumns.ColumnIds()
}

func (t *DataTable) newManagedBlock() (*managedBlock, error) {
	block, err := t.store.Get()
	if err != nil {
		return nil, err
	}
	t.accessor.InitializeRawBlock(block, t.layoutVersion)
	return &managedBlock{block: block, versions: make([]versionChain, t.layout.NumSlots())}, nil
}

// allocateSlot finds a block with a free slot among those this table
// already owns (§4.7 Insert step 1's "table's block list"), or requests a
// fresh one from the BlockStore.
func (t *DataTable) allocateSlot() (*managedBlock, TupleSlot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var slot TupleSlot
	for _, mb := range t.blocks {
		if t.accessor.Allocate(mb.block, &slot) {
			return mb, slot, nil
		}
	}

	mb, err := t.newManagedBlock()
	if err != nil {
		return nil, TupleSlot{}, err
	}
	if !t.accessor.Allocate(mb.block, &slot) {
		return nil, TupleSlot{}, fmt.Errorf("storage: freshly initialized block reports full")
	}
	t.blocks = append(t.blocks, mb)
	t.index[mb.block] = mb
	return mb, slot, nil
}

func (t *DataTable) versionHead(slot TupleSlot) *versionChain {
	t.mu.Lock()
	mb, ok := t.index[slot.Block]
	t.mu.Unlock()
	if !ok {
		panic("storage: slot does not belong to this table")
	}
	return &mb.versions[slot.Offset]
}

// Insert places redo into a fresh slot, chaining an empty-before-image
// UndoRecord at timestamp ctx.ID() as the slot's write lock (§4.7 Insert).
func (t *DataTable) Insert(ctx txn.Context, redo ProjectedRow) (TupleSlot, error) {
	mb, slot, err := t.allocateSlot()
	if err != nil {
		logrus.WithError(err).Warn("storage: insert failed to allocate a slot")
		return TupleSlot{}, err
	}

	undoBuf := ctx.Arena().AllocateAligned(t.allColumns.ProjectedRowSize())
	record := NewUndoRecord(undoBuf, ctx.ID(), slot, t, t.allColumns, true /* isInsert */)
	// record.Before is left all-null by InitializeRow: an insert's
	// before-image is empty, per §4.7 step 3.
	mb.versions[slot.Offset].head.Store(record)

	n := redo.NumColumns()
	for i := uint16(0); i < n; i++ {
		CopyAttrFromProjection(t.accessor, slot, redo, i)
	}

	return slot, nil
}

// Update applies delta in place at slot, first recording the current
// values of delta's columns into a new UndoRecord CAS-installed at the
// chain head (§4.7 Update). Returns false on a write–write conflict: the
// chain head is an uncommitted sentinel owned by a different transaction.
func (t *DataTable) Update(ctx txn.Context, slot TupleSlot, delta ProjectedRow) bool {
	chain := t.versionHead(slot)
	initializer := NewProjectedRowInitializer(t.layout, delta.ColumnIds())
	undoBuf := ctx.Arena().AllocateAligned(initializer.ProjectedRowSize())
	n := delta.NumColumns()

	for {
		observed := chain.head.Load()
		if observed != nil && txn.IsUncommitted(observed.Timestamp()) && observed.Timestamp() != ctx.ID() {
			logrus.WithFields(logrus.Fields{"slot_offset": slot.Offset}).Debug("storage: write-write conflict on update")
			return false
		}

		record := NewUndoRecord(undoBuf, ctx.ID(), slot, t, initializer, false /* isInsert */)
		record.Next = observed
		for i := uint16(0); i < n; i++ {
			CopyAttrIntoProjection(t.accessor, slot, record.Before, i)
		}

		if !chain.head.CompareAndSwap(observed, record) {
			// Lost the race to another writer touching this slot; re-observe
			// and retry from the conflict check (§9's CAS-retry open question).
			continue
		}

		for i := uint16(0); i < n; i++ {
			CopyAttrFromProjection(t.accessor, slot, delta, i)
		}
		return true
	}
}

// Select reconstructs, into out, the version of slot visible at ctx's read
// timestamp: the in-place values overlaid with undo before-images for every
// version newer than ctx can see (§4.7 Select).
func (t *DataTable) Select(ctx txn.Context, slot TupleSlot, out ProjectedRow) {
	n := out.NumColumns()
	for i := uint16(0); i < n; i++ {
		CopyAttrIntoProjection(t.accessor, slot, out, i)
	}

	chain := t.versionHead(slot)
	record := chain.head.Load()
	for record != nil {
		ts := record.Timestamp()
		visible := (txn.IsUncommitted(ts) && ts == ctx.ID()) ||
			(!txn.IsUncommitted(ts) && ts <= ctx.StartTime())
		if visible {
			return
		}
		ApplyDelta(t.layout, record.Before, out)
		record = record.Next
	}

	// Chain exhausted without finding a visible version: the tuple did not
	// exist at ctx's read timestamp. If the slot has since been freed (and
	// maybe reused), the in-place bytes copied above aren't guaranteed
	// meaningful — only the presence bit is (§4.3's Allocate/SetNull
	// invariant) — so report not-present explicitly.
	if !t.accessor.ColumnNullBitmap(slot.Block, PresenceColumnID).Test(slot.Offset) {
		for i := uint16(0); i < n; i++ {
			out.SetNull(i)
		}
	}
}

// Rollback undoes an aborting transaction's write at undo: for an insert,
// it frees the slot (clears the presence bit); for an update, it reapplies
// the before-image in place. It does not unlink undo from the version
// chain — the chain is a structure other readers may be concurrently
// walking, and safely retiring an UndoRecord is the out-of-scope
// transaction manager's job (§5 "Cancellation and timeouts", §9).
func (t *DataTable) Rollback(undo *UndoRecord) {
	if undo.IsInsert {
		t.accessor.SetNull(undo.Slot, PresenceColumnID)
		return
	}

	n := undo.Before.NumColumns()
	for i := uint16(0); i < n; i++ {
		CopyAttrFromProjection(t.accessor, undo.Slot, undo.Before, i)
	}
}
