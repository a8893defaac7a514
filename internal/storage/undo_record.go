package storage

import "sync/atomic"

// UndoRecord is one version-chain node: an atomically-timestamped
// before-image of the columns a txn is about to overwrite, linked to the
// older version in the same slot's chain. UndoRecords are never copied or
// moved once installed — once CAS-published at a chain head, the pointer
// must stay valid for as long as any reader may still traverse past it
// (§9's retirement note; actually retiring one is the out-of-scope
// transaction manager's job).
type UndoRecord struct {
	Next     *UndoRecord
	Table    *DataTable
	Slot     TupleSlot
	Before   ProjectedRow
	IsInsert bool

	timestamp uint64
}

// NewUndoRecord builds an UndoRecord whose before-image is stamped into buf
// by initializer (buf must be at least initializer.ProjectedRowSize()
// bytes). isInsert marks a record whose before-image is intentionally
// empty (spec.md §4.7 Insert step 3) — distinguishing it, for Rollback,
// from an Update record that merely happens to have every touched column
// null.
func NewUndoRecord(buf []byte, timestamp uint64, slot TupleSlot, table *DataTable, initializer ProjectedRowInitializer, isInsert bool) *UndoRecord {
	u := &UndoRecord{
		Table:    table,
		Slot:     slot,
		IsInsert: isInsert,
	}
	atomic.StoreUint64(&u.timestamp, timestamp)
	u.Before = initializer.InitializeRow(buf)
	return u
}

// Timestamp atomically loads this record's timestamp: a write-lock
// sentinel while the owning txn is uncommitted (txn.IsUncommitted), or a
// commit timestamp afterward.
func (u *UndoRecord) Timestamp() uint64 {
	return atomic.LoadUint64(&u.timestamp)
}

// SetTimestamp atomically installs ts. The (out-of-scope) transaction
// manager calls this at commit to replace a sentinel with a real commit
// timestamp; the storage core itself never calls it.
func (u *UndoRecord) SetTimestamp(ts uint64) {
	atomic.StoreUint64(&u.timestamp, ts)
}
