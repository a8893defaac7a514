// Package txn defines the narrow slice of a transaction manager that the
// storage core consumes (spec.md §6's "TransactionContext" interface): a
// read timestamp, a write-lock sentinel, and a byte arena. The transaction
// manager itself — locking, commit/abort protocol, WAL — is out of scope
// and lives entirely outside this package.
package txn

// SentinelBit marks a timestamp as an in-flight write-lock id rather than a
// committed timestamp. Context implementations must hand out ID() values
// with this bit set for as long as the owning transaction is uncommitted;
// committed timestamps must stay below it. UINT64_MAX (spec.md §4.7's
// example sentinel) trivially satisfies this, as does any txn-unique id
// with the high bit set.
const SentinelBit uint64 = 1 << 63

// IsUncommitted reports whether ts is a write-lock sentinel.
func IsUncommitted(ts uint64) bool {
	return ts&SentinelBit != 0
}

// Arena hands out byte buffers for a transaction's redo/undo records. The
// storage core never frees individual buffers it is handed — arena
// lifetime is the transaction's, and is managed entirely outside this
// package.
type Arena interface {
	AllocateAligned(n uint32) []byte
}

// Context is the consumed interface DataTable needs from a transaction.
type Context interface {
	// StartTime is the fixed read timestamp Select uses for version
	// visibility.
	StartTime() uint64
	// ID is this transaction's write-lock sentinel: IsUncommitted(ID())
	// must hold for as long as the transaction has not committed. DataTable
	// stamps every UndoRecord this transaction writes with ID(); some
	// external committer later overwrites it via UndoRecord.SetTimestamp
	// with a real commit timestamp.
	ID() uint64
	// Arena is where this transaction's redo/undo ProjectedRow buffers are
	// allocated from.
	Arena() Arena
}

// heapArena is the simplest possible Arena: every allocation goes straight
// to the Go heap. Real deployments would draw from a reusable buffer pool
// (the out-of-scope ObjectPool/Allocator<T> of spec.md §6); this is enough
// for a transaction manager that hasn't been built yet to stand one up
// against, and for this package's own tests.
type heapArena struct{}

func (heapArena) AllocateAligned(n uint32) []byte {
	return make([]byte, n)
}

// SimpleContext is a minimal Context: a fixed start timestamp, a fixed
// sentinel id, and a heap-backed arena. It has no commit/abort behavior of
// its own — callers that want to simulate a commit call SetTimestamp on the
// UndoRecords they wrote directly.
type SimpleContext struct {
	start uint64
	id    uint64
	arena Arena
}

// NewSimpleContext builds a SimpleContext reading at start and writing
// under sentinel id. Passing the same value below SentinelBit for both (as
// the source's own test harness does) models a transaction whose writes
// should be treated as already committed at that timestamp; a value with
// SentinelBit set for both models an uncommitted writer reading its own
// writes.
func NewSimpleContext(start, id uint64) *SimpleContext {
	return &SimpleContext{start: start, id: id, arena: heapArena{}}
}

func (c *SimpleContext) StartTime() uint64 { return c.start }
func (c *SimpleContext) ID() uint64        { return c.id }
func (c *SimpleContext) Arena() Arena      { return c.arena }
