package storage

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// DefaultBlockSize is the fixed slab size new blocks are allocated at: 1 MiB,
// matching §3's "fixed-size byte slab (e.g. 1 MiB)".
const DefaultBlockSize = 1 << 20

// RawBlock is a fixed-size, 8-byte-aligned, zero-initialised memory slab.
// It has no knowledge of the layout stored inside it; TupleAccessStrategy
// and BlockHeader are what interpret its bytes.
type RawBlock struct {
	Data []byte
}

// newRawBlock allocates a zeroed, 8-byte-aligned slab of size bytes. The
// backing allocation is slightly larger than size so the returned slice can
// be shifted to the next 8-byte boundary; Go's allocator does not otherwise
// guarantee slice alignment stronger than the platform's natural word size.
func newRawBlock(size uint32) *RawBlock {
	raw := make([]byte, uintptr(size)+7)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	shift := (8 - addr%8) % 8
	return &RawBlock{Data: raw[shift : shift+uintptr(size)]}
}

// reset zeroes a block's contents so it can be handed out as fresh.
func (b *RawBlock) reset() {
	clear(b.Data)
}

// BlockStore is a bounded pool of RawBlocks: fixed-size slabs handed out on
// demand and recycled on Release. It plays the role of the "pluggable byte
// allocator" consumed interface from §6 (Get()/Release()), implemented
// directly here rather than as the generic ObjectPool<T> template — that
// template is explicitly out of scope (§1) for this core, but its
// reuse-limit policy (see original_source/.../object_pool.h) is exactly
// what a bounded free-list needs, and BlockStore borrows it: keep up to
// reuseLimit released blocks for reuse, discard (let the GC reclaim) the
// rest. Shaped after the teacher's own BufferManager capacity-bounded pool.
type BlockStore struct {
	mu         sync.Mutex
	free       []*RawBlock
	blockSize  uint32
	reuseLimit int
	allocated  int
	maxBlocks  int // 0 means unbounded
}

// NewBlockStore creates a BlockStore that hands out blocks of blockSize
// bytes, keeps up to reuseLimit released blocks for reuse, and (if maxBlocks
// is non-zero) refuses to allocate beyond maxBlocks blocks total —
// modelling §7's OutOfBlocks condition.
func NewBlockStore(blockSize uint32, reuseLimit, maxBlocks int) *BlockStore {
	return &BlockStore{
		blockSize:  blockSize,
		reuseLimit: reuseLimit,
		maxBlocks:  maxBlocks,
	}
}

// Get returns a zero-initialised RawBlock, either recycled from the free
// list or freshly allocated. It returns an error (OutOfBlocks, §7) only when
// a bound on total blocks has been configured and reached.
func (s *BlockStore) Get() (*RawBlock, error) {
	s.mu.Lock()
	if n := len(s.free); n > 0 {
		block := s.free[n-1]
		s.free = s.free[:n-1]
		s.mu.Unlock()
		block.reset()
		return block, nil
	}
	if s.maxBlocks != 0 && s.allocated >= s.maxBlocks {
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"allocated": s.allocated,
			"max":       s.maxBlocks,
		}).Warn("storage: block store exhausted")
		return nil, fmt.Errorf("storage: out of blocks (limit %d reached)", s.maxBlocks)
	}
	s.allocated++
	s.mu.Unlock()
	return newRawBlock(s.blockSize), nil
}

// Release returns a block to the pool for reuse. Beyond reuseLimit
// outstanding free blocks, further releases are simply dropped (and the
// block left for the garbage collector), mirroring ObjectPool's
// "beyond the limit, delete" policy.
func (s *BlockStore) Release(block *RawBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.free) >= s.reuseLimit {
		s.allocated--
		return
	}
	s.free = append(s.free, block)
}

// BlockSize returns the fixed slab size this store hands out.
func (s *BlockStore) BlockSize() uint32 {
	return s.blockSize
}
