package mem

import (
	"fmt"
	"sync"
)

// DefaultBlockSize is the size of each slab page.
const DefaultBlockSize = 4096

// Handle identifies one live slab object as a (page, slot, generation)
// triple.
//
// Handles are stable for the lifetime of the allocation and are safe to store
// in queues and task records; they never dangle the way raw pointers can. The
// generation is bumped on every Free, so a stale handle held past its
// allocation is detected instead of silently aliasing the slot's next owner.
type Handle struct {
	page uint32
	slot uint32
	gen  uint32
}

// Slab is a fixed-object-size allocator backed by page-sized blocks.
//
// Within each block, unused slots are threaded into a LIFO free list. Alloc
// pops the head; when the list is empty a new block is carved and its slots
// threaded before popping. Free pushes the slot back onto the head.
//
// Concurrency: all operations serialize under one mutex.
type Slab struct {
	mu        sync.Mutex
	objSize   int
	blockSize int
	perPage   int
	pages     [][]byte
	gens      [][]uint32 // current generation per slot; odd = free, even = live
	free      []Handle   // LIFO
	live      int
}

// NewSlab creates a slab for objects of objSize bytes, carved from blocks of
// blockSize bytes (DefaultBlockSize if <= 0). The first block is carved
// eagerly so the first Alloc never grows.
func NewSlab(objSize, blockSize int) *Slab {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if objSize <= 0 || objSize > blockSize {
		panic(fmt.Sprintf("mem: invalid slab object size %d (block %d)", objSize, blockSize))
	}
	s := &Slab{
		objSize:   objSize,
		blockSize: blockSize,
		perPage:   blockSize / objSize,
	}
	s.grow()
	return s
}

// Alloc pops a slot from the free list, growing by one block when empty.
// The returned Handle uniquely owns the slot until Free.
func (s *Slab) Alloc() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.free) == 0 {
		s.grow()
	}
	h := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]

	s.gens[h.page][h.slot]++ // odd (free) -> even (live)
	h.gen = s.gens[h.page][h.slot]
	s.live++

	// Zero the slot so no previous owner's bytes leak through.
	off := int(h.slot) * s.objSize
	b := s.pages[h.page][off : off+s.objSize]
	for i := range b {
		b[i] = 0
	}
	return h
}

// Free returns a slot to the free list.
//
// Freeing a handle that is already free, a handle from a prior generation, or
// a handle this slab never issued, is an invariant violation and panics.
func (s *Slab) Free(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.check(h, "free")
	s.gens[h.page][h.slot]++ // even (live) -> odd (free)
	s.free = append(s.free, Handle{page: h.page, slot: h.slot})
	s.live--
}

// Bytes returns the slot's backing storage. The window is valid until Free;
// using a handle after Free panics.
func (s *Slab) Bytes(h Handle) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.check(h, "access")
	off := int(h.slot) * s.objSize
	return s.pages[h.page][off : off+s.objSize : off+s.objSize]
}

// SlabStats is a point-in-time snapshot of allocator occupancy.
type SlabStats struct {
	Live          int
	ResidentPages int
	ObjectSize    int
}

// Stats returns live allocation and resident page counts.
func (s *Slab) Stats() SlabStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlabStats{Live: s.live, ResidentPages: len(s.pages), ObjectSize: s.objSize}
}

// check panics unless h names a live slot of the current generation.
// Caller must hold s.mu.
func (s *Slab) check(h Handle, op string) {
	if int(h.page) >= len(s.pages) || int(h.slot) >= s.perPage {
		panic(fmt.Sprintf("mem: %s of foreign slab handle (page=%d slot=%d)", op, h.page, h.slot))
	}
	cur := s.gens[h.page][h.slot]
	if cur%2 != 0 || cur != h.gen {
		panic(fmt.Sprintf("mem: %s of dead slab handle (page=%d slot=%d gen=%d cur=%d)",
			op, h.page, h.slot, h.gen, cur))
	}
}

// grow carves one block and threads its slots onto the free list.
// Caller must hold s.mu (or be the constructor).
func (s *Slab) grow() {
	page := uint32(len(s.pages))
	s.pages = append(s.pages, make([]byte, s.blockSize))

	gens := make([]uint32, s.perPage)
	for i := range gens {
		gens[i] = 1 // born free
	}
	s.gens = append(s.gens, gens)

	// Thread in reverse so slot 0 is popped first.
	for i := s.perPage - 1; i >= 0; i-- {
		s.free = append(s.free, Handle{page: page, slot: uint32(i)})
	}
}
