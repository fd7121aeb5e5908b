package mem

import (
	"sync"
	"testing"
)

func TestSlab_FirstBlockCarvedEagerly(t *testing.T) {
	s := NewSlab(64, 4096)
	st := s.Stats()
	if st.ResidentPages != 1 {
		t.Fatalf("expected 1 resident page, got %d", st.ResidentPages)
	}
	if st.Live != 0 {
		t.Fatalf("expected 0 live, got %d", st.Live)
	}
}

func TestSlab_RoundTripRestoresLiveCount(t *testing.T) {
	s := NewSlab(128, 4096)
	before := s.Stats().Live

	handles := make([]Handle, 0, 100)
	for i := 0; i < 100; i++ {
		handles = append(handles, s.Alloc())
	}
	if got := s.Stats().Live; got != before+100 {
		t.Fatalf("live = %d, want %d", got, before+100)
	}
	for _, h := range handles {
		s.Free(h)
	}
	if got := s.Stats().Live; got != before {
		t.Fatalf("live after free = %d, want %d", got, before)
	}
}

func TestSlab_GrowsWhenFreeListEmpty(t *testing.T) {
	s := NewSlab(1024, 4096) // 4 slots per page
	for i := 0; i < 5; i++ {
		s.Alloc()
	}
	if got := s.Stats().ResidentPages; got != 2 {
		t.Fatalf("resident pages = %d, want 2", got)
	}
}

func TestSlab_NoAliasingAcrossHandles(t *testing.T) {
	s := NewSlab(64, 4096)
	a := s.Alloc()
	b := s.Alloc()

	ba := s.Bytes(a)
	bb := s.Bytes(b)
	for i := range ba {
		ba[i] = 0xAA
	}
	for _, v := range bb {
		if v == 0xAA {
			t.Fatalf("write through one handle observed through another")
		}
	}
}

func TestSlab_StaleHandleIsRejectedAfterReuse(t *testing.T) {
	s := NewSlab(64, 4096)
	a := s.Alloc()
	copy(s.Bytes(a), []byte("stale"))
	s.Free(a)

	b := s.Alloc() // LIFO: reuses a's slot under a new generation
	copy(s.Bytes(b), []byte("fresh"))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on access through stale handle")
		}
	}()
	_ = s.Bytes(a)
}

func TestSlab_ReusedSlotIsZeroed(t *testing.T) {
	s := NewSlab(64, 4096)
	a := s.Alloc()
	copy(s.Bytes(a), []byte("leftover"))
	s.Free(a)

	b := s.Alloc()
	for i, v := range s.Bytes(b) {
		if v != 0 {
			t.Fatalf("byte %d of reused slot = %#x, want 0", i, v)
		}
	}
}

func TestSlab_DoubleFreePanics(t *testing.T) {
	s := NewSlab(64, 4096)
	h := s.Alloc()
	s.Free(h)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double free")
		}
	}()
	s.Free(h)
}

func TestSlab_ForeignHandlePanics(t *testing.T) {
	s := NewSlab(64, 4096)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on foreign handle")
		}
	}()
	s.Free(Handle{page: 99, slot: 0})
}

func TestSlab_StressInterleavedFreeAndRealloc(t *testing.T) {
	s := NewSlab(64, 4096)

	handles := make([]Handle, 10000)
	for i := range handles {
		handles[i] = s.Alloc()
	}

	// Free every other one, then reallocate the same count.
	for i := 0; i < len(handles); i += 2 {
		s.Free(handles[i])
	}
	if got := s.Stats().Live; got != 5000 {
		t.Fatalf("live after partial free = %d, want 5000", got)
	}
	pagesAfterFree := s.Stats().ResidentPages

	for i := 0; i < len(handles); i += 2 {
		handles[i] = s.Alloc()
	}

	st := s.Stats()
	if st.Live != 10000 {
		t.Fatalf("live at end = %d, want 10000", st.Live)
	}
	if st.ResidentPages < pagesAfterFree {
		t.Fatalf("resident pages shrank: %d -> %d", pagesAfterFree, st.ResidentPages)
	}

	// No slot may be owned by two live handles at once.
	type slotKey struct{ page, slot uint32 }
	seen := make(map[slotKey]bool, len(handles))
	for _, h := range handles {
		k := slotKey{h.page, h.slot}
		if seen[k] {
			t.Fatalf("slot %+v returned to two callers", k)
		}
		seen[k] = true
	}
}

func TestSlab_ConcurrentAllocFree(t *testing.T) {
	s := NewSlab(64, 4096)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]Handle, 0, 200)
			for i := 0; i < 200; i++ {
				local = append(local, s.Alloc())
			}
			for _, h := range local {
				s.Free(h)
			}
		}()
	}
	wg.Wait()

	if got := s.Stats().Live; got != 0 {
		t.Fatalf("live after concurrent round trip = %d, want 0", got)
	}
}
