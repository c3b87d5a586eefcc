package heap

import (
	"testing"
	"unsafe"
)

func newTestHeap(size int) *Heap {
	return New(make([]byte, size))
}

// TestPropertySoundness checks part of Property 1: every live allocation
// succeeds, starts inside the arena, and no two live allocations share a
// start address.
func TestPropertySoundness(t *testing.T) {
	h := newTestHeap(1 << 16)
	ptrs := make([]unsafe.Pointer, 0, 32)
	sizes := []int{16, 24, 100, 1, 1024, 513, 8}
	for _, s := range sizes {
		p := h.Alloc(s)
		if p == nil {
			t.Fatalf("Alloc(%d) returned nil", s)
		}
		ptrs = append(ptrs, p)
	}

	base := uintptr(unsafe.Pointer(&h.arena[0]))
	end := base + uintptr(len(h.arena))
	for _, p := range ptrs {
		pa := uintptr(p)
		if pa < base || pa >= end {
			t.Fatalf("pointer %#x escaped arena [%#x, %#x)", pa, base, end)
		}
	}
	for i := range ptrs {
		for j := range ptrs {
			if i == j {
				continue
			}
			if ptrs[i] == ptrs[j] {
				t.Fatalf("two distinct allocations returned the same address")
			}
		}
	}
}

// TestPropertyReuse is Property 2: for n <= 1024, alloc(n); free(p);
// alloc(n) returns the same address, since class free lists are LIFO.
func TestPropertyReuse(t *testing.T) {
	h := newTestHeap(1 << 16)
	for _, n := range []int{1, 16, 17, 256, 1024} {
		p1 := h.Alloc(n)
		if p1 == nil {
			t.Fatalf("Alloc(%d) returned nil", n)
		}
		h.Free(p1)
		p2 := h.Alloc(n)
		if p2 != p1 {
			t.Fatalf("Alloc(%d) after free: got %p, want reused %p", n, p2, p1)
		}
	}
}

// TestE2SmallAllocation covers alloc(24) returning a
// 16-byte aligned pointer from the 32-byte size class (index 1).
func TestE2SmallAllocation(t *testing.T) {
	h := newTestHeap(1 << 16)
	p := h.Alloc(24)
	if p == nil {
		t.Fatal("Alloc(24) returned nil")
	}
	if uintptr(p)%MinAlloc != 0 {
		t.Fatalf("Alloc(24) = %p, not 16-byte aligned", p)
	}
	if got, want := h.ClassIndexOf(p), 1; got != want {
		t.Fatalf("ClassIndexOf = %d, want %d (32-byte class)", got, want)
	}
}

// TestE3LargeFreeCoalesce covers two large
// allocations from a fresh arena are carved back-to-back from the front;
// freeing the first leaves a standalone free chunk in its old slot (it has
// no free neighbor to coalesce with, since the second allocation sits
// immediately after it).
func TestE3LargeFreeCoalesce(t *testing.T) {
	h := newTestHeap(1 << 20)
	first := h.Alloc(2000)
	second := h.Alloc(2000)
	if first == nil || second == nil {
		t.Fatal("expected two large allocations to succeed")
	}
	h.Free(first)

	// The freed chunk must be reusable by a same-size allocation, landing
	// back in the same slot since it has no free neighbor to merge into.
	third := h.Alloc(2000)
	if third != first {
		t.Fatalf("Alloc(2000) after free = %p, want reused slot %p", third, first)
	}
}

// TestLargeArenaCoalesceAcrossFrees verifies that freeing both neighbors of
// a large chunk merges them into one chunk capable of satisfying a request
// that would not fit in any of the three original pieces alone.
func TestLargeArenaCoalesceAcrossFrees(t *testing.T) {
	h := newTestHeap(1 << 13)
	a := h.Alloc(1500)
	b := h.Alloc(1500)
	c := h.Alloc(1500)
	if a == nil || b == nil || c == nil {
		t.Fatal("expected three allocations to succeed")
	}
	h.Free(a)
	h.Free(c)
	h.Free(b)

	big := h.Alloc(4000)
	if big == nil {
		t.Fatal("expected coalesced free space to satisfy a larger request")
	}
}

func TestAllocZeroIsMinAlloc(t *testing.T) {
	h := newTestHeap(4096)
	p := h.Alloc(0)
	if p == nil {
		t.Fatal("Alloc(0) should not return nil")
	}
}

func TestFreeNilIsNoop(t *testing.T) {
	h := newTestHeap(4096)
	h.Free(nil)
}

func TestExhaustion(t *testing.T) {
	h := newTestHeap(headerSize + MinAlloc)
	p := h.Alloc(MinAlloc)
	if p == nil {
		t.Fatal("expected the single chunk to be allocatable")
	}
	if q := h.Alloc(MinAlloc); q != nil {
		t.Fatalf("expected exhaustion, got %p", q)
	}
}
