// Package heap implements the kernel heap allocator: a size-class
// segregated free-list allocator with per-class locking and a best-fit
// large-block arena fallback, grounded on biscuit's
// mem/mem.go, whose Physmem_t._phys_new/_phys_insert pair manages an
// intrusive free list of dense records linked by index — this allocator
// follows the same "header carries the next-free link" idiom, but the
// header precedes a variable-size payload (as the original Chunk record
// describes) instead of indexing a fixed-size Pgs array, since heap
// allocations are not page-sized.
//
// The allocator owns a single contiguous backing arena (supplied by the
// caller — in a real boot this would be a region carved out by the
// physical frame allocator and mapped into the kernel's address range; in
// tests it is a plain []byte). All "pointers" handed back by Alloc are
// ordinary Go unsafe.Pointer values into that arena, so the rest of the
// kernel can treat them exactly like C malloc/free results.
package heap

import (
	"fmt"
	"unsafe"

	"x86kernel/ksync"
	"x86kernel/util"
)

// MinAlloc is the minimum allocation unit and alignment.
const MinAlloc = 16

// sizeClasses is the fixed set of size classes.
var sizeClasses = [...]uint32{16, 32, 64, 128, 256, 512, 1024}

const numClasses = len(sizeClasses)

// classLarge marks a chunk as belonging to the large arena rather than a
// size class.
const classLarge int32 = -1

// noLink is the "no next element" sentinel for free-list and
// physical-neighbor links, stored as an arena byte offset.
const noLink uint32 = 0xFFFFFFFF

// slabSize is the size of the slab carved out of the large arena to
// refill an empty size class.
const slabSize = 4096

// chunkHeader is the intrusive free-list header: "(prev, next,
// allocated, size, size_class_index)". prev/next link physically adjacent
// chunks in the large arena for coalescing; freeNext links a chunk into
// whichever free list currently owns it (a class free list or the large
// arena's). Small chunks never populate prev/next.
type chunkHeader struct {
	allocated uint32
	size      uint32 // payload capacity in bytes
	class     int32  // index into sizeClasses, or classLarge
	prev      uint32 // large arena only: offset of previous physical neighbor
	next      uint32 // large arena only: offset of next physical neighbor
	freeNext  uint32 // free-list link
}

var headerSize = util.Roundup(int(unsafe.Sizeof(chunkHeader{})), MinAlloc)

// Heap is the kernel heap allocator.
type Heap struct {
	arena []byte

	classLock [numClasses]ksync.Spinlock
	classHead [numClasses]uint32

	largeLock ksync.Spinlock
	largeHead uint32
}

// New creates a Heap backed by the given arena. The entire arena starts
// as a single free chunk in the large arena.
func New(arena []byte) *Heap {
	h := &Heap{arena: arena}
	for i := range h.classHead {
		h.classHead[i] = noLink
	}
	h.largeHead = noLink
	if len(arena) < headerSize+MinAlloc {
		panic("heap arena too small")
	}
	root := h.headerAt(0)
	root.allocated = 0
	root.size = uint32(len(arena) - headerSize)
	root.class = classLarge
	root.prev = noLink
	root.next = noLink
	root.freeNext = noLink
	h.largeHead = 0
	return h
}

func (h *Heap) headerAt(off uint32) *chunkHeader {
	return (*chunkHeader)(unsafe.Pointer(&h.arena[off]))
}

func (h *Heap) payloadOf(off uint32) unsafe.Pointer {
	return unsafe.Pointer(&h.arena[off+uint32(headerSize)])
}

// offsetOf converts a payload pointer previously returned by Alloc back
// into its header's arena offset.
func (h *Heap) offsetOf(p unsafe.Pointer) uint32 {
	base := uintptr(unsafe.Pointer(&h.arena[0]))
	pa := uintptr(p)
	return uint32(pa-base) - uint32(headerSize)
}

func classFor(n uint32) int {
	for i, sz := range sizeClasses {
		if sz >= n {
			return i
		}
	}
	return int(classLarge)
}

// Alloc returns a pointer to at least n bytes, aligned to MinAlloc, or nil
// if the heap is exhausted.
func (h *Heap) Alloc(n int) unsafe.Pointer {
	if n <= 0 {
		n = 1
	}
	rounded := uint32(util.Roundup(n, MinAlloc))
	c := classFor(rounded)
	if c == int(classLarge) {
		return h.allocLarge(rounded)
	}
	return h.allocClass(c)
}

func (h *Heap) allocClass(c int) unsafe.Pointer {
	h.classLock[c].Lock()
	off := h.classHead[c]
	if off != noLink {
		hdr := h.headerAt(off)
		h.classHead[c] = hdr.freeNext
		hdr.allocated = 1
		hdr.freeNext = noLink
		h.classLock[c].Unlock()
		return h.payloadOf(off)
	}
	h.classLock[c].Unlock()

	// Refill: carve a slab out of the large arena and populate the class
	// free list.
	if !h.refillClass(c) {
		return nil
	}

	h.classLock[c].Lock()
	off = h.classHead[c]
	if off == noLink {
		h.classLock[c].Unlock()
		return nil
	}
	hdr := h.headerAt(off)
	h.classHead[c] = hdr.freeNext
	hdr.allocated = 1
	hdr.freeNext = noLink
	h.classLock[c].Unlock()
	return h.payloadOf(off)
}

// refillClass carves a slabSize region out of the large arena (best fit),
// or, when no free chunk that large remains, a region just big enough for
// one class-c chunk; it subdivides the region into chunks for class c and
// pushes them onto the class free list. Any leftover big enough for a
// large chunk is returned to the large arena, as is the remainder of the
// large chunk the slab was split from.
func (h *Heap) refillClass(c int) bool {
	classSize := sizeClasses[c]
	perChunk := uint32(headerSize) + classSize

	h.largeLock.Lock()
	slabOff, ok := h.takeFromLargeLocked(slabSize)
	if !ok {
		slabOff, ok = h.takeFromLargeLocked(classSize)
	}
	h.largeLock.Unlock()
	if !ok {
		return false
	}

	hdr := h.headerAt(slabOff)
	total := uint32(headerSize) + hdr.size // the slab's whole span, its own header included
	n := total / perChunk
	if n == 0 {
		// Slab too small to carve even one chunk; give it back whole.
		h.largeLock.Lock()
		h.pushLargeLocked(slabOff)
		h.largeLock.Unlock()
		return false
	}

	h.classLock[c].Lock()
	cursor := slabOff
	for i := uint32(0); i < n; i++ {
		ch := h.headerAt(cursor)
		ch.allocated = 0
		ch.size = classSize
		ch.class = int32(c)
		ch.prev = noLink
		ch.next = noLink
		ch.freeNext = h.classHead[c]
		h.classHead[c] = cursor
		cursor += perChunk
	}
	h.classLock[c].Unlock()

	leftover := total - n*perChunk
	if leftover >= uint32(headerSize)+MinAlloc {
		h.largeLock.Lock()
		lh := h.headerAt(cursor)
		lh.allocated = 0
		lh.size = leftover - uint32(headerSize)
		lh.class = classLarge
		lh.prev = noLink
		lh.next = noLink
		h.pushLargeLocked(cursor)
		h.largeLock.Unlock()
	}
	return true
}

// allocLarge services an allocation directly from the large arena using
// best fit.
func (h *Heap) allocLarge(n uint32) unsafe.Pointer {
	h.largeLock.Lock()
	defer h.largeLock.Unlock()
	off, ok := h.takeFromLargeLocked(n)
	if !ok {
		return nil
	}
	hdr := h.headerAt(off)
	hdr.allocated = 1
	hdr.class = classLarge
	return h.payloadOf(off)
}

// takeFromLargeLocked removes the best-fit free chunk of at least n bytes
// from the large free list, splitting off and returning any sufficiently
// large tail. Caller must hold largeLock.
func (h *Heap) takeFromLargeLocked(n uint32) (uint32, bool) {
	var bestOff uint32 = noLink
	var bestPrevLink uint32 = noLink
	var bestSize uint32

	prevLink := noLink
	cur := h.largeHead
	for cur != noLink {
		hdr := h.headerAt(cur)
		if hdr.size >= n && (bestOff == noLink || hdr.size < bestSize) {
			bestOff = cur
			bestSize = hdr.size
			bestPrevLink = prevLink
		}
		prevLink = cur
		cur = hdr.freeNext
	}
	if bestOff == noLink {
		return 0, false
	}
	h.unlinkLargeFreeLocked(bestOff, bestPrevLink)

	hdr := h.headerAt(bestOff)
	remaining := hdr.size - n
	if remaining >= uint32(headerSize)+MinAlloc {
		tailOff := bestOff + uint32(headerSize) + n
		tailHdr := h.headerAt(tailOff)
		tailHdr.allocated = 0
		tailHdr.size = remaining - uint32(headerSize)
		tailHdr.class = classLarge
		tailHdr.prev = bestOff
		tailHdr.next = hdr.next
		if hdr.next != noLink {
			h.headerAt(hdr.next).prev = tailOff
		}
		hdr.next = tailOff
		hdr.size = n
		h.pushLargeLocked(tailOff)
	}
	hdr.allocated = 0 // temporarily, Free sets it back; caller sets allocated=1
	return bestOff, true
}

// unlinkLargeFreeLocked removes the chunk at off from the large free
// list, given the offset of its predecessor in that list (noLink if off
// is currently the head).
func (h *Heap) unlinkLargeFreeLocked(off, prevInList uint32) {
	hdr := h.headerAt(off)
	if prevInList == noLink {
		h.largeHead = hdr.freeNext
	} else {
		h.headerAt(prevInList).freeNext = hdr.freeNext
	}
	hdr.freeNext = noLink
}

// pushLargeLocked pushes the chunk at off onto the head of the large free
// list. Caller must hold largeLock.
func (h *Heap) pushLargeLocked(off uint32) {
	hdr := h.headerAt(off)
	hdr.allocated = 0
	hdr.freeNext = h.largeHead
	h.largeHead = off
}

// Free returns p, a pointer previously returned by Alloc, to the pool.
// Free(nil) is a no-op.
func (h *Heap) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	off := h.offsetOf(p)
	hdr := h.headerAt(off)
	if hdr.class != classLarge {
		c := int(hdr.class)
		h.classLock[c].Lock()
		hdr.allocated = 0
		hdr.freeNext = h.classHead[c]
		h.classHead[c] = off
		h.classLock[c].Unlock()
		return
	}

	h.largeLock.Lock()
	defer h.largeLock.Unlock()
	hdr.allocated = 0

	// Coalesce with the immediate neighbors in both directions.
	if nextOff := hdr.next; nextOff != noLink {
		nhdr := h.headerAt(nextOff)
		if nhdr.allocated == 0 && nhdr.class == classLarge {
			h.removeLargeFreeByOffsetLocked(nextOff)
			hdr.size += uint32(headerSize) + nhdr.size
			hdr.next = nhdr.next
			if nhdr.next != noLink {
				h.headerAt(nhdr.next).prev = off
			}
		}
	}
	if prevOff := hdr.prev; prevOff != noLink {
		phdr := h.headerAt(prevOff)
		if phdr.allocated == 0 && phdr.class == classLarge {
			h.removeLargeFreeByOffsetLocked(prevOff)
			phdr.size += uint32(headerSize) + hdr.size
			phdr.next = hdr.next
			if hdr.next != noLink {
				h.headerAt(hdr.next).prev = prevOff
			}
			h.pushLargeLocked(prevOff)
			return
		}
	}
	h.pushLargeLocked(off)
}

// removeLargeFreeByOffsetLocked removes an arbitrary element from the
// large free list by scanning for it. Caller must hold largeLock.
func (h *Heap) removeLargeFreeByOffsetLocked(target uint32) {
	if h.largeHead == target {
		h.largeHead = h.headerAt(target).freeNext
		return
	}
	cur := h.largeHead
	for cur != noLink {
		hdr := h.headerAt(cur)
		if hdr.freeNext == target {
			hdr.freeNext = h.headerAt(target).freeNext
			return
		}
		cur = hdr.freeNext
	}
}

// ClassIndexOf returns the size-class index stored in p's chunk header, or
// classLarge-equivalent -1 for a large-arena allocation. Exposed for
// tests exercising the small-allocation path.
func (h *Heap) ClassIndexOf(p unsafe.Pointer) int {
	off := h.offsetOf(p)
	return int(h.headerAt(off).class)
}

// SelfCheck allocates and frees one chunk of each size class to confirm
// the arena round-trips cleanly, run as one of kernel.Boot's concurrent
// startup probes (errgroup.Group, alongside pmm.Allocator.SelfCheck and
// vmm.SelfCheck).
func (h *Heap) SelfCheck() error {
	for _, sz := range sizeClasses {
		p := h.Alloc(int(sz))
		if p == nil {
			return fmt.Errorf("heap: Alloc(%d) returned nil", sz)
		}
		if got := h.ClassIndexOf(p); got < 0 {
			return fmt.Errorf("heap: Alloc(%d) landed in the large arena, not a size class", sz)
		}
		h.Free(p)
	}
	return nil
}
