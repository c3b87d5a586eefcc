package vmm

import (
	"x86kernel/defs"
	"x86kernel/ksync"
	"x86kernel/pmm"
)

// kernelTemplate holds page-directory entries 768-1023, shared read-only
// identically across every address space. SetKernelTemplate is called once during boot after the
// kernel's own mappings are established.
var kernelTemplate [1024 - KernelDirBase]uint32

// SetKernelTemplate installs the kernel-half page-directory entries that
// CreateAddressSpace copies into every new address space.
func SetKernelTemplate(entries [1024 - KernelDirBase]uint32) {
	kernelTemplate = entries
}

// AddressSpace is one process's virtual memory: a page directory plus the
// region list describing its user-half mappings. Grounded on biscuit's
// vm.Vm_t, which embeds sync.Mutex directly ("the mutex protects
// modifications to Vmregion, Pmap, and P_pmap") rather than wrapping it;
// this kernel uses ksync.Spinlock uniformly instead, per the single-CPU
// shared-resource policy.
type AddressSpace struct {
	lock ksync.Spinlock

	dirFrame uint64 // physical address of the page directory
	regions  *MemoryRegion

	frames *pmm.Allocator
}

// CreateAddressSpace allocates a fresh page directory, installs the
// shared kernel-half entries, and returns an empty user address space
//.
func CreateAddressSpace(frames *pmm.Allocator) (*AddressSpace, defs.Err_t) {
	pa := frames.AllocateFrame()
	if pa == 0 {
		return nil, -defs.ENOMEM
	}
	dir := DmapDir(pa)
	for i := range dir {
		dir[i] = 0
	}
	copy(dir[KernelDirBase:], kernelTemplate[:])

	return &AddressSpace{dirFrame: pa, frames: frames}, 0
}

// Destroy unmaps and frees every user-half frame and region, then frees
// the page directory itself.
func (as *AddressSpace) Destroy() {
	as.lock.Lock()
	defer as.lock.Unlock()

	for r := as.regions; r != nil; r = r.Next {
		for va := r.Start; va < r.Start+r.Len; va += PageSize {
			as.unmapLocked(va, true)
		}
	}
	as.regions = nil

	dir := DmapDir(as.dirFrame)
	for i := 0; i < KernelDirBase; i++ {
		if dir[i]&PteP == 0 {
			continue
		}
		tablePA := uint64(dir[i] & PteAddr)
		as.frames.FreeFrame(tablePA)
		dmapForget(tablePA)
		dir[i] = 0
	}
	as.frames.FreeFrame(as.dirFrame)
	dmapForget(as.dirFrame)
}

// SwitchTo activates this address space by loading its page directory into
// CR3. Actual CR3 writes are performed by the
// caller (the scheduler, during a context switch) via cpu.WriteCR3 — this
// method returns the physical address to load, keeping vmm free of a
// direct cpu import for testability.
func (as *AddressSpace) SwitchTo() uint32 {
	return uint32(as.dirFrame)
}

// ptefor returns a pointer to the page-table entry for va, allocating
// intermediate page-table frames on demand when alloc is true. It returns
// ok=false if the entry does not exist and alloc is false.
func (as *AddressSpace) ptefor(va uint32, alloc bool) (pte *uint32, ok bool) {
	dir := DmapDir(as.dirFrame)
	di := DirIndex(va)
	if dir[di]&PteP == 0 {
		if !alloc {
			return nil, false
		}
		tablePA := as.frames.AllocateFrame()
		if tablePA == 0 {
			return nil, false
		}
		t := DmapTable(tablePA)
		for i := range t {
			t[i] = 0
		}
		dir[di] = uint32(tablePA) | PteP | PteW | PteU
	}
	table := DmapTable(uint64(dir[di] & PteAddr))
	return &table[TableIndex(va)], true
}

// Map installs a present mapping from va to the physical frame pa with the
// given permission, allocating an intermediate page table if needed
//. It
// invalidates the TLB entry for va, per the invariant that every map/
// unmap is followed by an invlpg.
func (as *AddressSpace) Map(va uint32, pa uint64, perm Perm_t) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()
	return as.mapLocked(va, pa, perm, false)
}

func (as *AddressSpace) mapLocked(va uint32, pa uint64, perm Perm_t, cow bool) defs.Err_t {
	pte, ok := as.ptefor(va, true)
	if !ok {
		return -defs.ENOMEM
	}
	flags := uint32(PteP | PteU)
	if perm&PermWrite != 0 && !cow {
		flags |= PteW
	}
	if cow {
		flags |= PteCOW
	}
	*pte = uint32(pa&uint64(PteAddr)) | flags
	invalidate(va)
	return 0
}

// Unmap clears the mapping at va. If free is true the underlying frame's
// reference count is dropped via the frame allocator.
func (as *AddressSpace) Unmap(va uint32, free bool) {
	as.lock.Lock()
	defer as.lock.Unlock()
	as.unmapLocked(va, free)
}

func (as *AddressSpace) unmapLocked(va uint32, free bool) {
	pte, ok := as.ptefor(va, false)
	if !ok || *pte&PteP == 0 {
		return
	}
	pa := uint64(*pte & PteAddr)
	*pte = 0
	invalidate(va)
	if free {
		as.frames.FreeFrame(pa)
	}
}

// Resolve translates va to its backing physical address, returning
// ok=false if unmapped.
func (as *AddressSpace) Resolve(va uint32) (pa uint64, ok bool) {
	as.lock.Lock()
	defer as.lock.Unlock()
	pte, found := as.ptefor(va, false)
	if !found || *pte&PteP == 0 {
		return 0, false
	}
	return uint64(*pte&PteAddr) | uint64(PageOffsetOf(va)), true
}

// AllocatePages reserves [start, start+length) as a new anonymous
// MemoryRegion without populating any frames.
func (as *AddressSpace) AllocatePages(start, length uint32, perm Perm_t) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()
	as.insertRegion(&MemoryRegion{Start: start, Len: length, Perm: perm})
	return 0
}

// MapPages reserves and immediately backs [start, start+length) with
// freshly allocated, zeroed frames. If a frame or page-table allocation
// fails partway through the range, every page already mapped by this call
// is unmapped and freed and the region reservation is withdrawn, so a
// failed MapPages never leaves a partially-backed region behind.
func (as *AddressSpace) MapPages(start, length uint32, perm Perm_t) defs.Err_t {
	as.lock.Lock()
	as.insertRegion(&MemoryRegion{Start: start, Len: length, Perm: perm})
	as.lock.Unlock()

	for va := start; va < start+length; va += PageSize {
		pa := as.frames.AllocateFrame()
		if pa == 0 {
			as.unmapRange(start, va)
			return -defs.ENOMEM
		}
		zeroFrame(pa)
		if err := as.Map(va, pa, perm); err != 0 {
			as.frames.FreeFrame(pa)
			as.unmapRange(start, va)
			return err
		}
	}
	return 0
}

// unmapRange undoes a partial MapPages: it unmaps and frees every page in
// [start, end) that a failed call had already backed, then drops the
// region reservation entirely.
func (as *AddressSpace) unmapRange(start, end uint32) {
	for va := start; va < end; va += PageSize {
		as.Unmap(va, true)
	}
	as.lock.Lock()
	as.removeRegion(start)
	as.lock.Unlock()
}

// FreePages unmaps and frees every frame in [start, start+length) and
// removes the MemoryRegion.
func (as *AddressSpace) FreePages(start, length uint32) {
	for va := start; va < start+length; va += PageSize {
		as.Unmap(va, true)
	}
	as.lock.Lock()
	as.removeRegion(start)
	as.lock.Unlock()
}

func zeroFrame(pa uint64) {
	t := DmapTable(pa) // reused as a generic 4KiB zeroable buffer
	for i := range t {
		t[i] = 0
	}
}

// invalidate is a seam over cpu.InvlPG so vmm has no direct cpu
// dependency; kernel.Boot wires it to the real instruction.
var invalidate = func(va uint32) {}

// SetInvalidate installs the TLB-invalidation primitive used after every
// map/unmap. kernel.Boot calls this with cpu.InvlPG.
func SetInvalidate(f func(va uint32)) {
	invalidate = f
}
