package vmm

import "x86kernel/defs"

// Fault error-code bits pushed onto the stack by vector 14.
const (
	FaultPresent uint32 = 1 << 0
	FaultWrite   uint32 = 1 << 1
	FaultUser    uint32 = 1 << 2
)

// HandleFault services a page fault at virtual address va with the CPU's
// error code, implementing both copy-on-write and demand paging. It returns 0 if the fault was resolved and execution may resume,
// or a negative Err_t if the access is genuinely invalid and the caller
// (irq.Dispatch, by way of the scheduler) must terminate the process.
//
// Grounded on biscuit's vm.Userdmap8_inner, which branches on the same two
// conditions this does: "isp" (page present) distinguishes a COW
// protection fault from a not-present demand fault, and "iscow" gates
// whether a present, faulting write needs a private copy.
func (as *AddressSpace) HandleFault(va uint32, errCode uint32) defs.Err_t {
	as.lock.Lock()
	defer as.lock.Unlock()

	region := as.regionLocked(va)
	if region == nil {
		return -defs.EFAULT
	}

	pte, ok := as.ptefor(va, true)
	if !ok {
		return -defs.ENOMEM
	}

	present := *pte&PteP != 0
	if present {
		if errCode&FaultWrite == 0 {
			// A present page faulted on a read: nothing this handler
			// can do.
			return -defs.EFAULT
		}
		if *pte&PteCOW == 0 {
			// Present, writable-region page faulted on write without
			// being a COW mapping: a genuine protection violation.
			return -defs.EFAULT
		}
		return as.resolveCOW(va, pte, region)
	}

	return as.resolveDemand(va, pte, region)
}

// regionLocked is Lookup without re-acquiring as.lock.
func (as *AddressSpace) regionLocked(va uint32) *MemoryRegion {
	for r := as.regions; r != nil; r = r.Next {
		if r.contains(va) {
			return r
		}
	}
	return nil
}

// resolveCOW gives the faulting address space a private, writable copy of
// a shared page, or converts the mapping in place when it is the sole
// owner.
func (as *AddressSpace) resolveCOW(va uint32, pte *uint32, region *MemoryRegion) defs.Err_t {
	oldPA := uint64(*pte & PteAddr)
	if as.frames.Refcount(oldPA) <= 1 {
		*pte = (*pte &^ PteCOW) | PteW
		invalidate(va)
		return 0
	}

	newPA := as.frames.AllocateFrame()
	if newPA == 0 {
		return -defs.ENOMEM
	}
	copy(DmapTable(newPA)[:], DmapTable(oldPA)[:])
	as.frames.FreeFrame(oldPA) // drops this address space's reference

	flags := uint32(PteP | PteU | PteW)
	*pte = uint32(newPA&uint64(PteAddr)) | flags
	invalidate(va)
	return 0
}

// resolveDemand populates a not-yet-backed page of region, reading its
// contents from region.Backing when the region is file-backed, or
// returning a zeroed frame for anonymous regions.
func (as *AddressSpace) resolveDemand(va uint32, pte *uint32, region *MemoryRegion) defs.Err_t {
	pa := as.frames.AllocateFrame()
	if pa == 0 {
		return -defs.ENOMEM
	}
	t := DmapTable(pa)
	buf := pageBytesView(t)
	if region.Backing != nil {
		off := region.FileOffset + (va - region.Start)
		n := region.Backing.ReadPage(off, buf)
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
	} else {
		for i := range buf {
			buf[i] = 0
		}
	}
	writeBackPage(t, buf)

	flags := uint32(PteP | PteU)
	if region.Perm&PermWrite != 0 {
		flags |= PteW
	}
	*pte = uint32(pa&uint64(PteAddr)) | flags
	invalidate(va)
	return 0
}

// Fork creates a child address space that shares every frame in the
// parent's user half copy-on-write: both parent and child page tables are
// rewritten read-only with PteCOW set, and each shared frame's reference
// count is bumped.
func (as *AddressSpace) Fork() (*AddressSpace, defs.Err_t) {
	as.lock.Lock()
	defer as.lock.Unlock()

	child, err := CreateAddressSpace(as.frames)
	if err != 0 {
		return nil, err
	}

	for r := as.regions; r != nil; r = r.Next {
		childRegion := &MemoryRegion{
			Start: r.Start, Len: r.Len, Perm: r.Perm,
			Backing: r.Backing, FileOffset: r.FileOffset,
		}
		child.insertRegion(childRegion)

		for va := r.Start; va < r.Start+r.Len; va += PageSize {
			pte, ok := as.ptefor(va, false)
			if !ok || *pte&PteP == 0 {
				continue
			}
			if *pte&PteW != 0 {
				*pte = (*pte &^ PteW) | PteCOW
			}
			pa := uint64(*pte & PteAddr)
			as.frames.Refup(pa)

			childPTE, ok := child.ptefor(va, true)
			if !ok {
				return nil, -defs.ENOMEM
			}
			*childPTE = *pte
			invalidate(va)
		}
	}
	return child, 0
}
