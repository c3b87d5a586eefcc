package vmm

import "x86kernel/defs"

// pageBytesView returns a fresh PageSize-byte copy of a PageTable's uint32
// words, little-endian, so callers can work at byte granularity on memory
// the page tables address at word granularity. The slice does not alias the
// table: a caller that modifies it stores the bytes back with
// writeBackPage.
func pageBytesView(t *PageTable) []byte {
	b := make([]byte, 0, PageSize)
	for _, w := range t {
		b = append(b, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return b
}

func writeBackPage(t *PageTable, b []byte) {
	for i := range t {
		t[i] = uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
	}
}

// K2User copies src into the user virtual address space starting at uva,
// demand-faulting in any page that is not yet present. Grounded on
// biscuit's vm.Vm_t.K2user/K2user_inner (vm/as.go), simplified from its
// resource-accounting retry loop (bounds.Resadd_noblock) since this kernel
// has no analogous admission controller.
func (as *AddressSpace) K2User(src []byte, uva uint32) defs.Err_t {
	cnt := 0
	for cnt != len(src) {
		off := (uva + uint32(cnt)) & uint32(PageSize-1)
		pa, ok := as.pageForWrite(uva + uint32(cnt))
		if !ok {
			return -defs.EFAULT
		}
		t := DmapTable(pa)
		buf := pageBytesView(t)
		n := copy(buf[off:], src[cnt:])
		writeBackPage(t, buf)
		cnt += n
	}
	return 0
}

// User2K copies len(dst) bytes from the user virtual address uva into dst.
// Grounded on biscuit's vm.Vm_t.User2k/User2k_inner.
func (as *AddressSpace) User2K(dst []byte, uva uint32) defs.Err_t {
	cnt := 0
	for cnt != len(dst) {
		off := (uva + uint32(cnt)) & uint32(PageSize-1)
		pa, ok := as.pageForRead(uva + uint32(cnt))
		if !ok {
			return -defs.EFAULT
		}
		buf := pageBytesView(DmapTable(pa))
		n := copy(dst[cnt:], buf[off:])
		cnt += n
	}
	return 0
}

// pageForRead resolves va to its backing physical frame, demand-faulting it
// in via resolveDemand if it is not yet present.
func (as *AddressSpace) pageForRead(va uint32) (uint64, bool) {
	as.lock.Lock()
	defer as.lock.Unlock()

	region := as.regionLocked(va)
	if region == nil {
		return 0, false
	}
	pte, ok := as.ptefor(va, true)
	if !ok {
		return 0, false
	}
	if *pte&PteP == 0 {
		if as.resolveDemand(va, pte, region) != 0 {
			return 0, false
		}
	}
	return uint64(*pte & PteAddr), true
}

// pageForWrite resolves va for a write access: a not-present page is
// demand-faulted in, and a present copy-on-write page is given a private
// copy via resolveCOW, mirroring the branch HandleFault itself takes.
func (as *AddressSpace) pageForWrite(va uint32) (uint64, bool) {
	as.lock.Lock()
	defer as.lock.Unlock()

	region := as.regionLocked(va)
	if region == nil {
		return 0, false
	}
	pte, ok := as.ptefor(va, true)
	if !ok {
		return 0, false
	}
	switch {
	case *pte&PteP == 0:
		if as.resolveDemand(va, pte, region) != 0 {
			return 0, false
		}
	case *pte&PteCOW != 0:
		if as.resolveCOW(va, pte, region) != 0 {
			return 0, false
		}
	}
	return uint64(*pte & PteAddr), true
}
