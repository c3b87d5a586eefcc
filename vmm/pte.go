// Package vmm implements the paging-based virtual memory manager: 2-level
// 32-bit page tables, per-process address spaces, copy-on-write, and
// demand paging, grounded on biscuit's vm/as.go
// (Vm_t: an embedded sync.Mutex guarding the page map and region list,
// Userdmap8_inner's COW-vs-demand-fault branch) and mem/mem.go's
// Pa_t/Pmap_t page-table types, generalized from biscuit's higher-half
// amd64 4-level tables down to the 32-bit 2-level tables this module
// specifies ("a 2-level paging structure: a page directory of 1024
// entries, each pointing to a page table of 1024 entries").
package vmm

import "x86kernel/pmm"

// Page geometry: 10 bits directory index, 10 bits table
// index, 12 bits page offset.
const (
	PageShift  = pmm.PageShift
	PageSize   = pmm.PageSize
	PageOffset = PageSize - 1

	DirShift   = 22
	TableShift = 12
	EntryMask  = 0x3ff // 10 bits
)

// PTE/PDE flag bits, the x86 protected-mode page-table entry format.
const (
	PteP    uint32 = 1 << 0 // present
	PteW    uint32 = 1 << 1 // writable
	PteU    uint32 = 1 << 2 // user-accessible
	PteA    uint32 = 1 << 5 // accessed
	PteD    uint32 = 1 << 6 // dirty
	PteCOW  uint32 = 1 << 9 // software bit: copy-on-write
	PteAddr uint32 = 0xfffff000
)

// KernelDirBase is the first page-directory index mapped identically in
// every address space, corresponding to virtual address
// 0xC0000000 (the conventional 3GB/1GB user/kernel split).
const KernelDirBase = 768

// DirIndex / TableIndex / PageOffsetOf decompose a 32-bit virtual address.
func DirIndex(va uint32) uint32     { return (va >> DirShift) & EntryMask }
func TableIndex(va uint32) uint32   { return (va >> TableShift) & EntryMask }
func PageOffsetOf(va uint32) uint32 { return va & PageOffset }

// PageDirectory / PageTable are the 4KiB, 1024-entry paging structures.
type PageDirectory [1024]uint32
type PageTable [1024]uint32
