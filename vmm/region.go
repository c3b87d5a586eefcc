package vmm

// Perm_t is the permission set a MemoryRegion grants, independent of the
// page-table bits that happen to implement it at any instant (a COW
// region is internally mapped read-only but still reports PermWrite).
type Perm_t uint8

const (
	PermRead Perm_t = 1 << iota
	PermWrite
	PermExec
)

// MemoryRegion describes one mapped, contiguous range of an address
// space's user half: [Start, Start+Len). Regions form a singly linked
// list ordered by Start, mirroring biscuit's Vmregion_t interval tracking
// (vm/as.go's Vmregion.Lookup) but simplified to the flat list this module
// names: "A linked list of MemoryRegion records describing the mapped
// portions of the address space."
type MemoryRegion struct {
	Start uint32
	Len   uint32
	Perm  Perm_t
	// File-backed demand paging source; nil for anonymous regions.
	Backing    DemandSource
	FileOffset uint32

	Next *MemoryRegion
}

// DemandSource supplies the initial contents of a demand-paged frame.
// Implemented by the VFS layer for file-backed mappings.
type DemandSource interface {
	ReadPage(offset uint32, dst []byte) int
}

func (r *MemoryRegion) contains(va uint32) bool {
	return va >= r.Start && va < r.Start+r.Len
}

// Lookup returns the region containing va, or nil.
func (as *AddressSpace) Lookup(va uint32) *MemoryRegion {
	for r := as.regions; r != nil; r = r.Next {
		if r.contains(va) {
			return r
		}
	}
	return nil
}

// insertRegion inserts r into the address space's region list in Start
// order. Overlap with an existing region is the caller's responsibility to
// avoid.
func (as *AddressSpace) insertRegion(r *MemoryRegion) {
	if as.regions == nil || r.Start < as.regions.Start {
		r.Next = as.regions
		as.regions = r
		return
	}
	cur := as.regions
	for cur.Next != nil && cur.Next.Start < r.Start {
		cur = cur.Next
	}
	r.Next = cur.Next
	cur.Next = r
}

// removeRegion unlinks the region starting at start, if present.
func (as *AddressSpace) removeRegion(start uint32) {
	if as.regions == nil {
		return
	}
	if as.regions.Start == start {
		as.regions = as.regions.Next
		return
	}
	cur := as.regions
	for cur.Next != nil {
		if cur.Next.Start == start {
			cur.Next = cur.Next.Next
			return
		}
		cur = cur.Next
	}
}
