package vmm

import (
	"fmt"

	"x86kernel/pmm"
)

// selfCheckVA is an arbitrary user-half address used only by SelfCheck's
// scratch address space; it is never visible to any real process.
const selfCheckVA = 0x20000

// SelfCheck exercises CreateAddressSpace, a demand-paged mapping, and the
// K2User/User2K copy path end to end against a throwaway address space, run
// as one of kernel.Boot's concurrent startup probes (errgroup.Group,
// alongside pmm.Allocator.SelfCheck and heap.Heap.SelfCheck).
func SelfCheck(frames *pmm.Allocator) error {
	as, err := CreateAddressSpace(frames)
	if err != 0 {
		return fmt.Errorf("vmm: CreateAddressSpace: %v", err)
	}
	defer as.Destroy()

	if err := as.AllocatePages(selfCheckVA, PageSize, PermRead|PermWrite); err != 0 {
		return fmt.Errorf("vmm: AllocatePages: %v", err)
	}

	want := []byte("vmm self-check")
	if err := as.K2User(want, selfCheckVA); err != 0 {
		return fmt.Errorf("vmm: K2User: %v", err)
	}
	got := make([]byte, len(want))
	if err := as.User2K(got, selfCheckVA); err != 0 {
		return fmt.Errorf("vmm: User2K: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("vmm: demand-paged round trip mismatch at byte %d: got %q, want %q", i, got, want)
		}
	}
	return nil
}
