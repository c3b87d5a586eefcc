package vmm

import (
	"testing"

	"x86kernel/pmm"
)

func newTestFrames(n int) *pmm.Allocator {
	return pmm.Init(PageSize, uint64(n)*PageSize)
}

func TestMapUnmapResolve(t *testing.T) {
	frames := newTestFrames(16)
	as, err := CreateAddressSpace(frames)
	if err != 0 {
		t.Fatalf("CreateAddressSpace: %v", err)
	}
	pa := frames.AllocateFrame()
	const va = 0x1000
	if err := as.Map(va, pa, PermRead|PermWrite); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	got, ok := as.Resolve(va)
	if !ok || got != pa {
		t.Fatalf("Resolve(%#x) = %#x, %v; want %#x, true", va, got, ok, pa)
	}
	as.Unmap(va, true)
	if _, ok := as.Resolve(va); ok {
		t.Fatal("expected Resolve to fail after Unmap")
	}
}

func TestKernelHalfInvariant(t *testing.T) {
	var template [1024 - KernelDirBase]uint32
	template[0] = 0xdeadb000 | PteP | PteW
	SetKernelTemplate(template)
	defer SetKernelTemplate([1024 - KernelDirBase]uint32{})

	frames := newTestFrames(8)
	as1, _ := CreateAddressSpace(frames)
	as2, _ := CreateAddressSpace(frames)

	dir1 := DmapDir(as1.dirFrame)
	dir2 := DmapDir(as2.dirFrame)
	if dir1[KernelDirBase] != template[0] || dir2[KernelDirBase] != template[0] {
		t.Fatal("every address space must start with the kernel template copied into its upper half")
	}
	for i := 0; i < KernelDirBase; i++ {
		if dir1[i] != 0 {
			t.Fatalf("user half of a fresh address space must start empty, dir[%d] = %#x", i, dir1[i])
		}
	}
}

func TestDemandPagingAnonymous(t *testing.T) {
	frames := newTestFrames(8)
	as, _ := CreateAddressSpace(frames)
	const va = 0x2000
	if err := as.AllocatePages(va, PageSize, PermRead|PermWrite); err != 0 {
		t.Fatalf("AllocatePages: %v", err)
	}
	if _, ok := as.Resolve(va); ok {
		t.Fatal("a reserved-but-unfaulted page must not resolve yet")
	}
	if err := as.HandleFault(va, 0); err != 0 {
		t.Fatalf("HandleFault: %v", err)
	}
	if _, ok := as.Resolve(va); !ok {
		t.Fatal("expected the fault to populate the page")
	}
}

type fakeFile struct{ data []byte }

func (f *fakeFile) ReadPage(offset uint32, dst []byte) int {
	n := copy(dst, f.data[offset:])
	return n
}

func TestDemandPagingFileBacked(t *testing.T) {
	frames := newTestFrames(8)
	as, _ := CreateAddressSpace(frames)
	const va = 0x3000
	content := make([]byte, PageSize)
	content[0] = 0x42
	as.lock.Lock()
	as.insertRegion(&MemoryRegion{Start: va, Len: PageSize, Perm: PermRead, Backing: &fakeFile{data: content}})
	as.lock.Unlock()

	if err := as.HandleFault(va, 0); err != 0 {
		t.Fatalf("HandleFault: %v", err)
	}
	pa, ok := as.Resolve(va)
	if !ok {
		t.Fatal("expected demand fault to map the page")
	}
	buf := pageBytesView(DmapTable(pa))
	if buf[0] != 0x42 {
		t.Fatalf("expected file-backed content to be read in, got %#x", buf[0])
	}
}

func TestFaultOutsideAnyRegionIsEFAULT(t *testing.T) {
	frames := newTestFrames(8)
	as, _ := CreateAddressSpace(frames)
	if err := as.HandleFault(0x99999000, 0); err == 0 {
		t.Fatal("expected a non-zero Err_t for a fault outside every region")
	}
}

func TestCOWFork(t *testing.T) {
	frames := newTestFrames(16)
	parent, _ := CreateAddressSpace(frames)
	const va = 0x4000
	if err := parent.MapPages(va, PageSize, PermRead|PermWrite); err != 0 {
		t.Fatalf("MapPages: %v", err)
	}
	parentPA, _ := parent.Resolve(va)

	child, err := parent.Fork()
	if err != 0 {
		t.Fatalf("Fork: %v", err)
	}
	childPA, ok := child.Resolve(va)
	if !ok || childPA != parentPA {
		t.Fatalf("expected fork to share the parent's frame, got %#x (parent %#x)", childPA, parentPA)
	}
	if frames.Refcount(parentPA) != 2 {
		t.Fatalf("expected refcount 2 after fork, got %d", frames.Refcount(parentPA))
	}

	// Writing through the child must fault, copy, and diverge from the
	// parent's frame.
	if err := child.HandleFault(va, FaultWrite); err != 0 {
		t.Fatalf("HandleFault (child write): %v", err)
	}
	childPA2, _ := child.Resolve(va)
	if childPA2 == parentPA {
		t.Fatal("expected the child's writable fault to allocate a private frame")
	}
	if frames.Refcount(parentPA) != 1 {
		t.Fatalf("expected parent's frame refcount to drop back to 1, got %d", frames.Refcount(parentPA))
	}
}
