package shell

import (
	"testing"

	"x86kernel/defs"
	"x86kernel/drivers/console"
	"x86kernel/drivers/keyboard"
	"x86kernel/pmm"
	"x86kernel/proc"
	"x86kernel/syscall"
	"x86kernel/ustr"
	"x86kernel/vfs"
	"x86kernel/vmm"
)

func newTestShellPlane(t *testing.T) (pl *syscall.Plane, p *proc.PCB, pathVA, lineVA uint32) {
	t.Helper()
	frames := pmm.Init(pmm.PageSize, 64*pmm.PageSize)
	as, err := vmm.CreateAddressSpace(frames)
	if err != 0 {
		t.Fatalf("CreateAddressSpace: %v", err)
	}
	const base = 0x10000
	if err := as.MapPages(base, uint32(pmm.PageSize), vmm.PermRead|vmm.PermWrite); err != 0 {
		t.Fatalf("MapPages: %v", err)
	}

	sched := proc.New()
	pcb, err := sched.Create(nil, as, 8)
	if err != 0 {
		t.Fatalf("Create: %v", err)
	}
	sched.Schedule() // make pcb the running process so Plane.Dispatch's Current() finds it

	root := vfs.New()
	root.Mount(ustr.Root(), vfs.NewDevFS(console.New(), &keyboard.Driver{}, sched))

	return syscall.New(sched, root), pcb, base, base + 0x100
}

func TestLoopWiresStandardDescriptorsInOrder(t *testing.T) {
	pl, p, pathVA, lineVA := newTestShellPlane(t)

	for i := range p.Fds {
		p.Fds[i] = nil
	}

	if err := wireFD(pl, p, pathVA, "/keyboard", fdStdin, defs.O_RDONLY); err != 0 {
		t.Fatalf("wireFD stdin: %v", err)
	}
	if err := wireFD(pl, p, pathVA, "/console", fdStdout, defs.O_WRONLY); err != 0 {
		t.Fatalf("wireFD stdout: %v", err)
	}
	if err := wireFD(pl, p, pathVA, "/console", fdStderr, defs.O_WRONLY); err != 0 {
		t.Fatalf("wireFD stderr: %v", err)
	}

	for _, fd := range []int{fdStdin, fdStdout, fdStderr} {
		if p.Fds[fd] == nil {
			t.Fatalf("fd %d was not wired", fd)
		}
	}
	_ = lineVA
}

func TestLoopReturnsCleanlyOnEmptyKeyboard(t *testing.T) {
	pl, p, pathVA, lineVA := newTestShellPlane(t)

	// The keyboard device's Read returns whatever bytes are queued; an
	// empty queue yields n == 0, which Loop treats as EOF and returns
	// cleanly rather than spinning.
	err := Loop(pl, p, pathVA, lineVA, 64)
	if err != 0 {
		t.Fatalf("Loop: %v", err)
	}
}
