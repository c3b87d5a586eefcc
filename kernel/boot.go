// Package kernel is the top-level assembly: it owns the boot-order
// construction of every subsystem singleton and the panic/fatal-error
// path, grounded on gopher-os's kernel/kmain.go (the entrypoint that wires
// hal.InitTerminal, IDT setup, and so on in a fixed sequence) and
// kernel/panic.go. Hard init order: GDT/IDT and the PIC must
// be live before anything can fault or interrupt; the heap must exist
// before any subsystem that allocates (the scheduler's PCBs, the VFS's
// mount table entries); the frame allocator and VMM must exist before a
// process's first address space is created; the scheduler must exist
// before the first process is; drivers and the VFS mount table come last,
// since they are consumed by user-visible syscalls only.
package kernel

import (
	"golang.org/x/sync/errgroup"

	"x86kernel/boot"
	"x86kernel/cpu"
	"x86kernel/drivers/console"
	"x86kernel/drivers/keyboard"
	"x86kernel/heap"
	"x86kernel/irq"
	"x86kernel/pmm"
	"x86kernel/proc"
	"x86kernel/syscall"
	"x86kernel/ustr"
	"x86kernel/vfs"
	"x86kernel/vmm"
)

// reservedLowMemory is the byte range below 16MiB this kernel's own image
// and the BIOS occupy; the frame allocator is handed only the memory above
// it.
const reservedLowMemory = 16 * 1024 * 1024

// kernelHeapSize sizes the fixed backing arena heap.New carves size classes
// and large-arena chunks out of. Nothing pins this value; chosen
// generously enough that E3's two-2000-byte-allocation scenario and the
// size-class refill tests never exhaust it during normal operation.
const kernelHeapSize = 4 * 1024 * 1024

// Kernel bundles every booted subsystem singleton, returned by Boot so
// cmd/kmain can reach them (timer tick wiring, the keyboard IRQ1 handler,
// and so on) without package-level globals outside this package.
type Kernel struct {
	Frames   *pmm.Allocator
	Heap     *heap.Heap
	Sched    *proc.Scheduler
	Root     *vfs.VFS
	Syscalls *syscall.Plane
	Console  *console.Console
	Keyboard *keyboard.Driver
}

var kernelHeapArena [kernelHeapSize]byte

// Boot performs the hard init sequence and returns the assembled Kernel.
// multibootMagic/multibootInfo are the values the bootloader left in
// EAX/EBX at entry, passed through from cmd/kmain's
// assembly-provided entrypoint arguments.
func Boot(multibootMagic uint32, multibootInfo uintptr) *Kernel {
	InitGDT()
	irq.Init(SelKernCode)
	irq.Register(irq.VecPageFault, pageFaultTrampoline)

	info, ok := boot.Parse(multibootMagic, multibootInfo)
	var upperBytes uint64 = 64 * 1024 * 1024 // fallback if multiboot info is absent/unreliable
	if ok && info.HasMemInfo() {
		upperBytes = info.UpperMemoryBytes()
	}
	var managedBytes uint64
	if upperBytes > reservedLowMemory {
		managedBytes = upperBytes - reservedLowMemory
	}
	frames := pmm.Init(reservedLowMemory, managedBytes)

	kheap := heap.New(kernelHeapArena[:])

	vmm.SetInvalidate(cpu.InvlPG)

	// Run the three freshly-built allocators' self-checks concurrently and
	// halt on the first failure, rather than trusting each in turn: a bad
	// frame allocator would otherwise surface as a baffling page-fault deep
	// into scheduler or VFS setup instead of here.
	var probes errgroup.Group
	probes.Go(frames.SelfCheck)
	probes.Go(kheap.SelfCheck)
	probes.Go(func() error { return vmm.SelfCheck(frames) })
	if err := probes.Wait(); err != nil {
		Panic("startup self-check failed: %v", err)
	}

	sched := proc.New()

	con := console.New()
	con.Clear()
	kbd := &keyboard.Driver{}
	irq.Register(irq.VecKeyboard, func(f *irq.Frame) { kbd.HandleIRQ1() })

	root := vfs.New()
	root.Mount(ustr.Root(), vfs.NewDevFS(con, kbd, sched))

	plane := syscall.New(sched, root)
	irq.Register(irq.VecSyscall, plane.Dispatch)
	irq.Register(irq.VecTimer, timerTrampoline(sched))

	currentScheduler = sched

	k := &Kernel{
		Frames:   frames,
		Heap:     kheap,
		Sched:    sched,
		Root:     root,
		Syscalls: plane,
		Console:  con,
		Keyboard: kbd,
	}
	return k
}

// timerTrampoline adapts proc.Scheduler.Tick to an irq.Handler, calling
// Schedule and switching address spaces only when the quantum actually
// expired.
func timerTrampoline(sched *proc.Scheduler) irq.Handler {
	return func(f *irq.Frame) {
		if !sched.Tick() {
			return
		}
		next := sched.Schedule()
		if next == nil {
			return
		}
		if next.AddrSpace != nil {
			cpu.WriteCR3(next.AddrSpace.SwitchTo())
		}
	}
}

// pageFaultTrampoline adapts vmm.AddressSpace.HandleFault to an
// irq.Handler: CR2 holds the faulting address, the trap frame's ErrCode the
// CPU error code.
func pageFaultTrampoline(f *irq.Frame) {
	sched := currentScheduler
	if sched == nil {
		Panic("page fault with no scheduler installed")
	}
	p := sched.Current()
	if p == nil || p.AddrSpace == nil {
		Panic("page fault (addr=%#x) outside any process", cpu.ReadCR2())
	}
	va := cpu.ReadCR2()
	if err := p.AddrSpace.HandleFault(va, f.ErrCode); err != 0 {
		sched.Terminate(p, int(err))
	}
}

// currentScheduler lets pageFaultTrampoline reach the scheduler without
// threading it through irq.Handler's fixed signature; set by Boot.
var currentScheduler *proc.Scheduler
