package irq

import (
	"unsafe"

	"x86kernel/cpu"
	"x86kernel/kfmt"
)

// NumVectors is the size of the IDT.
const NumVectors = 256

// Vector numbers this kernel cares about by name. IRQBase is where the PIC
// is remapped to land hardware interrupts.
const (
	VecPageFault = 14
	VecTimer     = 32 // IRQBase + IRQ0
	VecKeyboard  = 33 // IRQBase + IRQ1
	VecSyscall   = 0x80

	IRQBase = 32
)

// Frame is the register/stack snapshot an interrupt gate's trampoline
// assembles before calling into Go. Grounded on
// gopher-os's gate.Registers, narrowed from amd64's 64-bit GPRs to IA-32's
// eight.
type Frame struct {
	EDI, ESI, EBP, ESP, EBX, EDX, ECX, EAX uint32

	Vector   uint32
	ErrCode  uint32

	EIP, CS, EFlags uint32
	// UserESP/UserSS are only valid when the interrupt interrupted ring 3
	// (the CPU only pushes them on a privilege-level change).
	UserESP, UserSS uint32
}

// Handler processes one interrupt/exception/syscall trap.
type Handler func(*Frame)

var handlers [NumVectors]Handler

// Register installs h as the handler for vector. Registering over an
// existing handler replaces it; this is how kernel.Boot lays down the
// fixed dispatch table (CPU exceptions, the PIC IRQ lines, vector 0x80)
// during the hard init order this kernel requires.
func Register(vector uint8, h Handler) {
	handlers[vector] = h
}

// Dispatch is called by the architecture-specific trampoline (one per
// IDTGate, not included in this tree — see cpu.LoadIDT's doc comment) with
// the assembled Frame. It routes to the registered handler, logging and
// halting on an unhandled vector.
//
// Grounded on gopher-os's dispatchInterrupt, which performs the same
// vector-indexed lookup before invoking the Go-level handler.
func Dispatch(f *Frame) {
	h := handlers[f.Vector]
	if h == nil {
		kfmt.Printf("irq: unhandled vector %d (err=%#x eip=%#x)\n", f.Vector, f.ErrCode, f.EIP)
		cpu.DisableInterrupts()
		for {
			cpu.Halt()
		}
	}
	h(f)

	if f.Vector >= IRQBase && f.Vector < IRQBase+16 {
		EOI(uint8(f.Vector - IRQBase))
	}
}

// Init remaps the PIC and loads a fully populated (but mostly unhandled)
// IDT; callers register real handlers afterward via Register. Mirrors
// gopher-os's gate.Init (Init -> installIDT).
func Init(codeSelector uint16) {
	Remap(IRQBase, IRQBase+8)
	installIDT(codeSelector)
}

var idt [NumVectors]cpu.IDTGate

// installIDT populates every IDT slot with the common trampoline entry
// point and loads it via LGDT/LIDT-style descriptor. The trampoline
// address itself is architecture-specific assembly (see cpu.LoadIDT); here
// we only establish the Go-visible table shape the assembly consults.
func installIDT(codeSelector uint16) {
	for v := range idt {
		idt[v] = cpu.MkIDTGate(0, codeSelector, cpu.GateInterrupt, 0)
	}
	ptr := cpu.DescriptorTablePtr{
		Limit: uint16(len(idt)*8 - 1),
		Base:  uint32(uintptr(unsafe.Pointer(&idt[0]))),
	}
	cpu.LoadIDT(&ptr)
}
