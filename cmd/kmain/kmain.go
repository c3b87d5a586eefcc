// Command kmain is the kernel entrypoint: rt0 assembly (not part of this
// tree — see cpu's bodyless asm functions for the same boundary) sets up a
// minimal stack and the initial GDT, then jumps here with the multiboot
// magic/info values the bootloader left in EAX/EBX.
//
// Grounded on gopher-os's kernel/kmain package: Kmain is the only Go symbol
// visible from the assembly init code, is never expected to return, and
// calls into the hosting package (there, `kernel`; here, x86kernel/kernel)
// to run the hard init sequence before entering the idle loop.
package main

import (
	"x86kernel/cpu"
	"x86kernel/kernel"
)

// Kmain is invoked by the rt0 trampoline with the multiboot magic value and
// the physical address of the multiboot info structure, exactly as
// gopher-os's Kmain receives multibootInfoPtr. cmd/chentry patches the
// produced ELF binary's entry point to the assembly symbol that calls this
// function after establishing the Go runtime's minimal bootstrap stack.
//
//go:noinline
func Kmain(multibootMagic uint32, multibootInfo uintptr) {
	k := kernel.Boot(multibootMagic, multibootInfo)

	// The idle loop: with no process ready, Schedule returns nil and the
	// timer interrupt handler (installed by kernel.Boot) is the only thing
	// that ever runs again. irq.Dispatch is reached only through the
	// trampoline assembly's interrupt gates, not by any call in this loop.
	for {
		if p := k.Sched.Schedule(); p != nil && p.AddrSpace != nil {
			cpu.WriteCR3(p.AddrSpace.SwitchTo())
		}
		cpu.Halt()
	}
}

func main() {
	// Unreachable under go test/go build for a hosted binary: this module
	// never runs as a freestanding kernel image outside real boot, where
	// rt0 assembly calls Kmain directly and never falls through to main.
}
