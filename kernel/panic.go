package kernel

import (
	"runtime"

	"x86kernel/cpu"
	"x86kernel/kfmt"
)

// cpuHaltFn is a seam over cpu.Halt so panic paths stay testable without a
// real processor, mirroring gopher-os's kernel/panic.go cpuHaltFn variable.
var cpuHaltFn = cpu.Halt

// Panic prints a formatted message and the calling goroutine's Go stack
// (the closest equivalent this hosted module has to biscuit's
// caller.Callerdump, which walks native return addresses a real kernel
// panic has no Go runtime to recover) before halting the CPU forever.
// Grounded on gopher-os's kernel/panic.go Panic function.
func Panic(format string, args ...interface{}) {
	kfmt.Printf("\n-----------------------------------\n")
	kfmt.Printf("kernel panic: "+format+"\n", args...)
	dumpStack()
	kfmt.Printf("-----------------------------------\n")

	cpu.DisableInterrupts()
	for {
		cpuHaltFn()
	}
}

// dumpStack prints the call stack leading to the panic, grounded on
// caller.Callerdump's frame-by-frame walk, adapted from runtime.Caller
// (native return addresses) to runtime.Callers/CallersFrames (Go stack
// frames), since this module runs hosted rather than freestanding.
func dumpStack() {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		kfmt.Printf("\t%s:%d\n", frame.Function, frame.Line)
		if !more {
			break
		}
	}
}
