// Package proc implements the preemptive, multi-level-priority process
// scheduler. Grounded on biscuit's structural idioms —
// tinfo.Threadinfo_t's map-of-notes-plus-mutex shape, and accnt.Accnt_t
// for per-process usage — but not on biscuit's actual scheduling code,
// which the retrieval pack does not carry (biscuit's Go runtime patch
// schedules goroutines directly; this kernel instead owns an explicit
// ready-queue scheduler, since a hosted Go module cannot
// reach into goroutine scheduling). tinfo.Current/SetCurrent use a
// runtime.Gptr hook only biscuit's patched runtime exposes; this package
// tracks the running PCB with an ordinary package-level variable instead,
// valid under the single-CPU model assumed throughout.
package proc

import (
	"x86kernel/accnt"
	"x86kernel/defs"
	"x86kernel/vmm"
)

// FD is a per-process open-file slot. The VFS package supplies concrete
// values; proc only stores and indexes them, to avoid a dependency cycle
// (vfs depends on proc for the current process, not the reverse).
type FD interface {
	Close() defs.Err_t
}

// PCB is a process control block.
type PCB struct {
	Pid      defs.Pid_t
	Parent   *PCB
	Children []*PCB

	State      defs.State_t
	Priority   int // 0 = highest priority, NumPriorities-1 = lowest
	waitTicks  int
	sliceLeft  int
	wakeupTime int64 // systemTicks value at which a timed Block wakes p; 0 = no timeout

	AddrSpace *vmm.AddressSpace
	Fds       [defs.MaxFDs]FD

	Accnt accnt.Accnt_t

	ExitStatus int
	waiters    []chan struct{}

	next *PCB // intrusive ready/wait queue link
}

// sliceFor returns the time-slice length, in ticks, for priority p:
// BaseSlice * (NumPriorities - p). Priority 0 therefore receives the longest quantum and
// priority 15 the shortest; the aging mechanism relies on this to keep
// promoted processes from monopolizing the CPU once boosted to priority 0.
func sliceFor(priority int) int {
	return defs.BaseSlice * (defs.NumPriorities - priority)
}

// agingThreshold is how many ticks a ready (not running) process may wait
// before the scheduler promotes it one priority level, per the aging
// anti-starvation requirement. Chosen as one full quantum at the highest
// priority level (priority 0, the longest slice), so no ready process
// waits longer than one priority-0 process's turn before being promoted.
const agingThreshold = defs.BaseSlice * defs.NumPriorities
