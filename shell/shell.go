// Package shell is the interface-only stand-in for the user-mode shell
// process. The command set itself is deliberately absent; this package is
// the interface boundary a real shell binary would cross, not a command
// interpreter. It demonstrates the contract such a binary would use —
// open(2)/read(2)/write(2) through the syscall plane — wiring FD 0/1/2
// itself, since nothing upstream pre-wires them for a new process.
package shell

import (
	"x86kernel/defs"
	"x86kernel/irq"
	"x86kernel/proc"
	"x86kernel/syscall"
)

// stdin/stdout/stderr are the fixed descriptor numbers a shell process
// wires up for itself on startup.
const (
	fdStdin  = 0
	fdStdout = 1
	fdStderr = 2
)

// Loop drives one process through the open/read/write syscall interface
// exactly as a real shell binary would from ring 3: it wires stdin to
// /keyboard and stdout/stderr to /console, then echoes whatever it
// reads from stdin back to stdout until a read returns zero bytes (EOF).
// pathVA/lineVA are scratch addresses in p's address space the caller has
// already mapped; Loop copies path strings and line data through them the
// same way a real process's libc would stage syscall arguments. p must
// already be pl.Sched's current process: Dispatch resolves "current" from
// the scheduler itself, not from the PCB passed here.
//
// This is deliberately not a command interpreter: Loop never parses what
// it echoes.
func Loop(pl *syscall.Plane, p *proc.PCB, pathVA, lineVA uint32, lineCap int) defs.Err_t {
	if err := wireFD(pl, p, pathVA, "/keyboard", fdStdin, defs.O_RDONLY); err != 0 {
		return err
	}
	if err := wireFD(pl, p, pathVA, "/console", fdStdout, defs.O_WRONLY); err != 0 {
		return err
	}
	if err := wireFD(pl, p, pathVA, "/console", fdStderr, defs.O_WRONLY); err != 0 {
		return err
	}

	for {
		n, err := doSyscall(pl, defs.SYS_READ, uint32(fdStdin), lineVA, uint32(lineCap), 0)
		if err != 0 {
			return err
		}
		if n == 0 {
			return 0
		}
		if _, err := doSyscall(pl, defs.SYS_WRITE, uint32(fdStdout), lineVA, uint32(n), 0); err != 0 {
			return err
		}
	}
}

// wireFD opens devName at a process-chosen fd, through the real syscall
// dispatch path (not a direct vfs.VFS call), so the fd lands in p.Fds
// exactly where a ring-3 open(2) would place it.
func wireFD(pl *syscall.Plane, p *proc.PCB, pathVA uint32, devName string, wantFd, flags int) defs.Err_t {
	if err := p.AddrSpace.K2User(append([]byte(devName), 0), pathVA); err != 0 {
		return err
	}
	got, err := doSyscall(pl, defs.SYS_OPEN, pathVA, uint32(flags), 0, 0)
	if err != 0 {
		return err
	}
	if int(got) != wantFd {
		// sysOpen hands out the lowest free slot; a shell process
		// with an otherwise-empty fd table always gets 0, 1, 2 in order.
		return -defs.EINVAL
	}
	return 0
}

// doSyscall builds a trap frame the way the syscall ABI expects (EAX the
// syscall number, EBX/ECX/EDX/ESI the first four arguments) and returns EAX
// reinterpreted as the signed result every syscall handler produces.
func doSyscall(pl *syscall.Plane, nr defs.Err_t, a0, a1, a2, a3 uint32) (int32, defs.Err_t) {
	f := &irq.Frame{EAX: uint32(nr), EBX: a0, ECX: a1, EDX: a2, ESI: a3}
	pl.Dispatch(f)
	ret := int32(f.EAX)
	if ret < 0 {
		return ret, defs.Err_t(ret)
	}
	return ret, 0
}
