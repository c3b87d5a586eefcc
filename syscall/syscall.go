// Package syscall is the kernel's system-call plane: a table of handlers
// indexed by defs.SYS_* and invoked from the int 0x80 vector installed in
// irq's dispatch table. Grounded structurally on irq.go's
// vector-indexed Register/Dispatch idiom, narrowed here to a fixed array
// since the syscall number space (defs.SYS_COUNT) is small and known at
// compile time; argument marshaling follows original_source's
// syscall_handler table (kernel/syscall/syscall.c), reduced from its
// per-process file-descriptor-table lookup to this module's proc.PCB.Fds.
package syscall

import (
	"x86kernel/defs"
	"x86kernel/irq"
	"x86kernel/proc"
	"x86kernel/ustr"
	"x86kernel/vfs"
	"x86kernel/vmm"
)

// Args carries a syscall's raw arguments, which Dispatch (the int 0x80
// handler) reads out of the trap frame's general-purpose registers before
// calling the table entry. Argument order follows the frame's register
// layout: EBX, ECX, EDX, ESI, EDI.
type Args struct {
	A0, A1, A2, A3, A4 uint32
}

// handler services one syscall number for the current process, returning
// the value to place back in EAX.
type handler func(p *proc.PCB, a Args) int

var table [defs.SYS_COUNT]handler

// Plane bundles the subsystems syscall handlers need to reach: the
// scheduler (for getpid/yield/fork/waitpid), the global mount table (for
// open), and the page-fault/mmap path already lives on proc.PCB.AddrSpace.
// Grounded on biscuit's pattern of closing syscalls over *Sched_t / *Vfs
// package-level state rather than threading them through every call.
type Plane struct {
	Sched *proc.Scheduler
	Root  *vfs.VFS
}

// New wires every syscall table entry against the given kernel singletons
// and returns a Plane ready to dispatch.
func New(sched *proc.Scheduler, root *vfs.VFS) *Plane {
	pl := &Plane{Sched: sched, Root: root}
	table[defs.SYS_EXIT] = pl.sysExit
	table[defs.SYS_READ] = pl.sysRead
	table[defs.SYS_WRITE] = pl.sysWrite
	table[defs.SYS_OPEN] = pl.sysOpen
	table[defs.SYS_CLOSE] = pl.sysClose
	table[defs.SYS_IOCTL] = pl.sysIoctl
	table[defs.SYS_GETPID] = pl.sysGetpid
	table[defs.SYS_YIELD] = pl.sysYield
	table[defs.SYS_MMAP] = pl.sysMmap
	table[defs.SYS_MUNMAP] = pl.sysMunmap
	table[defs.SYS_WAITPID] = pl.sysWaitpid

	// fork/execve/sbrk remain unimplemented stubs, returning -defs.EINVAL
	// rather than fabricating address-space cloning or ELF loading this
	// kernel does not otherwise describe.
	table[defs.SYS_FORK] = pl.sysStub
	table[defs.SYS_EXECVE] = pl.sysStub
	table[defs.SYS_SBRK] = pl.sysStub
	return pl
}

// Dispatch is the int 0x80 handler installed on irq.VecSyscall. EAX on
// entry carries the syscall number; EBX-EDI carry up to five arguments;
// the return value is written back into EAX.
func (pl *Plane) Dispatch(f *irq.Frame) {
	num := defs.Err_t(f.EAX)
	if num < 0 || num >= defs.SYS_COUNT || table[num] == nil {
		f.EAX = uint32(int32(-defs.EINVAL))
		return
	}
	p := pl.Sched.Current()
	a := Args{A0: f.EBX, A1: f.ECX, A2: f.EDX, A3: f.ESI, A4: f.EDI}
	ret := table[num](p, a)
	f.EAX = uint32(int32(ret))
}

func (pl *Plane) sysStub(p *proc.PCB, a Args) int {
	return int(-defs.EINVAL)
}

func (pl *Plane) sysExit(p *proc.PCB, a Args) int {
	if p == nil {
		return int(-defs.ESRCH)
	}
	pl.Sched.Terminate(p, int(int32(a.A0)))
	return 0
}

func (pl *Plane) sysGetpid(p *proc.PCB, a Args) int {
	if p == nil {
		return int(-defs.ESRCH)
	}
	return int(p.Pid)
}

func (pl *Plane) sysYield(p *proc.PCB, a Args) int {
	// Returns 0 without rescheduling: Dispatch hands the same frame back,
	// and the caller keeps running until timerTrampoline's Tick reports
	// an expired quantum.
	return 0
}

func (pl *Plane) sysWaitpid(p *proc.PCB, a Args) int {
	if p == nil {
		return int(-defs.ESRCH)
	}
	child, err := pl.Sched.Wait(p)
	if err != 0 {
		return int(err)
	}
	return int(child.Pid)
}

func (pl *Plane) sysOpen(p *proc.PCB, a Args) int {
	if p == nil {
		return int(-defs.ESRCH)
	}
	path, ok := userPath(p, a.A0)
	if !ok {
		return int(-defs.EFAULT)
	}
	inode, err := pl.Root.Open(path)
	if err != 0 {
		return int(err)
	}
	f := vfs.NewFile(inode, int(a.A1))
	for i := range p.Fds {
		if p.Fds[i] == nil {
			p.Fds[i] = f
			return i
		}
	}
	return int(-defs.EMFILE)
}

func (pl *Plane) sysClose(p *proc.PCB, a Args) int {
	if p == nil {
		return int(-defs.ESRCH)
	}
	fd := int(a.A0)
	if fd < 0 || fd >= defs.MaxFDs || p.Fds[fd] == nil {
		return int(-defs.EBADF)
	}
	err := p.Fds[fd].Close()
	p.Fds[fd] = nil
	return int(err)
}

// sysRead reads into a kernel-side buffer and copies the result out to the
// user buffer at a.A1 via K2User.
func (pl *Plane) sysRead(p *proc.PCB, a Args) int {
	f, ok := openFile(p, int(a.A0))
	if !ok {
		return int(-defs.EBADF)
	}
	buf := make([]byte, a.A2)
	n, err := f.Read(buf)
	if err != 0 {
		return int(err)
	}
	if n > 0 {
		if cerr := p.AddrSpace.K2User(buf[:n], a.A1); cerr != 0 {
			return int(cerr)
		}
	}
	return n
}

func (pl *Plane) sysWrite(p *proc.PCB, a Args) int {
	f, ok := openFile(p, int(a.A0))
	if !ok {
		return int(-defs.EBADF)
	}
	buf := make([]byte, a.A2)
	if err := p.AddrSpace.User2K(buf, a.A1); err != 0 {
		return int(err)
	}
	n, err := f.Write(buf)
	if err != 0 {
		return int(err)
	}
	return n
}

func (pl *Plane) sysIoctl(p *proc.PCB, a Args) int {
	f, ok := openFile(p, int(a.A0))
	if !ok {
		return int(-defs.EBADF)
	}
	n, err := f.Inode.Ioctl(uint(a.A1), uintptr(a.A2))
	if err != 0 {
		return int(err)
	}
	return n
}

// sysMmap implements an anonymous reservation: MAP_ANONYMOUS requests an
// eagerly-zeroed region via AddressSpace.MapPages, anything else a
// lazily-populated one via AllocatePages relying on demand-fault handling.
// Neither case attaches a file backing, so lazily-populated pages fault in
// zero-filled.
func (pl *Plane) sysMmap(p *proc.PCB, a Args) int {
	if p == nil || p.AddrSpace == nil {
		return int(-defs.ESRCH)
	}
	start, length := a.A0, a.A1
	perm := mmapPerm(int(a.A2))
	flags := int(a.A3)
	var err defs.Err_t
	if flags&defs.MAP_ANONYMOUS != 0 {
		err = p.AddrSpace.MapPages(start, length, perm)
	} else {
		err = p.AddrSpace.AllocatePages(start, length, perm)
	}
	if err != 0 {
		return int(err)
	}
	return int(start)
}

func (pl *Plane) sysMunmap(p *proc.PCB, a Args) int {
	if p == nil || p.AddrSpace == nil {
		return int(-defs.ESRCH)
	}
	p.AddrSpace.FreePages(a.A0, a.A1)
	return 0
}

func mmapPerm(prot int) vmm.Perm_t {
	var perm vmm.Perm_t
	if prot&defs.PROT_READ != 0 {
		perm |= vmm.PermRead
	}
	if prot&defs.PROT_WRITE != 0 {
		perm |= vmm.PermWrite
	}
	if prot&defs.PROT_EXEC != 0 {
		perm |= vmm.PermExec
	}
	return perm
}

func openFile(p *proc.PCB, fd int) (*vfs.File, bool) {
	if p == nil || fd < 0 || fd >= defs.MaxFDs || p.Fds[fd] == nil {
		return nil, false
	}
	f, ok := p.Fds[fd].(*vfs.File)
	return f, ok
}

// maxPathLen bounds a user-supplied path string. A path with no NUL in its
// first maxPathLen bytes is rejected like an unreadable one (sysOpen
// returns -defs.EFAULT, not ENAMETOOLONG).
const maxPathLen = 256

// userPath copies a NUL-terminated path string out of p's address space
// starting at uva: one User2K call copies exactly maxPathLen bytes, so the
// whole window must be mapped, and the string is cut at its first NUL.
func userPath(p *proc.PCB, uva uint32) (ustr.Path, bool) {
	if p.AddrSpace == nil {
		return nil, false
	}
	buf := make([]byte, maxPathLen)
	if err := p.AddrSpace.User2K(buf, uva); err != 0 {
		return nil, false
	}
	for i, b := range buf {
		if b == 0 {
			return ustr.MkPath(string(buf[:i])), true
		}
	}
	return nil, false
}
