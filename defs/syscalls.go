package defs

// Syscall numbers. User code depends on these remaining stable; the
// table in the syscall package is indexed by these constants.
const (
	SYS_EXIT Err_t = iota
	SYS_READ
	SYS_WRITE
	SYS_OPEN
	SYS_CLOSE
	SYS_IOCTL
	SYS_FORK
	SYS_EXECVE
	SYS_WAITPID
	SYS_GETPID
	SYS_SBRK
	SYS_YIELD
	SYS_MMAP
	SYS_MUNMAP

	SYS_COUNT
)

// Open flags, as consulted by the VFS and mmap's file-backed/anonymous
// selection.
const (
	O_RDONLY int = 0
	O_WRONLY int = 1
	O_RDWR   int = 2
	O_CREAT  int = 0x40
	O_APPEND int = 0x400
)

// Mmap protection/flag bits, minimal enough to satisfy the syscall table's
// anonymous-vs-file-backed selection.
const (
	PROT_READ  int = 1
	PROT_WRITE int = 2
	PROT_EXEC  int = 4

	MAP_SHARED    int = 0x01
	MAP_PRIVATE   int = 0x02
	MAP_ANONYMOUS int = 0x20
)
