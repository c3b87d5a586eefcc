package vfs

import (
	"x86kernel/defs"
	"x86kernel/ksync"
)

// File is an open file description: an Inode plus the cursor and flags
// that are independent per-open (not per-Inode), the FD table entry
// the VFS describes. It implements proc.FD so a PCB can store File
// values directly in its Fds array without proc depending on vfs.
type File struct {
	lock   ksync.Spinlock
	Inode  Inode
	offset int64
	flags  int
}

// NewFile wraps an Inode as a freshly opened File at offset 0.
func NewFile(inode Inode, flags int) *File {
	return &File{Inode: inode, flags: flags}
}

// Read reads into buf starting at the file's current offset and advances
// it by the number of bytes actually read.
func (f *File) Read(buf []byte) (int, defs.Err_t) {
	f.lock.Lock()
	defer f.lock.Unlock()
	n, err := f.Inode.Read(buf, f.offset)
	if err != 0 {
		return 0, err
	}
	f.offset += int64(n)
	return n, 0
}

// Write writes buf at the file's current offset (or, in append mode, at
// the end of the underlying inode) and advances the offset by the number
// of bytes written.
func (f *File) Write(buf []byte) (int, defs.Err_t) {
	f.lock.Lock()
	defer f.lock.Unlock()
	off := f.offset
	if f.flags&defs.O_APPEND != 0 {
		off = f.Inode.Stat().Size
	}
	n, err := f.Inode.Write(buf, off)
	if err != 0 {
		return 0, err
	}
	f.offset = off + int64(n)
	return n, 0
}

// Seek repositions the file's cursor to offset and returns the new
// position.
func (f *File) Seek(offset int64) int64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.offset = offset
	return f.offset
}

// Close satisfies proc.FD. Closing a File has no side effect beyond
// releasing the caller's reference: the VFS does not reference-count
// Inodes.
func (f *File) Close() defs.Err_t {
	return 0
}

// Table is a fixed-size, per-process file descriptor table.
type Table struct {
	lock ksync.Spinlock
	fds  [defs.MaxFDs]*File
}

// Install places f in the lowest-numbered free slot and returns its
// descriptor number, or -defs.EMFILE if the table is full.
func (t *Table) Install(f *File) (int, defs.Err_t) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i := range t.fds {
		if t.fds[i] == nil {
			t.fds[i] = f
			return i, 0
		}
	}
	return -1, -defs.EMFILE
}

// Get returns the File at descriptor fd, or ok=false if fd is out of range
// or unused.
func (t *Table) Get(fd int) (*File, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		return nil, false
	}
	return t.fds[fd], true
}

// Close removes the File at fd, returning -defs.EBADF if it was not open.
func (t *Table) Close(fd int) defs.Err_t {
	t.lock.Lock()
	defer t.lock.Unlock()
	if fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		return -defs.EBADF
	}
	err := t.fds[fd].Close()
	t.fds[fd] = nil
	return err
}
