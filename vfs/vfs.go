// Package vfs implements the virtual filesystem layer: a mount table
// resolved by longest-prefix match, per-process file descriptors, and a
// small file-operations vtable every mounted filesystem and device
// implements. Grounded on biscuit's fs package
// (Superblock_t's field-accessor style for on-disk structures informs
// Stat's layout) and, for the longest-prefix mount resolution itself, on
// ustr.Path's component-aware HasPrefix this module added specifically
// for that purpose (see ustr/ustr.go's doc comment).
package vfs

import (
	"x86kernel/defs"
	"x86kernel/ksync"
	"x86kernel/ustr"
)

// Stat mirrors the subset of struct stat this kernel's syscall plane
// exposes.
type Stat struct {
	Dev   uint
	Inode uint64
	Size  int64
	IsDir bool
}

// Inode is implemented by every filesystem and device node the VFS can
// route I/O to.
type Inode interface {
	Read(buf []byte, off int64) (int, defs.Err_t)
	Write(buf []byte, off int64) (int, defs.Err_t)
	Stat() Stat
	// Ioctl services device-specific control requests; filesystems that
	// are not devices return -defs.ENOTSUP.
	Ioctl(req uint, arg uintptr) (int, defs.Err_t)
}

// FileSystem resolves a path relative to its own root into an Inode
//.
type FileSystem interface {
	Lookup(path ustr.Path) (Inode, defs.Err_t)
}

// mountEntry pairs a FileSystem with the absolute path it is mounted at.
type mountEntry struct {
	prefix ustr.Path
	fs     FileSystem
}

// VFS is the global mount table.
type VFS struct {
	lock   ksync.Spinlock
	mounts []mountEntry
	cache  *inodeCache
}

// New returns an empty VFS; callers mount the root filesystem immediately
// afterward.
func New() *VFS {
	return &VFS{cache: newInodeCache()}
}

// Mount installs fs at prefix. Mounting the same prefix twice replaces the
// previous filesystem.
func (v *VFS) Mount(prefix ustr.Path, fs FileSystem) {
	v.lock.Lock()
	defer v.lock.Unlock()
	for i, m := range v.mounts {
		if m.prefix.Eq(prefix) {
			v.mounts[i].fs = fs
			v.cache.forget(prefix)
			return
		}
	}
	v.mounts = append(v.mounts, mountEntry{prefix: prefix, fs: fs})
	v.cache.forget(prefix)
}

// Unmount removes the filesystem mounted at prefix, if any, and drops any
// inode this VFS had cached from beneath it.
func (v *VFS) Unmount(prefix ustr.Path) {
	v.lock.Lock()
	defer v.lock.Unlock()
	for i, m := range v.mounts {
		if m.prefix.Eq(prefix) {
			v.mounts = append(v.mounts[:i], v.mounts[i+1:]...)
			v.cache.forget(prefix)
			return
		}
	}
}

// Resolve finds the filesystem mounted at the longest prefix of path and
// returns it together with the path remaining after that prefix is
// stripped. The longest-matching mount prefix is the
// literal case of two mounts "/" and "/mnt" where a lookup of "/mnt/x"
// must pick "/mnt", not "/".
func (v *VFS) Resolve(path ustr.Path) (FileSystem, ustr.Path, defs.Err_t) {
	v.lock.Lock()
	defer v.lock.Unlock()

	var best *mountEntry
	for i := range v.mounts {
		m := &v.mounts[i]
		if !path.HasPrefix(m.prefix) {
			continue
		}
		if best == nil || len(m.prefix) > len(best.prefix) {
			best = m
		}
	}
	if best == nil {
		return nil, nil, -defs.ENOENT
	}
	return best.fs, path.TrimPrefix(best.prefix), 0
}

// Open resolves path and looks up its Inode through the owning
// filesystem, serving a cached inode for a path this VFS
// has already resolved and collapsing concurrent misses for the same cold
// path onto a single filesystem Lookup call.
func (v *VFS) Open(path ustr.Path) (Inode, defs.Err_t) {
	return v.cache.get(path.String(), func() (Inode, defs.Err_t) {
		fs, rel, err := v.Resolve(path)
		if err != 0 {
			return nil, err
		}
		return fs.Lookup(rel)
	})
}
