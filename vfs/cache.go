package vfs

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"x86kernel/defs"
	"x86kernel/ustr"
)

// inodeCache caches resolved inodes keyed by absolute path, so repeated
// open() calls against a hot file skip re-walking the mount table and
// filesystem plug-in's Lookup. Grounded on biscuit's hashtable package
// (a bucket map behind a lock, read-mostly), simplified to a single
// RWMutex since this kernel targets one CPU rather than biscuit's
// per-bucket sharding.
type inodeCache struct {
	mu    sync.RWMutex
	byKey map[string]Inode

	// group collapses concurrent misses for the same path onto one
	// filesystem Lookup call, for the case where two processes open() the
	// same cold file on the same tick.
	group singleflight.Group
}

func newInodeCache() *inodeCache {
	return &inodeCache{byKey: make(map[string]Inode)}
}

// get returns the cached inode for key, or calls miss to resolve and cache
// it if this is the first request for key (or the cache was invalidated).
func (c *inodeCache) get(key string, miss func() (Inode, defs.Err_t)) (Inode, defs.Err_t) {
	c.mu.RLock()
	if ino, ok := c.byKey[key]; ok {
		c.mu.RUnlock()
		return ino, 0
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		ino, kerr := miss()
		if kerr != 0 {
			return nil, kerr
		}
		c.mu.Lock()
		c.byKey[key] = ino
		c.mu.Unlock()
		return ino, nil
	})
	if err != nil {
		return nil, err.(defs.Err_t)
	}
	return v.(Inode), 0
}

// forget evicts every key at or under prefix, used by Mount and Unmount so
// a stale inode from a replaced, shadowed or unmounted filesystem is never
// served again.
func (c *inodeCache) forget(prefix ustr.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.byKey {
		if ustr.MkPath(k).HasPrefix(prefix) {
			delete(c.byKey, k)
		}
	}
}
