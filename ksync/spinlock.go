// Package ksync provides the locking primitives the kernel's shared
// resources use, grounded on biscuit's convention of embedding
// sync.Mutex directly into owner structs (mem.Physmem_t, vm.Vm_t,
// accnt.Accnt_t all do this in biscuit).
package ksync

import "sync"

// Spinlock is the kernel's "test-and-set spinlock". On a
// hosted Go runtime a spinlock and a mutex are observationally the same
// primitive (both block the calling goroutine until the lock is free), so
// Spinlock is implemented in terms of sync.Mutex rather than a busy-wait
// loop — busy-waiting inside go test would burn a core per blocked
// goroutine for no benefit. The type is kept distinct from sync.Mutex so
// call sites read the way the original kernel describes them (class locks,
// the large-arena lock, the per-device lock), and to carry the TryLock and
// WithLock helpers.
type Spinlock struct {
	mu sync.Mutex
}

// Lock acquires the spinlock, blocking until it is available.
func (s *Spinlock) Lock() { s.mu.Lock() }

// Unlock releases the spinlock.
func (s *Spinlock) Unlock() { s.mu.Unlock() }

// TryLock attempts to acquire the spinlock without blocking.
func (s *Spinlock) TryLock() bool { return s.mu.TryLock() }

// WithLock runs f with the spinlock held.
func (s *Spinlock) WithLock(f func()) {
	s.Lock()
	defer s.Unlock()
	f()
}
