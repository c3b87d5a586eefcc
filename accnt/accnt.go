// Package accnt tracks per-process CPU usage, the resource-accounting
// supplement to the scheduler, which is itself silent on this but the
// original kernel always carried alongside a PCB.
//
// Grounded directly on biscuit's accnt/accnt.go (Accnt_t): the same
// atomic nanosecond counters, the same Io_time/Sleep_time subtraction
// trick for excluding blocked time from system time, and the same rusage
// byte encoding a getrusage-style syscall would copy out to userspace.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"x86kernel/util"
)

// Accnt_t accumulates one process's CPU usage. Userns/Sysns are
// nanoseconds; the embedded mutex lets Fetch take a consistent snapshot
// while Utadd/Systadd update concurrently from interrupt context.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd credits delta nanoseconds of user-mode execution.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

// Systadd credits delta nanoseconds of kernel-mode execution.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

// Now returns the current wall-clock time in nanoseconds.
func (a *Accnt_t) Now() int {
	return int(time.Now().UnixNano())
}

// Io_time backs out time spent blocked on I/O from the system-time
// counter, since that wait was charged to Sysns optimistically while the
// process was marked running.
func (a *Accnt_t) Io_time(since int) {
	d := a.Now() - since
	a.Systadd(-d)
}

// Sleep_time backs out time spent voluntarily blocked, same rationale as
// Io_time.
func (a *Accnt_t) Sleep_time(since int) {
	d := a.Now() - since
	a.Systadd(-d)
}

// Finish charges the time elapsed since inttime to system time; called
// when a syscall or interrupt handler returns to user mode.
func (a *Accnt_t) Finish(inttime int) {
	a.Systadd(a.Now() - inttime)
}

// Add merges n's counters into a, used when a terminated child's usage is
// folded into its parent.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
	a.Unlock()
}

// Fetch takes a consistent snapshot and encodes it as a rusage structure.
func (a *Accnt_t) Fetch() []uint8 {
	a.Lock()
	ru := a.toRusage()
	a.Unlock()
	return ru
}

// toRusage lays out two timeval pairs (user, then system), each a
// (seconds int64, microseconds int64) pair, the classic struct rusage
// prefix a getrusage syscall copies to userspace.
func (a *Accnt_t) toRusage() []uint8 {
	const words = 4
	ret := make([]uint8, words*8)
	totv := func(nano int64) (int, int) {
		secs := int(nano / 1e9)
		usecs := int((nano % 1e9) / 1000)
		return secs, usecs
	}
	off := 0
	s, us := totv(a.Userns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(a.Sysns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	return ret
}
