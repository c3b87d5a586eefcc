package proc

import (
	"x86kernel/defs"
	"x86kernel/ksync"
	"x86kernel/util"
	"x86kernel/vmm"
)

// Scheduler owns every PCB and the 16 per-priority ready queues. Grounded structurally on tinfo.Threadinfo_t's
// map-of-notes-behind-a-mutex, widened to carry the ready/blocked/zombie
// bookkeeping a real scheduler needs.
type Scheduler struct {
	lock ksync.Spinlock

	pids  *util.Bitmap
	procs map[defs.Pid_t]*PCB

	readyHead [defs.NumPriorities]*PCB
	readyTail [defs.NumPriorities]*PCB

	blockedHead *PCB
	blockedTail *PCB

	terminatedHead *PCB

	running *PCB

	systemTicks int64

	tickHist [defs.NumPriorities]int64
}

// maxPids bounds the PID bitmap; nothing fixes a process-table
// size, so this is a generous simulation limit rather than a load-bearing one.
const maxPids = 4096

// reapInterval is how many timer ticks elapse between reaper passes: the
// sweep that actually frees a terminated process's PID and address space.
const reapInterval = 100

// New creates an empty scheduler. Pid 0 is reserved and never handed out
// (defs.Pid_t's doc comment).
func New() *Scheduler {
	s := &Scheduler{
		pids:  util.NewBitmap(maxPids),
		procs: make(map[defs.Pid_t]*PCB),
	}
	s.pids.Set(0)
	return s
}

// Create allocates a PID and a new PCB in state Ready, owned by parent
// (nil for the first process), and enqueues it for scheduling.
func (s *Scheduler) Create(parent *PCB, as *vmm.AddressSpace, priority int) (*PCB, defs.Err_t) {
	if priority < 0 || priority >= defs.NumPriorities {
		return nil, -defs.EINVAL
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	pid := s.pids.FirstClear(0)
	if pid < 0 {
		return nil, -defs.EAGAIN
	}
	s.pids.Set(pid)

	p := &PCB{
		Pid:       defs.Pid_t(pid),
		Parent:    parent,
		State:     defs.StReady,
		Priority:  priority,
		sliceLeft: sliceFor(priority),
	}
	s.procs[p.Pid] = p
	if parent != nil {
		parent.Children = append(parent.Children, p)
	}
	s.enqueueReadyLocked(p)
	return p, 0
}

func (s *Scheduler) enqueueReadyLocked(p *PCB) {
	p.State = defs.StReady
	p.next = nil
	pr := p.Priority
	if s.readyTail[pr] == nil {
		s.readyHead[pr] = p
	} else {
		s.readyTail[pr].next = p
	}
	s.readyTail[pr] = p
}

// dequeueReadyLocked removes p from whichever ready queue it sits in. Used
// both by Schedule (dequeuing the head) and by priority-aging promotion
// (dequeuing an arbitrary element).
func (s *Scheduler) dequeueReadyLocked(p *PCB, pr int) {
	if s.readyHead[pr] == p {
		s.readyHead[pr] = p.next
		if s.readyHead[pr] == nil {
			s.readyTail[pr] = nil
		}
		p.next = nil
		return
	}
	cur := s.readyHead[pr]
	for cur != nil && cur.next != p {
		cur = cur.next
	}
	if cur == nil {
		return
	}
	cur.next = p.next
	if s.readyTail[pr] == p {
		s.readyTail[pr] = cur
	}
	p.next = nil
}

// Schedule picks the highest-priority non-empty ready queue and returns
// its head, transitioning it to Running. It returns nil if no
// process is ready to run (the idle condition).
func (s *Scheduler) Schedule() *PCB {
	s.lock.Lock()
	defer s.lock.Unlock()

	for pr := 0; pr < defs.NumPriorities; pr++ {
		p := s.readyHead[pr]
		if p == nil {
			continue
		}
		s.dequeueReadyLocked(p, pr)
		p.State = defs.StRunning
		p.waitTicks = 0
		s.running = p
		return p
	}
	s.running = nil
	return nil
}

// Current returns the process currently marked Running, or nil if the CPU
// is idle.
func (s *Scheduler) Current() *PCB {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

// Tick charges one timer tick to the running process, ages every process
// waiting in a ready queue, wakes any timed-block process whose timeout
// has elapsed, and every reapInterval ticks sweeps the terminated queue. It
// reports whether the running process's quantum has expired and a fresh
// call to Schedule is needed; the timer interrupt handler is expected to
// call Tick and, on true, Schedule.
func (s *Scheduler) Tick() (needReschedule bool) {
	s.lock.Lock()

	s.systemTicks++
	s.ageReadyLocked()
	s.wakeBlockedLocked()

	var reaped []*PCB
	if s.systemTicks%reapInterval == 0 {
		reaped = s.drainTerminatedLocked()
	}

	if s.running == nil {
		s.lock.Unlock()
		s.reap(reaped)
		return false
	}
	s.tickHist[s.running.Priority]++
	s.running.sliceLeft--
	if s.running.sliceLeft > 0 {
		s.lock.Unlock()
		s.reap(reaped)
		return false
	}
	// Quantum exhausted: demote one priority level (clamped at the lowest)
	// and hand it a fresh slice at the new priority. A process that yields
	// with ticks still left on its slice, the branch above, keeps its
	// priority untouched.
	p := s.running
	s.running = nil
	if p.Priority < defs.NumPriorities-1 {
		p.Priority++
	}
	p.sliceLeft = sliceFor(p.Priority)
	s.enqueueReadyLocked(p)
	s.lock.Unlock()
	s.reap(reaped)
	return true
}

// ageReadyLocked promotes any ready process that has waited at least
// agingThreshold ticks without running, preventing starvation of
// low-priority work. Promotion moves the process to the
// next-higher priority's queue tail and resets its wait counter.
func (s *Scheduler) ageReadyLocked() {
	for pr := defs.NumPriorities - 1; pr > 0; pr-- {
		var next *PCB
		for p := s.readyHead[pr]; p != nil; p = next {
			next = p.next
			p.waitTicks++
			if p.waitTicks < agingThreshold {
				continue
			}
			s.dequeueReadyLocked(p, pr)
			p.Priority--
			p.waitTicks = 0
			s.enqueueReadyLocked(p)
		}
	}
}

// Block removes p from scheduling contention, e.g. because it is waiting
// on I/O or a syscall condition, and places it on the blocked queue. If
// waitTicks is positive, p is also the timeout primitive: Tick wakes it
// automatically once waitTicks ticks have passed, even with no matching
// Unblock call. A waitTicks of 0 blocks p indefinitely, until some other
// caller invokes Unblock. If p is the running process, the caller must
// still invoke Schedule to pick a replacement.
func (s *Scheduler) Block(p *PCB, waitTicks int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.running == p {
		s.running = nil
	} else if p.State == defs.StReady {
		s.dequeueReadyLocked(p, p.Priority)
	}
	p.State = defs.StBlocked
	if waitTicks > 0 {
		p.wakeupTime = s.systemTicks + int64(waitTicks)
	} else {
		p.wakeupTime = 0
	}
	s.enqueueBlockedLocked(p)
}

func (s *Scheduler) enqueueBlockedLocked(p *PCB) {
	p.next = nil
	if s.blockedTail == nil {
		s.blockedHead = p
	} else {
		s.blockedTail.next = p
	}
	s.blockedTail = p
}

// dequeueBlockedLocked removes p from the blocked queue. A no-op if p is
// not presently on it.
func (s *Scheduler) dequeueBlockedLocked(p *PCB) {
	if s.blockedHead == p {
		s.blockedHead = p.next
		if s.blockedHead == nil {
			s.blockedTail = nil
		}
		p.next = nil
		return
	}
	cur := s.blockedHead
	for cur != nil && cur.next != p {
		cur = cur.next
	}
	if cur == nil {
		return
	}
	cur.next = p.next
	if s.blockedTail == p {
		s.blockedTail = cur
	}
	p.next = nil
}

// wakeBlockedLocked walks the blocked queue and returns to the ready queue
// every process whose timed block has expired (wakeupTime nonzero and at
// or before the current tick count). Indefinitely blocked processes
// (wakeupTime == 0) are left untouched; only an explicit Unblock moves them.
func (s *Scheduler) wakeBlockedLocked() {
	var next *PCB
	for p := s.blockedHead; p != nil; p = next {
		next = p.next
		if p.wakeupTime != 0 && p.wakeupTime <= s.systemTicks {
			s.dequeueBlockedLocked(p)
			p.wakeupTime = 0
			p.sliceLeft = sliceFor(p.Priority)
			s.enqueueReadyLocked(p)
		}
	}
}

// Unblock returns a previously blocked process to its priority's ready
// queue ahead of any timeout it was given.
func (s *Scheduler) Unblock(p *PCB) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if p.State != defs.StBlocked && p.State != defs.StWaiting {
		return
	}
	s.dequeueBlockedLocked(p)
	p.wakeupTime = 0
	p.sliceLeft = sliceFor(p.Priority)
	s.enqueueReadyLocked(p)
}

// Terminate marks p Terminated, wakes anyone blocked in Wait for it, and
// moves it onto the terminated queue. Releasing its PID and address space
// is deferred to the next reaper pass rather than done here, so that a
// process terminating itself (the common sysExit path, where p is still
// s.running at the point of the call) does not have its own stack and
// address space torn down while it is still executing on them; the reaper
// only runs after Tick has had a chance to context-switch away. Children
// are not reparented: this kernel has no init-style process-tree repair,
// so a terminated parent simply leaves its children permanently un-reaped.
func (s *Scheduler) Terminate(p *PCB, status int) {
	s.lock.Lock()
	if s.running == p {
		s.running = nil
	} else if p.State == defs.StReady {
		s.dequeueReadyLocked(p, p.Priority)
	} else if p.State == defs.StBlocked {
		s.dequeueBlockedLocked(p)
	}
	p.State = defs.StTerminated
	p.ExitStatus = status
	waiters := p.waiters
	p.waiters = nil

	p.next = s.terminatedHead
	s.terminatedHead = p

	s.lock.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// drainTerminatedLocked detaches the entire terminated queue and returns it
// as a slice, ready for the caller to reap once the scheduler lock is
// released.
func (s *Scheduler) drainTerminatedLocked() []*PCB {
	var procs []*PCB
	for p := s.terminatedHead; p != nil; {
		next := p.next
		p.next = nil
		procs = append(procs, p)
		p = next
	}
	s.terminatedHead = nil
	return procs
}

// reap frees the PID and address space of every process drained from the
// terminated queue. Called with the scheduler lock NOT held, since
// AddrSpace.Destroy can do real teardown work that has no business running
// under the scheduler spinlock.
func (s *Scheduler) reap(procs []*PCB) {
	for _, p := range procs {
		s.lock.Lock()
		s.pids.Clear(int(p.Pid))
		s.lock.Unlock()
		if p.AddrSpace != nil {
			p.AddrSpace.Destroy()
		}
	}
}

// Wait blocks parent until one of its children terminates, then removes
// and returns that child. It returns
// -defs.ECHILD-equivalent (ESRCH, since this kernel defines no ECHILD) if
// parent has no children at all.
func (s *Scheduler) Wait(parent *PCB) (*PCB, defs.Err_t) {
	s.lock.Lock()
	if len(parent.Children) == 0 {
		s.lock.Unlock()
		return nil, -defs.ESRCH
	}
	for i, c := range parent.Children {
		if c.State == defs.StTerminated {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			s.lock.Unlock()
			delete(s.procs, c.Pid)
			return c, 0
		}
	}
	ch := make(chan struct{})
	// Register on whichever child terminates first; since termination
	// fires every waiter, the first wake re-scans Children above under a
	// fresh lock acquisition by the caller if needed. Simplicity over
	// precision: wait4-style target-pid
	// selection.
	target := parent.Children[0]
	target.waiters = append(target.waiters, ch)
	s.lock.Unlock()

	<-ch

	s.lock.Lock()
	defer s.lock.Unlock()
	for i, c := range parent.Children {
		if c.State == defs.StTerminated {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			delete(s.procs, c.Pid)
			return c, 0
		}
	}
	return nil, -defs.ESRCH
}

// TickHistogram returns the number of timer ticks each priority level's
// running process has ever been charged, the sample data the /dev/prof
// devfs node encodes as a pprof.Profile.
func (s *Scheduler) TickHistogram() [defs.NumPriorities]int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tickHist
}

// Lookup returns the PCB for pid, or nil.
func (s *Scheduler) Lookup(pid defs.Pid_t) *PCB {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.procs[pid]
}
