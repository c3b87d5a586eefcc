package proc

import (
	"testing"

	"x86kernel/defs"
)

func TestCreateAssignsIncreasingPids(t *testing.T) {
	s := New()
	p1, err := s.Create(nil, nil, 5)
	if err != 0 {
		t.Fatalf("Create: %v", err)
	}
	p2, _ := s.Create(nil, nil, 5)
	if p1.Pid == 0 || p2.Pid == 0 {
		t.Fatal("pid 0 must never be handed out")
	}
	if p1.Pid == p2.Pid {
		t.Fatal("expected distinct pids")
	}
}

// TestScheduleHighestPriorityFirst is the scheduler's core property: among
// ready processes, the lowest Priority value (highest urgency) always runs
// next.
func TestScheduleHighestPriorityFirst(t *testing.T) {
	s := New()
	low, _ := s.Create(nil, nil, 10)
	high, _ := s.Create(nil, nil, 2)

	got := s.Schedule()
	if got != high {
		t.Fatalf("Schedule() picked pid %d, want the higher-priority pid %d", got.Pid, high.Pid)
	}
	_ = low
}

func TestScheduleFIFOWithinPriority(t *testing.T) {
	s := New()
	a, _ := s.Create(nil, nil, 3)
	b, _ := s.Create(nil, nil, 3)

	if got := s.Schedule(); got != a {
		t.Fatalf("expected FIFO order within a priority level: got pid %d, want %d", got.Pid, a.Pid)
	}
	if got := s.Schedule(); got != b {
		t.Fatalf("expected FIFO order within a priority level: got pid %d, want %d", got.Pid, b.Pid)
	}
}

func TestSliceFormula(t *testing.T) {
	if got, want := sliceFor(0), defs.BaseSlice*defs.NumPriorities; got != want {
		t.Fatalf("sliceFor(0) = %d, want %d", got, want)
	}
	if got, want := sliceFor(defs.NumPriorities-1), defs.BaseSlice; got != want {
		t.Fatalf("sliceFor(15) = %d, want %d", got, want)
	}
}

// TestTickExpiresQuantumAndRequeues covers a running process whose slice
// reaches zero: it is requeued and Schedule picks up the next ready
// process. p and other both start at the lowest priority level, so
// demotion on quantum expiry is a no-op here (already clamped); see
// TestTickDemotesOnQuantumExpiry for the non-clamped case.
func TestTickExpiresQuantumAndRequeues(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, defs.NumPriorities-1) // shortest slice
	other, _ := s.Create(nil, nil, defs.NumPriorities-1)

	running := s.Schedule()
	if running != p {
		t.Fatalf("expected %d to run first", p.Pid)
	}

	for i := 0; i < defs.BaseSlice-1; i++ {
		if need := s.Tick(); need {
			t.Fatalf("quantum expired early at tick %d", i)
		}
	}
	if need := s.Tick(); !need {
		t.Fatal("expected the quantum to expire on the BaseSlice'th tick")
	}

	next := s.Schedule()
	if next != other {
		t.Fatalf("expected the other ready process %d to run next, got %d", other.Pid, next.Pid)
	}
}

// TestTickDemotesOnQuantumExpiry: a process created at priority 8 consumes
// its full 8*BaseSlice quantum and is demoted to priority 9 with a fresh
// 7*BaseSlice slice.
func TestTickDemotesOnQuantumExpiry(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, 8)

	if got := s.Schedule(); got != p {
		t.Fatal("expected p to run")
	}

	quantum := defs.BaseSlice * (defs.NumPriorities - 8)
	for i := 0; i < quantum; i++ {
		s.Tick()
	}

	if p.Priority != 9 {
		t.Fatalf("Priority = %d, want 9 after quantum exhaustion", p.Priority)
	}
	wantSlice := defs.BaseSlice * (defs.NumPriorities - 9)
	if p.sliceLeft != wantSlice {
		t.Fatalf("sliceLeft = %d, want %d", p.sliceLeft, wantSlice)
	}
}

// TestTickDemotionClampsAtLowestPriority ensures a process already at the
// lowest priority level is not pushed past it.
func TestTickDemotionClampsAtLowestPriority(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, defs.NumPriorities-1)
	s.Schedule()

	for i := 0; i < defs.BaseSlice; i++ {
		s.Tick()
	}

	if p.Priority != defs.NumPriorities-1 {
		t.Fatalf("Priority = %d, want it to stay clamped at %d", p.Priority, defs.NumPriorities-1)
	}
}

func TestAgingPromotesStarvedProcess(t *testing.T) {
	s := New()
	starved, _ := s.Create(nil, nil, defs.NumPriorities-1)
	// Keep a perpetually-ready higher-priority process so starved never
	// gets scheduled on its own.
	s.Create(nil, nil, 0)

	for i := 0; i < agingThreshold; i++ {
		s.Tick()
	}

	if starved.Priority >= defs.NumPriorities-1 {
		t.Fatalf("expected aging to promote the starved process, priority still %d", starved.Priority)
	}
}

func TestBlockUnblock(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, 5)
	s.Schedule()
	s.Block(p, 0)
	if p.State != defs.StBlocked {
		t.Fatalf("State = %v, want Blocked", p.State)
	}
	if got := s.Schedule(); got != nil {
		t.Fatal("expected no ready process while the only one is blocked")
	}
	s.Unblock(p)
	if got := s.Schedule(); got != p {
		t.Fatal("expected the unblocked process to become schedulable again")
	}
}

// TestBlockWithTimeoutWakesAfterWaitTicks exercises block's timeout
// primitive: a process blocked with a positive waitTicks returns to the
// ready queue on its own once enough ticks have passed, without any
// explicit Unblock call.
func TestBlockWithTimeoutWakesAfterWaitTicks(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, 5)
	s.Schedule()
	s.Block(p, 3)

	for i := 0; i < 2; i++ {
		s.Tick()
		if p.State != defs.StBlocked {
			t.Fatalf("tick %d: expected p to still be blocked", i)
		}
	}

	s.Tick()
	if p.State != defs.StReady {
		t.Fatalf("State = %v, want Ready after the timeout elapsed", p.State)
	}
	if got := s.Schedule(); got != p {
		t.Fatal("expected the timed-out process to become schedulable again")
	}
}

// TestBlockIndefinitelyIgnoresSystemTicks: a zero waitTicks never wakes on
// its own, regardless of how many ticks pass.
func TestBlockIndefinitelyIgnoresSystemTicks(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, 5)
	s.Schedule()
	s.Block(p, 0)

	for i := 0; i < 50; i++ {
		s.Tick()
	}
	if p.State != defs.StBlocked {
		t.Fatalf("State = %v, want an indefinitely blocked process to remain Blocked", p.State)
	}
}

func TestTerminateAndWait(t *testing.T) {
	s := New()
	parent, _ := s.Create(nil, nil, 5)
	child, _ := s.Create(parent, nil, 5)

	done := make(chan struct{})
	var got *PCB
	go func() {
		got, _ = s.Wait(parent)
		close(done)
	}()

	s.Terminate(child, 42)
	<-done

	if got != child {
		t.Fatal("expected Wait to return the terminated child")
	}
	if got.ExitStatus != 42 {
		t.Fatalf("ExitStatus = %d, want 42", got.ExitStatus)
	}
	if len(parent.Children) != 0 {
		t.Fatal("expected the reaped child to be removed from Children")
	}
}

// TestTerminateDefersReapToPeriodicSweep: a terminated process's PID stays
// reserved until the next reaper pass, not immediately on Terminate —
// otherwise a self-terminating process would risk having its own
// resources torn down while its exit path is still running on them.
func TestTerminateDefersReapToPeriodicSweep(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, 5)
	s.Schedule()
	s.Terminate(p, 0)

	if !s.pids.Test(int(p.Pid)) {
		t.Fatal("expected the terminated process's pid to remain reserved before the reaper runs")
	}

	for i := 0; i < reapInterval-1; i++ {
		s.Tick()
	}
	if !s.pids.Test(int(p.Pid)) {
		t.Fatal("pid was released before the reaper interval elapsed")
	}

	s.Tick()
	if s.pids.Test(int(p.Pid)) {
		t.Fatal("expected the reaper pass to release the terminated process's pid")
	}
}

func TestWaitWithNoChildrenIsError(t *testing.T) {
	s := New()
	p, _ := s.Create(nil, nil, 5)
	if _, err := s.Wait(p); err == 0 {
		t.Fatal("expected an error waiting with no children")
	}
}
