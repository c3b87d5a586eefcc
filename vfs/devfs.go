package vfs

import (
	"bytes"
	"strconv"

	"github.com/google/pprof/profile"

	"x86kernel/defs"
	"x86kernel/drivers/console"
	"x86kernel/drivers/keyboard"
	"x86kernel/proc"
	"x86kernel/ustr"
)

// DevFS is the device filesystem conventionally mounted at /dev: a flat
// namespace mapping a device name to a fixed Inode.
// Grounded on defs/device.go's Mkdev/Unmkdev major/minor scheme, which
// this filesystem's Stat.Dev field reports verbatim.
type DevFS struct {
	nodes map[string]Inode
}

// NewDevFS wires the console and keyboard drivers, plus the scheduler's
// accounting and tick-histogram device nodes, into a fresh /dev filesystem.
// sched may be nil in tests that never open /dev/stat or /dev/prof.
func NewDevFS(con *console.Console, kbd *keyboard.Driver, sched *proc.Scheduler) *DevFS {
	d := &DevFS{nodes: make(map[string]Inode)}
	d.nodes["console"] = &consoleNode{con: con}
	d.nodes["keyboard"] = &keyboardNode{kbd: kbd}
	d.nodes["null"] = &nullNode{}
	d.nodes["stat"] = &statNode{sched: sched}
	d.nodes["prof"] = &profNode{sched: sched}
	return d
}

// Lookup implements FileSystem. DevFS paths are a single component: a
// lookup of "/name" (after the /dev mount prefix is stripped) returns that
// device's Inode.
func (d *DevFS) Lookup(path ustr.Path) (Inode, defs.Err_t) {
	name := path.String()
	for len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	n, ok := d.nodes[name]
	if !ok {
		return nil, -defs.ENOENT
	}
	return n, 0
}

type consoleNode struct {
	con *console.Console
}

func (c *consoleNode) Read(buf []byte, off int64) (int, defs.Err_t) {
	return 0, -defs.ENOTSUP // the console is write-only
}

func (c *consoleNode) Write(buf []byte, off int64) (int, defs.Err_t) {
	n, _ := c.con.Write(buf)
	return n, 0
}

func (c *consoleNode) Stat() Stat {
	return Stat{Dev: defs.Mkdev(defs.D_CONSOLE, 0)}
}

func (c *consoleNode) Ioctl(req uint, arg uintptr) (int, defs.Err_t) {
	return 0, -defs.ENOTSUP
}

type keyboardNode struct {
	kbd *keyboard.Driver
}

func (k *keyboardNode) Read(buf []byte, off int64) (int, defs.Err_t) {
	return k.kbd.Read(buf), 0
}

func (k *keyboardNode) Write(buf []byte, off int64) (int, defs.Err_t) {
	return 0, -defs.ENOTSUP
}

func (k *keyboardNode) Stat() Stat {
	return Stat{Dev: defs.Mkdev(defs.D_KEYBOARD, 0)}
}

func (k *keyboardNode) Ioctl(req uint, arg uintptr) (int, defs.Err_t) {
	return 0, -defs.ENOTSUP
}

// nullNode implements /dev/null: reads return EOF, writes are discarded
// and report full success.
type nullNode struct{}

func (nullNode) Read(buf []byte, off int64) (int, defs.Err_t)  { return 0, 0 }
func (nullNode) Write(buf []byte, off int64) (int, defs.Err_t) { return len(buf), 0 }
func (nullNode) Stat() Stat                                    { return Stat{Dev: defs.Mkdev(defs.D_DEVNULL, 0)} }
func (nullNode) Ioctl(req uint, arg uintptr) (int, defs.Err_t) { return 0, -defs.ENOTSUP }

// statNode implements /dev/stat: a read returns the calling process's
// accnt.Accnt_t rusage snapshot, the same byte layout a getrusage syscall
// would copy to userspace.
type statNode struct {
	sched *proc.Scheduler
}

func (s *statNode) Read(buf []byte, off int64) (int, defs.Err_t) {
	if s.sched == nil {
		return 0, -defs.ENOTSUP
	}
	p := s.sched.Current()
	if p == nil {
		return 0, -defs.ESRCH
	}
	ru := p.Accnt.Fetch()
	if off >= int64(len(ru)) {
		return 0, 0
	}
	return copy(buf, ru[off:]), 0
}

func (s *statNode) Write(buf []byte, off int64) (int, defs.Err_t) { return 0, -defs.ENOTSUP }
func (s *statNode) Stat() Stat                                    { return Stat{Dev: defs.Mkdev(defs.D_STAT, 0)} }
func (s *statNode) Ioctl(req uint, arg uintptr) (int, defs.Err_t) { return 0, -defs.ENOTSUP }

// profNode implements /dev/prof: a read serializes the scheduler's
// per-priority tick histogram as a gzipped pprof.Profile, so a host-side
// `go tool pprof` can load and render it like any other Go CPU profile.
type profNode struct {
	sched *proc.Scheduler

	built bool
	wire  []byte
}

func (n *profNode) Read(buf []byte, off int64) (int, defs.Err_t) {
	if n.sched == nil {
		return 0, -defs.ENOTSUP
	}
	if !n.built {
		w, err := n.encode()
		if err != 0 {
			return 0, err
		}
		n.wire, n.built = w, true
	}
	if off >= int64(len(n.wire)) {
		return 0, 0
	}
	return copy(buf, n.wire[off:]), 0
}

func (n *profNode) encode() ([]byte, defs.Err_t) {
	hist := n.sched.TickHistogram()
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "ticks", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "priority", Unit: "level"},
		Period:     1,
	}
	for pr, count := range hist {
		if count == 0 {
			continue
		}
		prof.Sample = append(prof.Sample, &profile.Sample{
			Value: []int64{count},
			Label: map[string][]string{"priority": {strconv.Itoa(pr)}},
		})
	}
	var buf bytes.Buffer
	if err := prof.Write(&buf); err != nil {
		return nil, -defs.EIO
	}
	return buf.Bytes(), 0
}

func (n *profNode) Write(buf []byte, off int64) (int, defs.Err_t) { return 0, -defs.ENOTSUP }
func (n *profNode) Stat() Stat                                    { return Stat{Dev: defs.Mkdev(defs.D_PROF, 0)} }
func (n *profNode) Ioctl(req uint, arg uintptr) (int, defs.Err_t) { return 0, -defs.ENOTSUP }
