package vfs

import (
	"testing"

	"x86kernel/defs"
	"x86kernel/drivers/console"
	"x86kernel/drivers/keyboard"
	"x86kernel/pmm"
	"x86kernel/proc"
	"x86kernel/ustr"
	"x86kernel/vmm"
)

// tagFS is a trivial FileSystem whose Lookup always succeeds, returning an
// Inode that remembers which mount answered it. Used to verify which
// mount's Lookup a resolution reached, without a real on-disk filesystem.
type tagFS struct{ tag string }

type tagInode struct{ tag, path string }

func (f *tagFS) Lookup(path ustr.Path) (Inode, defs.Err_t) {
	return &tagInode{tag: f.tag, path: path.String()}, 0
}
func (n *tagInode) Read(buf []byte, off int64) (int, defs.Err_t)  { return 0, 0 }
func (n *tagInode) Write(buf []byte, off int64) (int, defs.Err_t) { return len(buf), 0 }
func (n *tagInode) Stat() Stat                                    { return Stat{} }
func (n *tagInode) Ioctl(req uint, arg uintptr) (int, defs.Err_t) { return 0, -defs.ENOTSUP }

// TestE8LongestPrefixMatch covers mounts at "/"
// and "/mnt" resolve a lookup of "/mnt/x" to the "/mnt" mount, not "/".
func TestE8LongestPrefixMatch(t *testing.T) {
	v := New()
	v.Mount(ustr.Root(), &tagFS{tag: "root"})
	v.Mount(ustr.MkPath("/mnt"), &tagFS{tag: "mnt"})

	inode, err := v.Open(ustr.MkPath("/mnt/x"))
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	got := inode.(*tagInode)
	if got.tag != "mnt" {
		t.Fatalf("resolved to mount %q, want \"mnt\"", got.tag)
	}
	if got.path != "/x" {
		t.Fatalf("stripped path = %q, want \"/x\"", got.path)
	}
}

func TestResolveFallsBackToRoot(t *testing.T) {
	v := New()
	v.Mount(ustr.Root(), &tagFS{tag: "root"})
	v.Mount(ustr.MkPath("/mnt"), &tagFS{tag: "mnt"})

	inode, err := v.Open(ustr.MkPath("/etc/passwd"))
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	if got := inode.(*tagInode).tag; got != "root" {
		t.Fatalf("resolved to mount %q, want \"root\"", got)
	}
}

func TestResolveWithNoMountsIsENOENT(t *testing.T) {
	v := New()
	if _, _, err := v.Resolve(ustr.MkPath("/x")); err != -defs.ENOENT {
		t.Fatalf("err = %v, want ENOENT", err)
	}
}

func TestDevNullDiscardsWritesAndReadsEOF(t *testing.T) {
	v := New()
	d := NewDevFS(console.New(), &keyboard.Driver{}, nil)
	v.Mount(ustr.MkPath("/dev"), d)

	inode, err := v.Open(ustr.MkPath("/dev/null"))
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	n, err := inode.Write([]byte("hello"), 0)
	if err != 0 || n != 5 {
		t.Fatalf("Write = %d, %v, want 5, nil", n, err)
	}
	buf := make([]byte, 10)
	n, err = inode.Read(buf, 0)
	if err != 0 || n != 0 {
		t.Fatalf("Read = %d, %v, want 0, nil (EOF)", n, err)
	}
}

func TestStatNodeReadsCurrentProcessAccounting(t *testing.T) {
	sched := proc.New()
	frames := pmm.Init(pmm.PageSize, 8*pmm.PageSize)
	as, err := vmm.CreateAddressSpace(frames)
	if err != 0 {
		t.Fatalf("CreateAddressSpace: %v", err)
	}
	pcb, err := sched.Create(nil, as, 0)
	if err != 0 {
		t.Fatalf("Create: %v", err)
	}
	sched.Schedule()
	pcb.Accnt.Utadd(1000)

	v := New()
	v.Mount(ustr.MkPath("/dev"), NewDevFS(nil, nil, sched))
	inode, err := v.Open(ustr.MkPath("/dev/stat"))
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 32)
	n, err := inode.Read(buf, 0)
	if err != 0 || n != len(buf) {
		t.Fatalf("Read = %d, %v, want %d, nil", n, err, len(buf))
	}
}

func TestProfNodeEncodesTickHistogramAsPprofProfile(t *testing.T) {
	sched := proc.New()
	frames := pmm.Init(pmm.PageSize, 8*pmm.PageSize)
	as, err := vmm.CreateAddressSpace(frames)
	if err != 0 {
		t.Fatalf("CreateAddressSpace: %v", err)
	}
	if _, err := sched.Create(nil, as, 0); err != 0 {
		t.Fatalf("Create: %v", err)
	}
	sched.Schedule()
	sched.Tick()

	v := New()
	v.Mount(ustr.MkPath("/dev"), NewDevFS(nil, nil, sched))
	inode, err := v.Open(ustr.MkPath("/dev/prof"))
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 4096)
	n, err := inode.Read(buf, 0)
	if err != 0 || n == 0 {
		t.Fatalf("Read = %d, %v, want >0, nil", n, err)
	}
	// A gzip-compressed pprof profile starts with the gzip magic bytes.
	if buf[0] != 0x1f || buf[1] != 0x8b {
		t.Fatalf("prof output does not look gzip-encoded: %x %x", buf[0], buf[1])
	}
}

func TestFileTableInstallGetClose(t *testing.T) {
	var tbl Table
	f := NewFile(&tagInode{tag: "x"}, 0)
	fd, err := tbl.Install(f)
	if err != 0 {
		t.Fatalf("Install: %v", err)
	}
	if got, ok := tbl.Get(fd); !ok || got != f {
		t.Fatal("expected Get to return the installed file")
	}
	if err := tbl.Close(fd); err != 0 {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := tbl.Get(fd); ok {
		t.Fatal("expected the descriptor to be free after Close")
	}
}

func TestFileTableFullReturnsEMFILE(t *testing.T) {
	var tbl Table
	for i := 0; i < defs.MaxFDs; i++ {
		if _, err := tbl.Install(NewFile(&tagInode{}, 0)); err != 0 {
			t.Fatalf("Install %d: %v", i, err)
		}
	}
	if _, err := tbl.Install(NewFile(&tagInode{}, 0)); err != -defs.EMFILE {
		t.Fatalf("err = %v, want EMFILE", err)
	}
}

// appendInode tracks its own size so append-mode writes can be verified to
// always land at the inode's current end regardless of the file's cursor.
type appendInode struct {
	data []byte
}

func (n *appendInode) Read(buf []byte, off int64) (int, defs.Err_t) {
	if off >= int64(len(n.data)) {
		return 0, 0
	}
	c := copy(buf, n.data[off:])
	return c, 0
}
func (n *appendInode) Write(buf []byte, off int64) (int, defs.Err_t) {
	need := int(off) + len(buf)
	if need > len(n.data) {
		grown := make([]byte, need)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:], buf)
	return len(buf), 0
}
func (n *appendInode) Stat() Stat                                    { return Stat{Size: int64(len(n.data))} }
func (n *appendInode) Ioctl(req uint, arg uintptr) (int, defs.Err_t) { return 0, -defs.ENOTSUP }

func TestAppendModeIgnoresCursor(t *testing.T) {
	inode := &appendInode{data: []byte("hello")}
	f := NewFile(inode, defs.O_APPEND)
	f.Seek(0) // cursor at 0, but append mode should ignore it
	n, err := f.Write([]byte(" world"))
	if err != 0 || n != 6 {
		t.Fatalf("Write = %d, %v, want 6, nil", n, err)
	}
	if string(inode.data) != "hello world" {
		t.Fatalf("data = %q, want \"hello world\"", inode.data)
	}
}
