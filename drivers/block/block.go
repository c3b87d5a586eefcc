// Package block implements the block-device request queue and the disk
// driver seam the VFS reads/writes through, grounded directly on
// biscuit's fs/blk.go: the same Bdev_block_t/BlkList_t/Disk_i shapes,
// narrowed to this kernel's synchronous-block-cache needs and renamed out
// of the fs package since this module keeps the block layer and
// the VFS as separate collaborators.
package block

import "container/list"

// Size is the fixed block size in bytes.
const Size = 4096

// Cmd enumerates disk request types.
type Cmd uint

const (
	CmdRead Cmd = iota + 1
	CmdWrite
	CmdFlush
)

// Block is one cached disk block.
type Block struct {
	Number int
	Data   [Size]byte
	Dirty  bool
}

// List wraps container/list for a FIFO of pending blocks, mirroring
// biscuit's BlkList_t (itself a thin container/list.List wrapper) since
// biscuit's own retrieval pack used the standard library for exactly this
// purpose rather than hand-rolling a linked list.
type List struct {
	l *list.List
}

// NewList returns an empty block list.
func NewList() *List {
	return &List{l: list.New()}
}

// Len returns the number of blocks queued.
func (bl *List) Len() int { return bl.l.Len() }

// PushBack appends b to the list.
func (bl *List) PushBack(b *Block) { bl.l.PushBack(b) }

// Each calls f for every block in the list, front to back.
func (bl *List) Each(f func(*Block)) {
	for e := bl.l.Front(); e != nil; e = e.Next() {
		f(e.Value.(*Block))
	}
}

// Request describes one disk I/O request.
type Request struct {
	Cmd   Cmd
	Blks  *List
	AckCh chan bool
	Sync  bool
}

// NewRequest allocates a request for the given blocks.
func NewRequest(blks *List, cmd Cmd, sync bool) *Request {
	return &Request{Blks: blks, Cmd: cmd, Sync: sync, AckCh: make(chan bool, 1)}
}

// Disk is implemented by a concrete storage backend (an ATA/AHCI driver on
// real hardware; an in-memory backing array in tests). Start returns false
// if the request could not even be queued.
type Disk interface {
	Start(*Request) bool
}

// WriteSync writes b to disk and waits for completion.
func WriteSync(d Disk, b *Block) {
	l := NewList()
	l.PushBack(b)
	req := NewRequest(l, CmdWrite, true)
	if d.Start(req) {
		<-req.AckCh
	}
	b.Dirty = false
}

// WriteAsync queues b for write-back without waiting, per the VFS's
// "writes may be deferred and batched" allowance.
func WriteAsync(d Disk, b *Block) {
	l := NewList()
	l.PushBack(b)
	req := NewRequest(l, CmdWrite, false)
	d.Start(req)
}

// ReadSync reads block number into b and waits for completion.
func ReadSync(d Disk, b *Block) {
	l := NewList()
	l.PushBack(b)
	req := NewRequest(l, CmdRead, true)
	if d.Start(req) {
		<-req.AckCh
	}
}
