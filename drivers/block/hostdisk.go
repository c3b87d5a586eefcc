package block

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// HostDisk is a Disk backend for the *build host*, not the kernel itself:
// cmd/mkfs runs as an ordinary userland Go program producing a disk image
// file, the same role biscuit's own cmd/mkfs plays against a loopback
// device. Reads and writes go straight through unix.Pread/Pwrite on a raw
// descriptor rather than Go's os.File, one whole block at a time. The
// descriptor is opened O_SYNC, not O_DIRECT, so the host's page cache still
// sits between these calls and the device.
type HostDisk struct {
	fd int
}

// OpenHostDisk opens path (a regular file or a loopback device node) for
// synchronous block I/O. O_SYNC ensures WriteSync's completion really means
// the data reached the backing store, matching the durability WriteSync
// promises its caller.
func OpenHostDisk(path string) (*HostDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_SYNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("block: open %s: %w", path, err)
	}
	return &HostDisk{fd: fd}, nil
}

// Close releases the underlying file descriptor.
func (h *HostDisk) Close() error {
	return unix.Close(h.fd)
}

// Start services req synchronously against the host file descriptor.
func (h *HostDisk) Start(req *Request) bool {
	ok := true
	req.Blks.Each(func(b *Block) {
		off := int64(b.Number) * Size
		switch req.Cmd {
		case CmdWrite:
			if _, err := unix.Pwrite(h.fd, b.Data[:], off); err != nil {
				ok = false
			}
		case CmdRead:
			if _, err := unix.Pread(h.fd, b.Data[:], off); err != nil {
				ok = false
			}
		case CmdFlush:
			if err := unix.Fsync(h.fd); err != nil {
				ok = false
			}
		}
	})
	if req.Sync {
		req.AckCh <- ok
	}
	return ok
}
