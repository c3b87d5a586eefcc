package block

// MemDisk is an in-memory Disk backend used by tests to exercise the block
// layer without real hardware; cmd/mkfs writes through HostDisk instead.
type MemDisk struct {
	blocks map[int]*[Size]byte
}

// NewMemDisk returns an empty MemDisk.
func NewMemDisk() *MemDisk {
	return &MemDisk{blocks: make(map[int]*[Size]byte)}
}

// Start services req synchronously and always succeeds.
func (m *MemDisk) Start(req *Request) bool {
	req.Blks.Each(func(b *Block) {
		switch req.Cmd {
		case CmdWrite:
			data := b.Data
			m.blocks[b.Number] = &data
		case CmdRead:
			if d, ok := m.blocks[b.Number]; ok {
				b.Data = *d
			} else {
				b.Data = [Size]byte{}
			}
		}
	})
	if req.Sync {
		req.AckCh <- true
	}
	return true
}
