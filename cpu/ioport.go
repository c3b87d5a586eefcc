// Package cpu exposes the x86 primitives the rest of the kernel is built
// on: port I/O, segment/gate descriptor tables, the TSS, and control
// register access. Grounded on gopher-os's
// kernel/cpu/cpu_amd64.go, which declares these as function signatures
// with no Go body — the actual implementation is a tiny assembly stub
// assembled alongside the package, since port I/O and control-register
// access have no portable Go representation. This module follows the same
// convention: the declarations below are backed by architecture-specific
// assembly (not included in this tree, mirroring how gopher-os's own
// cpu_amd64.go ships without the corresponding .s file in most retrieval
// snapshots) and exist so the rest of the kernel has a stable Go-callable
// surface to program against and mock out in tests.
package cpu

// Outb writes a byte to the given I/O port.
func Outb(port uint16, val uint8)

// Inb reads a byte from the given I/O port.
func Inb(port uint16) uint8

// Outw writes a 16-bit word to the given I/O port.
func Outw(port uint16, val uint16)

// Inw reads a 16-bit word from the given I/O port.
func Inw(port uint16) uint16

// Outl writes a 32-bit long to the given I/O port.
func Outl(port uint16, val uint32)

// Inl reads a 32-bit long from the given I/O port.
func Inl(port uint16) uint32

// IOWait performs a short, architecturally meaningless I/O write (port
// 0x80) used to pace back-to-back port accesses on real hardware, mirrored
// from the idiom every x86 kernel written against raw ports uses after PIC
// reprogramming.
func IOWait() {
	Outb(0x80, 0)
}

// Ports is the IOPorts capability used by code that wants to mock port I/O
// in tests instead of linking the assembly stubs (e.g. the PIC driver and
// the ATA/AHCI block driver facade).
type Ports interface {
	Outb(port uint16, val uint8)
	Inb(port uint16) uint8
	Outw(port uint16, val uint16)
	Inw(port uint16) uint16
	Outl(port uint16, val uint32)
	Inl(port uint16) uint32
}

// hwPorts is the real, assembly-backed Ports implementation.
type hwPorts struct{}

func (hwPorts) Outb(port uint16, val uint8)  { Outb(port, val) }
func (hwPorts) Inb(port uint16) uint8        { return Inb(port) }
func (hwPorts) Outw(port uint16, val uint16) { Outw(port, val) }
func (hwPorts) Inw(port uint16) uint16       { return Inw(port) }
func (hwPorts) Outl(port uint16, val uint32) { Outl(port, val) }
func (hwPorts) Inl(port uint16) uint32       { return Inl(port) }

// HW is the singleton Ports implementation used outside of tests.
var HW Ports = hwPorts{}
