// Package irq implements interrupt dispatch: the IDT contents, the 8259
// PIC remap/EOI protocol, and the vector-to-handler routing table the
// syscall and scheduler packages register into. Grounded
// on gopher-os's kernel/gate package (HandleInterrupt/dispatchInterrupt
// routing a CPU-pushed vector number to a registered Go func(*Registers)),
// adapted from amd64's IDT-gate-per-vector assembly trampolines down to
// the 32-bit IDTGate layout in the cpu package, and from gopher-os's APIC
// assumption to the 8259 PIC's own remap contract: "This
// specification targets the legacy 8259 PIC, not the APIC."
package irq

import "x86kernel/cpu"

// PIC I/O ports (master 0x20/0x21, slave 0xA0/0xA1).
const (
	picMasterCmd  = 0x20
	picMasterData = 0x21
	picSlaveCmd   = 0xA0
	picSlaveData  = 0xA1

	icw1Init = 0x11 // edge triggered, cascade, ICW4 needed
	icw4_8086 = 0x01

	picEOI = 0x20
)

// Remap reprograms the PIC so hardware IRQs 0-15 land on vectors
// [offset1, offset1+8) and [offset2, offset2+8), moving them out of the
// CPU exception range 0-31.
func Remap(offset1, offset2 uint8) {
	cpu.Outb(picMasterCmd, icw1Init)
	cpu.IOWait()
	cpu.Outb(picSlaveCmd, icw1Init)
	cpu.IOWait()

	cpu.Outb(picMasterData, offset1)
	cpu.IOWait()
	cpu.Outb(picSlaveData, offset2)
	cpu.IOWait()

	cpu.Outb(picMasterData, 4) // tell master PIC there's a slave at IRQ2
	cpu.IOWait()
	cpu.Outb(picSlaveData, 2) // tell slave PIC its cascade identity
	cpu.IOWait()

	cpu.Outb(picMasterData, icw4_8086)
	cpu.IOWait()
	cpu.Outb(picSlaveData, icw4_8086)
	cpu.IOWait()

	cpu.Outb(picMasterData, 0) // unmask everything; drivers mask selectively
	cpu.Outb(picSlaveData, 0)
}

// EOI sends end-of-interrupt for a hardware IRQ line, addressing the slave
// PIC too when irq >= 8.
func EOI(irqLine uint8) {
	if irqLine >= 8 {
		cpu.Outb(picSlaveCmd, picEOI)
	}
	cpu.Outb(picMasterCmd, picEOI)
}

// Mask/Unmask set or clear a single IRQ line's bit in the PIC's interrupt
// mask register, used by drivers that want to disable their line
// temporarily.
func Mask(irqLine uint8) {
	port, bit := picDataPort(irqLine)
	v := cpu.Inb(port)
	cpu.Outb(port, v|bit)
}

func Unmask(irqLine uint8) {
	port, bit := picDataPort(irqLine)
	v := cpu.Inb(port)
	cpu.Outb(port, v&^bit)
}

func picDataPort(irqLine uint8) (port uint16, bit uint8) {
	if irqLine >= 8 {
		return picSlaveData, 1 << (irqLine - 8)
	}
	return picMasterData, 1 << irqLine
}
