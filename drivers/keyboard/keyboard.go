// Package keyboard implements the PS/2 keyboard driver: scancode-set-1
// decoding with shift/ctrl modifier tracking, buffered through a fixed
// ring buffer an IRQ1 handler feeds and a reader (the console or a TTY
// line discipline) drains.
//
// Grounded on biscuit's circbuf/circbuf.go — the same head/tail modulo
// index scheme and Full/Empty/Left/Used accessors — simplified from
// circbuf's page-backed, Userio_i-targeting design (meant for buffers
// that can be mapped into a user page) to a small fixed-size byte array,
// since a keyboard's input rate never approaches the point where this
// kernel's in-process allocator would be a bottleneck.
package keyboard

import "x86kernel/cpu"

const bufSize = 256

// Ring is a fixed-capacity byte ring buffer.
type Ring struct {
	buf  [bufSize]byte
	head int
	tail int
}

func (r *Ring) Full() bool  { return r.head-r.tail == bufSize }
func (r *Ring) Empty() bool { return r.head == r.tail }
func (r *Ring) Used() int   { return r.head - r.tail }
func (r *Ring) Left() int   { return bufSize - r.Used() }

// Push appends b, dropping it silently if the buffer is full.
func (r *Ring) Push(b byte) {
	if r.Full() {
		return
	}
	r.buf[r.head%bufSize] = b
	r.head++
}

// Pop removes and returns the oldest byte, or ok=false if empty.
func (r *Ring) Pop() (b byte, ok bool) {
	if r.Empty() {
		return 0, false
	}
	b = r.buf[r.tail%bufSize]
	r.tail++
	return b, true
}

// Data port the PS/2 controller exposes scancodes on.
const dataPort = 0x60

// Modifier bits tracked across scancode-set-1 make/break pairs.
const (
	modShift = 1 << iota
	modCtrl
)

// Driver decodes scancode-set-1 bytes into ASCII and buffers the result.
type Driver struct {
	ring      Ring
	modifiers uint8
}

// scancodeASCII maps scancode-set-1 make codes to their unshifted ASCII
// value for the US layout; 0 marks a code with no direct ASCII mapping
// (cursor keys, function keys, and the like, out of scope per this driver's
// shell Non-goals).
var scancodeASCII = [0x3a]byte{
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0a: '9', 0x0b: '0',
	0x0c: '-', 0x0d: '=', 0x0e: '\b',
	0x0f: '\t',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
	0x1c: '\n',
	0x1e: 'a', 0x1f: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',
	0x2c: 'z', 0x2d: 'x', 0x2e: 'c', 0x2f: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm',
	0x39: ' ',
}

var scancodeASCIIShift = map[byte]byte{
	0x02: '!', 0x03: '@', 0x04: '#', 0x05: '$', 0x06: '%',
	0x07: '^', 0x08: '&', 0x09: '*', 0x0a: '(', 0x0b: ')',
}

const (
	scLeftShift  = 0x2a
	scRightShift = 0x36
	scLeftCtrl   = 0x1d
	scBreakBit   = 0x80
)

// HandleIRQ1 is registered as the IRQ1 handler: it reads one scancode from
// the controller, updates modifier state, and pushes the decoded ASCII
// byte (if any) into the ring buffer.
func (d *Driver) HandleIRQ1() {
	sc := cpu.Inb(dataPort)
	isMake := sc&scBreakBit == 0
	code := sc &^ scBreakBit

	switch code {
	case scLeftShift, scRightShift:
		if isMake {
			d.modifiers |= modShift
		} else {
			d.modifiers &^= modShift
		}
		return
	case scLeftCtrl:
		if isMake {
			d.modifiers |= modCtrl
		} else {
			d.modifiers &^= modCtrl
		}
		return
	}
	if !isMake {
		return
	}

	if int(code) >= len(scancodeASCII) {
		return
	}
	ch := scancodeASCII[code]
	if ch == 0 {
		return
	}
	if d.modifiers&modShift != 0 {
		if shifted, ok := scancodeASCIIShift[code]; ok {
			ch = shifted
		} else if ch >= 'a' && ch <= 'z' {
			ch = ch - 'a' + 'A'
		}
	}
	if d.modifiers&modCtrl != 0 && ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 1 // control character
	}
	d.ring.Push(ch)
}

// Read drains up to len(p) decoded bytes into p, returning the count read.
func (d *Driver) Read(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := d.ring.Pop()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}
