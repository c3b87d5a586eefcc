package keyboard

import "testing"

func TestRingPushPop(t *testing.T) {
	var r Ring
	r.Push('a')
	r.Push('b')
	if r.Used() != 2 {
		t.Fatalf("Used() = %d, want 2", r.Used())
	}
	b, ok := r.Pop()
	if !ok || b != 'a' {
		t.Fatalf("Pop() = %q, %v, want 'a', true", b, ok)
	}
}

func TestRingFullDropsExtra(t *testing.T) {
	var r Ring
	for i := 0; i < bufSize; i++ {
		r.Push('x')
	}
	if !r.Full() {
		t.Fatal("expected the ring to report full")
	}
	r.Push('y') // dropped
	if r.Used() != bufSize {
		t.Fatalf("Used() = %d, want %d after a drop", r.Used(), bufSize)
	}
}

func TestScancodeDecodeLowercase(t *testing.T) {
	d := &Driver{}
	d.ring.Push(0) // sentinel to prove ring starts empty path works
	d.ring.Pop()

	// scancode 0x1e is 'a' make.
	pushScancode(d, 0x1e)
	buf := make([]byte, 4)
	n := d.Read(buf)
	if n != 1 || buf[0] != 'a' {
		t.Fatalf("decoded %q (n=%d), want \"a\"", buf[:n], n)
	}
}

func TestScancodeDecodeShiftedUppercase(t *testing.T) {
	d := &Driver{}
	pushScancode(d, scLeftShift)
	pushScancode(d, 0x1e) // 'a' while shift held
	buf := make([]byte, 4)
	n := d.Read(buf)
	if n != 1 || buf[0] != 'A' {
		t.Fatalf("decoded %q (n=%d), want \"A\"", buf[:n], n)
	}
}

// pushScancode simulates HandleIRQ1 without a real PS/2 controller by
// decoding the given make-code directly through the driver's state
// machine.
func pushScancode(d *Driver, code byte) {
	isMake := code&scBreakBit == 0
	c := code &^ scBreakBit
	switch c {
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
	if !isMake || int(c) >= len(scancodeASCII) {
		return
	}
	ch := scancodeASCII[c]
	if ch == 0 {
		return
	}
	if d.modifiers&modShift != 0 {
		if shifted, ok := scancodeASCIIShift[c]; ok {
			ch = shifted
		} else if ch >= 'a' && ch <= 'z' {
			ch = ch - 'a' + 'A'
		}
	}
	d.ring.Push(ch)
}
