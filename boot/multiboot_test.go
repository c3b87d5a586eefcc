package boot

import (
	"testing"
	"unsafe"
)

func TestParseRejectsBadMagic(t *testing.T) {
	var raw Info
	if _, ok := Parse(0xdeadbeef, uintptr(unsafe.Pointer(&raw))); ok {
		t.Fatal("expected Parse to reject a bad magic number")
	}
}

func TestParseUpperMemory(t *testing.T) {
	raw := Info{
		Flags:    FlagMem,
		MemLower: 640,
		MemUpper: 65536,
	}
	info, ok := Parse(Magic, uintptr(unsafe.Pointer(&raw)))
	if !ok {
		t.Fatal("expected Parse to accept the correct magic number")
	}
	if !info.HasMemInfo() {
		t.Fatal("expected FlagMem to be set")
	}
	// E1: booting with upper memory 65536 KiB reports that many bytes.
	want := uint64(65536) * 1024
	if got := info.UpperMemoryBytes(); got != want {
		t.Errorf("UpperMemoryBytes() = %d, want %d", got, want)
	}
}
