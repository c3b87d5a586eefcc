package kernel

import (
	"unsafe"

	"x86kernel/cpu"
)

// Segment selectors for the fixed flat GDT this kernel installs at boot.
// Index 0 is the mandatory null descriptor; the rest follow the
// conventional flat-memory-model layout real-mode-to-protected-mode
// transitions use (kernel code/data, then user code/data, then the TSS).
const (
	SelNull     uint16 = 0x00
	SelKernCode uint16 = 0x08
	SelKernData uint16 = 0x10
	SelUserCode uint16 = 0x18 | 3
	SelUserData uint16 = 0x20 | 3
	SelTSS      uint16 = 0x28
)

var (
	gdt [6]cpu.SegDesc
	tss cpu.TSS
)

// InitGDT installs the flat GDT (one segment each for kernel code, kernel
// data, user code, user data, plus the TSS descriptor) and loads the task
// register. Grounded on cpu/gdt.go's MkSegDesc/LoadGDT/LoadTR primitives,
// which this tree carried without a caller until now.
func InitGDT() {
	fillGDT()
	ptr := cpu.DescriptorTablePtr{
		Limit: uint16(len(gdt)*8 - 1),
		Base:  uint32(uintptr(unsafe.Pointer(&gdt[0]))),
	}
	cpu.LoadGDT(&ptr)
	cpu.LoadTR(SelTSS)
}

// fillGDT populates the package-level gdt array, kept separate from the
// LGDT/LTR instructions themselves so the table layout can be checked
// under go test without touching real segment registers.
func fillGDT() {
	const codeAccess = cpu.SegPresent | cpu.SegCodeData | cpu.SegExecute | cpu.SegReadWrite
	const dataAccess = cpu.SegPresent | cpu.SegCodeData | cpu.SegReadWrite
	const flags = 0xc // 4KiB granularity, 32-bit

	gdt[0] = cpu.SegDesc{}
	gdt[1] = cpu.MkSegDesc(codeAccess, flags)
	gdt[2] = cpu.MkSegDesc(dataAccess, flags)
	gdt[3] = cpu.MkSegDesc(codeAccess|cpu.SegRing3, flags)
	gdt[4] = cpu.MkSegDesc(dataAccess|cpu.SegRing3, flags)
	gdt[5] = tssDescriptor()
}

// SetKernelStack updates the TSS's ring-0 stack pointer, the stack a
// ring-3 -> ring-0 transition lands on. The scheduler does not call it;
// a context switch leaves the TSS unchanged.
func SetKernelStack(esp0 uint32) {
	tss.ESP0 = esp0
	tss.SS0 = uint32(SelKernData)
}

func tssDescriptor() cpu.SegDesc {
	base := uint32(uintptr(unsafe.Pointer(&tss)))
	limit := uint32(unsafe.Sizeof(tss))
	return cpu.SegDesc{
		LimitLow:  uint16(limit),
		BaseLow:   uint16(base),
		BaseMid:   uint8(base >> 16),
		Access:    cpu.SegPresent | 0x9, // present, 32-bit TSS, not busy
		LimitHigh: uint8(limit >> 16 & 0xf),
		BaseHigh:  uint8(base >> 24),
	}
}
