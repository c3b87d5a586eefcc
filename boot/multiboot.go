// Package boot parses the multiboot info structure the bootloader hands
// the kernel entrypoint, grounded on gopher-os's
// kernel/hal/multiboot/multiboot.go (which parses the newer multiboot2 tag
// stream); this kernel targets the classic multiboot v1 layout:
// "The second 32-bit word of the structure at offset 8 carries upper-
// memory size in KiB."
package boot

import "unsafe"

// Magic is the value multiboot-compliant bootloaders pass in EAX to the
// kernel entrypoint.
const Magic uint32 = 0x2BADB002

// Flags bits for Info.Flags, indicating which optional fields are valid.
const (
	FlagMem       uint32 = 1 << 0
	FlagBootDev   uint32 = 1 << 1
	FlagCmdline   uint32 = 1 << 2
	FlagModules   uint32 = 1 << 3
	FlagMemMap    uint32 = 1 << 6
	FlagFramebuf  uint32 = 1 << 12
)

// Info mirrors the fixed-offset prefix of the multiboot v1 information
// structure, up to and including the command-line pointer. The kernel
// reads only Flags and MemUpper; BootDevice and CmdLine are declared but
// unused, and the rest of the structure (module list, memory map,
// framebuffer) is not modelled ("PCI enumeration" and device-specific
// parsing are collaborators, not core).
type Info struct {
	Flags    uint32 // offset 0
	MemLower uint32 // offset 4: KiB of memory below 1MiB
	MemUpper uint32 // offset 8: KiB of memory above 1MiB
	BootDevice uint32
	CmdLine    uint32
}

// Parse reads an Info structure from the physical address the bootloader
// passed in. It validates magic against Magic and returns a pointer
// usable by the frame allocator to size the managed region.
func Parse(magic uint32, infoAddr uintptr) (*Info, bool) {
	if magic != Magic {
		return nil, false
	}
	if infoAddr == 0 {
		return nil, false
	}
	return (*Info)(unsafe.Pointer(infoAddr)), true
}

// UpperMemoryBytes converts the upper-memory field (KiB, starting at 1MiB)
// into a byte count, used by kernel.Boot to bound pmm.Init (E1 in
// "Boot with upper memory 65536 KiB ... free_count() ...
// equals 12288").
func (i *Info) UpperMemoryBytes() uint64 {
	return uint64(i.MemUpper) * 1024
}

// HasMemInfo reports whether MemLower/MemUpper are valid.
func (i *Info) HasMemInfo() bool {
	return i.Flags&FlagMem != 0
}
