package cpu

// ReadCR0 / WriteCR0 access the machine control register (paging enable,
// protection enable, write-protect bits).
func ReadCR0() uint32
func WriteCR0(v uint32)

// ReadCR2 returns the faulting virtual address recorded by the last page
// fault ("Entered on vector 14 ... the faulting virtual address
// (from the fault-address register)").
func ReadCR2() uint32

// ReadCR3 / WriteCR3 access the page directory base register; WriteCR3 is
// what switch_to (vmm package) calls to activate an AddressSpace.
func ReadCR3() uint32
func WriteCR3(v uint32)

// InvlPG invalidates a single TLB entry for the given virtual address,
// used after every map()/unmap() per the paging invariant that stale
// TLB entries must never outlive the mapping they cache.
func InvlPG(va uint32)

// CR0 bits relevant to this kernel.
const (
	CR0_PE uint32 = 1 << 0 // protection enable
	CR0_WP uint32 = 1 << 16
	CR0_PG uint32 = 1 << 31
)

// EnableInterrupts / DisableInterrupts toggle the CPU interrupt flag. Used
// by the scheduler and the spinlock-free single-CPU sections described in
// the single-CPU model this kernel assumes.
func EnableInterrupts()
func DisableInterrupts()

// Halt executes HLT, the kernel-fault unrecoverable stop ("the kernel
// halts in a tight loop after logging").
func Halt()
