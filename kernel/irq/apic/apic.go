package apic

import (
	"unsafe"

	"pinekernel/kernel/cpu"
	"pinekernel/kernel/hal/multiboot"
)

// IA32_APIC_BASE MSR (0x1B) layout.
const (
	msrAPICBase      = 0x1B
	apicBaseGlobalEn = 1 << 11
	apicBaseAddrMask = 0x000ffffff000 // bits 12-35, page-aligned
)

// Local APIC register offsets (byte offsets within its 4 KiB MMIO page).
const (
	regID                = 0x020
	regSpuriousInterrupt = 0x0F0
	regEOI               = 0x0B0
)

// spuriousInterruptEnable is the Spurious Interrupt Vector Register's
// "APIC Software Enable" bit; spuriousVector is an arbitrary vector in
// the unused 0xF0-0xFF range, matching the usual convention of reusing
// the register's own low byte as the vector number.
const (
	spuriousInterruptEnable = 1 << 8
	spuriousVector          = 0xFF
)

// localAPICBase is the virtual address of the local APIC's MMIO page,
// set by Enable. It is zero until Enable succeeds.
var localAPICBase uintptr

// physToVirtFn and readMSRFn/writeMSRFn are swapped out by tests so
// Enable and EOI can be exercised without reading a real MSR or touching
// real MMIO.
var (
	physToVirtFn = func(phys uintptr) uintptr { return uintptr(multiboot.PhysToVirt(phys)) }
	readMSRFn    = cpu.ReadMSR
	writeMSRFn   = cpu.WriteMSR
	hasAPICFn    = cpu.HasAPIC
)

// Available reports whether the local APIC path is usable at all: CPUID
// must report APIC support and a MADT must have been supplied. It is the
// gate spec.md §4.F uses to decide between this package and the legacy
// 8259 PIC (kernel/irq.remapPIC).
func Available(madt *MADT) bool {
	return madt != nil && hasAPICFn()
}

// Enable switches on the local APIC described by madt: it reads
// IA32_APIC_BASE to find (or confirm) the register page, maps it through
// the physical memory window, sets the global-enable bit in the MSR, and
// programs the spurious interrupt vector register so spurious interrupts
// are accepted instead of crashing the vector table. Matches the init
// order of the original time-of-boot APIC bring-up sequence in the
// teacher's ecosystem: MSR enable before any register page access.
func Enable(madt *MADT) {
	base := readMSRFn(msrAPICBase)
	base |= apicBaseGlobalEn
	writeMSRFn(msrAPICBase, base)

	phys := uintptr(base & apicBaseAddrMask)
	if phys == 0 {
		phys = uintptr(madt.LocalAPICAddr)
	}
	localAPICBase = physToVirtFn(phys)

	writeRegister(regSpuriousInterrupt, spuriousInterruptEnable|spuriousVector)
}

// EOI signals end-of-interrupt to the local APIC. Handlers registered
// while the APIC path is active call this instead of kernel/irq's PIC
// EOI.
func EOI() {
	writeRegister(regEOI, 0)
}

// ID returns this core's local APIC ID.
func ID() uint32 {
	return readRegister(regID) >> 24
}

func writeRegister(offset uintptr, value uint32) {
	*(*uint32)(unsafe.Pointer(localAPICBase + offset)) = value
}

func readRegister(offset uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(localAPICBase + offset))
}
