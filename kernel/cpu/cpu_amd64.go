// Package cpu exposes the handful of amd64 primitives the rest of the
// kernel needs: control-register access, CPUID, MSR access, interrupt
// flag control and TLB invalidation. Each function is a body-less Go
// declaration backed by a short hand-written assembly routine in
// cpu_amd64.s, the same split the teacher uses for kernel/cpu and
// kernel/gate.
package cpu

import (
	"pinekernel/kernel"
	"pinekernel/kernel/sync"
)

var (
	cpuidFn = ID
)

// EnableInterrupts sets the CPU's interrupt flag (STI).
func EnableInterrupts()

// DisableInterrupts clears the CPU's interrupt flag (CLI) and reports
// whether interrupts were enabled prior to the call.
func DisableInterrupts() bool

// Halt stops instruction execution until the next interrupt (HLT).
func Halt()

// FlushTLBEntry invalidates the TLB entry for a single virtual address
// (INVLPG).
func FlushTLBEntry(virtAddr uintptr)

// ReadCR2 returns the faulting address recorded by the last page fault.
func ReadCR2() uint64

// ReadCR3 returns the physical address of the currently active PML4.
func ReadCR3() uint64

// WriteCR3 installs a new PML4 physical address and flushes the TLB.
func WriteCR3(pml4PhysAddr uint64)

// ReadMSR reads a model-specific register.
func ReadMSR(msr uint32) uint64

// WriteMSR writes a model-specific register.
func WriteMSR(msr uint32, value uint64)

// ID executes CPUID with EAX=leaf and returns the EAX/EBX/ECX/EDX results.
func ID(leaf uint32) (eax, ebx, ecx, edx uint32)

// LoadGDT loads a new GDT descriptor (LGDT).
func LoadGDT(gdtPtr uintptr)

// LoadIDT loads a new IDT descriptor (LIDT).
func LoadIDT(idtPtr uintptr)

// LoadTaskRegister loads the TSS selector into the task register (LTR).
func LoadTaskRegister(selector uint16)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// HasAPIC returns true if CPUID reports local APIC support (leaf 1, EDX
// bit 9), the gate spec.md §4.F uses to decide between the legacy 8259
// PIC and the local APIC.
func HasAPIC() bool {
	_, _, _, edx := cpuidFn(1)
	return edx&(1<<9) != 0
}

// Init wires the CPU-level primitives into the rest of the kernel: it gives
// kernel/sync a real WithoutInterrupts implementation and kernel.HaltFn a
// real HLT loop.
func Init() {
	sync.SetInterruptControl(DisableInterrupts, EnableInterrupts)
	kernel.HaltFn = haltLoop
}

// haltLoop repeatedly issues HLT; a single HLT can be woken by any
// interrupt (including ones that are not fatal), so kernel.Panic needs a
// loop, not a single call, to guarantee it never returns.
func haltLoop() {
	DisableInterrupts()
	for {
		Halt()
	}
}
