// Package gate builds the interrupt descriptor table and routes incoming
// interrupts, exceptions and IRQs to Go handlers registered via
// HandleInterrupt. The actual gate entries and the low-level dispatch
// trampoline live in gate_amd64.s; this file only exposes the
// architecture-independent surface that kernel/irq builds on.
package gate

import (
	"io"
	"unsafe"

	"pinekernel/kernel/cpu"
	"pinekernel/kernel/kfmt"
)

// Registers contains a snapshot of all register values at the time an
// exception, interrupt or syscall occurred.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Info holds the CPU-pushed error code for exceptions that have one,
	// or a synthetic zero pushed by the gate stub otherwise.
	Info uint64

	// The frame IRETQ consumes to resume execution.
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo writes a register dump to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber identifies an x86 interrupt/exception/IRQ vector.
type InterruptNumber uint8

const (
	DivideByZero               = InterruptNumber(0)
	NMI                        = InterruptNumber(2)
	Overflow                   = InterruptNumber(4)
	BoundRangeExceeded         = InterruptNumber(5)
	InvalidOpcode              = InterruptNumber(6)
	DeviceNotAvailable         = InterruptNumber(7)
	DoubleFault                = InterruptNumber(8)
	InvalidTSS                 = InterruptNumber(10)
	SegmentNotPresent          = InterruptNumber(11)
	StackSegmentFault          = InterruptNumber(12)
	GPFException               = InterruptNumber(13)
	PageFaultException         = InterruptNumber(14)
	FloatingPointException     = InterruptNumber(16)
	AlignmentCheck             = InterruptNumber(17)
	MachineCheck               = InterruptNumber(18)
	SIMDFloatingPointException = InterruptNumber(19)

	// IRQ0 is the PIC/APIC timer tick, remapped from legacy IRQ 0.
	IRQ0 = InterruptNumber(32)
	// IRQ1 is the PS/2 keyboard interrupt, remapped from legacy IRQ 1.
	IRQ1 = InterruptNumber(33)
)

// hasErrorCode reports whether the CPU pushes an error code for this
// vector; the stubs in stubs_amd64.s for exactly these vectors skip the
// synthetic zero error code the other stubs push.
func hasErrorCode(num InterruptNumber) bool {
	switch num {
	case 8, 10, 11, 12, 13, 14, 17, 21, 29, 30:
		return true
	default:
		return false
	}
}

// handlerTable holds the Go-level handler registered for each of the 256
// possible vectors; dispatch (called from commonStub in gate_amd64.s)
// indexes into it using the vector number pushed by each gate's stub.
var handlerTable [256]func(*Registers)

// Init builds the IDT and loads it into the CPU. All 256 gates start out
// pointing at a default handler that logs and halts; HandleInterrupt
// overrides individual vectors.
func Init() {
	installIDT()
}

// HandleInterrupt registers handler to run whenever vector fires. istOffset
// selects the interrupt stack table entry the gate should switch to (0
// means "don't switch", i.e. use the currently active stack).
func HandleInterrupt(vector InterruptNumber, istOffset uint8, handler func(*Registers)) {
	handlerTable[vector] = handler
	setGateIST(uint8(vector), istOffset)
}

// dispatch is called by the common assembly trampoline (commonStub in
// gate_amd64.s) with the firing vector and a pointer to the register
// frame commonStub built directly on the interrupt stack. vector is
// uintptr (not InterruptNumber/uint8) purely so its stack argument slot
// has the same width and alignment as the regs pointer that follows it,
// which keeps the hand-written stack-argument layout in commonStub
// unambiguous.
func dispatch(vector uintptr, regs *Registers) {
	if h := handlerTable[uint8(vector)]; h != nil {
		h(regs)
		return
	}
	defaultHandler(uint8(vector), regs)
}

// defaultHandler handles any vector without a registered Go handler by
// logging the frame and halting; kernel/irq registers real handlers for
// every vector spec.md calls out, so this only fires for stray IRQs.
var defaultHandler = func(vector uint8, regs *Registers) {
	kfmt.Printf("\nunhandled interrupt %d\n", vector)
	regs.DumpTo(kfmt.GetOutputSink())
	haltFn()
}

// haltFn is overridden by kernel/irq.Init via SetHaltFn; defaults to a
// busy spin so tests never actually block.
var haltFn = func() {
	for {
	}
}

// SetHaltFn lets kernel/irq wire in the real HLT-based halt loop
// (kernel.HaltFn, which kernel/cpu sets) once CPU primitives are available.
func SetHaltFn(fn func()) {
	haltFn = fn
}

// gateStubTable holds the address of each of the 256 generated stub
// entrypoints (stubs_amd64.s); the backing data is populated entirely by
// that file's DATA directives, never by Go code.
var gateStubTable [256]uintptr

// idtEntry is the on-the-wire layout of a single amd64 IDT gate
// descriptor.
type idtEntry struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

const (
	idtTypeInterruptGate = 0x8E // present, DPL=0, 64-bit interrupt gate
	kernelCodeSelector   = 0x08
)

var idt [256]idtEntry

func (e *idtEntry) setOffset(addr uintptr) {
	e.offsetLow = uint16(addr)
	e.offsetMid = uint16(addr >> 16)
	e.offsetHigh = uint32(addr >> 32)
}

func (e *idtEntry) offset() uintptr {
	return uintptr(e.offsetLow) | uintptr(e.offsetMid)<<16 | uintptr(e.offsetHigh)<<32
}

// installIDT populates all 256 IDT gates with the generated stub
// trampolines and loads the table into the CPU. Every gate starts out
// with IST=0 (use whatever stack was active); HandleInterrupt can later
// switch a specific vector onto an IST slot (e.g. the double fault
// handler onto IST[0], per spec.md §4.E).
func installIDT() {
	for i := range idt {
		idt[i] = idtEntry{
			selector: kernelCodeSelector,
			typeAttr: idtTypeInterruptGate,
		}
		idt[i].setOffset(gateStubTable[i])
	}
	loadIDTFn(idtAddr())
}

// setGateIST updates the IST field of an already-installed gate.
func setGateIST(vector uint8, istOffset uint8) {
	idt[vector].ist = istOffset & 0x7
}

func idtAddr() uintptr {
	return uintptr(unsafe.Pointer(&idt[0]))
}

// idtRegister mirrors the IDTR layout the LIDT instruction expects: a
// 16-bit table limit followed by a 64-bit base address.
var idtRegister struct {
	limit uint16
	base  uint64
}

// loadIDTFn is overridden by tests to avoid executing the real LIDT
// instruction.
var loadIDTFn = func(base uintptr) {
	idtRegister.limit = uint16(len(idt)*16 - 1)
	idtRegister.base = uint64(base)
	cpu.LoadIDT(uintptr(unsafe.Pointer(&idtRegister)))
}
