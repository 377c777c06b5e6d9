// Package irq builds on kernel/gate's raw vector dispatch to implement
// spec.md §4.F: exception logging/panic policy, IRQ0 (timer) and IRQ1
// (keyboard) plumbing, and PIC 8259 remapping so hardware interrupts land
// on vectors 32-47 instead of colliding with CPU exceptions 0-31.
package irq

import (
	"io"

	"pinekernel/kernel"
	"pinekernel/kernel/gate"
	"pinekernel/kernel/kfmt"
)

// ExceptionNum identifies one of the 32 CPU exception vectors.
type ExceptionNum = gate.InterruptNumber

const (
	DoubleFault        = gate.DoubleFault
	GPFException       = gate.GPFException
	PageFaultException = gate.PageFaultException

	// IRQ0 is the remapped timer tick vector.
	IRQ0 = gate.IRQ0
	// IRQ1 is the remapped PS/2 keyboard vector.
	IRQ1 = gate.IRQ1
)

// Frame is the CPU-pushed return frame for an interrupt/exception.
type Frame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// Print writes a dump of the frame to the active kfmt sink.
func (f *Frame) Print() {
	f.Fprint(kfmt.GetOutputSink())
}

// Fprint writes a dump of the frame to w.
func (f *Frame) Fprint(w io.Writer) {
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", f.RIP, f.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", f.RSP, f.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", f.RFlags)
}

// Regs is the general-purpose register snapshot for an interrupt/exception.
type Regs struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
}

// Print writes a dump of the registers to the active kfmt sink.
func (r *Regs) Print() {
	r.Fprint(kfmt.GetOutputSink())
}

// Fprint writes a dump of the registers to w.
func (r *Regs) Fprint(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
}

func split(r *gate.Registers) (*Frame, *Regs) {
	return &Frame{RIP: r.RIP, CS: r.CS, RFlags: r.RFlags, RSP: r.RSP, SS: r.SS},
		&Regs{
			RAX: r.RAX, RBX: r.RBX, RCX: r.RCX, RDX: r.RDX,
			RSI: r.RSI, RDI: r.RDI, RBP: r.RBP,
			R8: r.R8, R9: r.R9, R10: r.R10, R11: r.R11,
			R12: r.R12, R13: r.R13, R14: r.R14, R15: r.R15,
		}
}

// ExceptionHandler handles an exception that does not carry a CPU error
// code, or an IRQ; it is not passed the Info value.
type ExceptionHandler func(*Frame, *Regs)

// ExceptionHandlerWithCode handles an exception that carries a CPU error
// code, delivered as the first argument.
type ExceptionHandlerWithCode func(uint64, *Frame, *Regs)

// HandleException registers handler for num, ignoring any error code.
func HandleException(num ExceptionNum, handler ExceptionHandler) {
	handleExceptionFn(num, 0, func(g *gate.Registers) {
		frame, regs := split(g)
		handler(frame, regs)
	})
}

// HandleExceptionWithCode registers handler for num, passing through the
// CPU (or synthetic) error code carried in Info.
func HandleExceptionWithCode(num ExceptionNum, handler ExceptionHandlerWithCode) {
	handleExceptionFn(num, 0, func(g *gate.Registers) {
		frame, regs := split(g)
		handler(g.Info, frame, regs)
	})
}

// handleExceptionFn indirects through gate.HandleInterrupt so tests can
// observe registrations without touching the real IDT.
var handleExceptionFn = func(num ExceptionNum, ist uint8, handler func(*gate.Registers)) {
	gate.HandleInterrupt(num, ist, handler)
}

// EOIFn acknowledges a hardware interrupt so the controller delivers
// further ones; irqLine is the legacy 0-15 IRQ number (IRQ0 for the
// timer, IRQ1 for the keyboard), not the remapped vector. It defaults to
// the 8259 PIC's EOI sequence; kmain swaps it for kernel/irq/apic.EOI
// once the local APIC takes over, per spec.md §4.F's PIC/APIC switch.
var EOIFn = sendEOI

// SendEOI acknowledges IRQ irqLine via whichever interrupt controller is
// currently active. IRQ handlers registered through this package call it
// after they finish, matching spec.md §4.F's "... then EOI" for both
// IRQ0 and IRQ1.
func SendEOI(irqLine uint8) {
	EOIFn(irqLine)
}

// HandleIRQWithIST is like HandleExceptionWithCode but lets the caller
// pin the handler onto an interrupt stack table slot (the gate's IST
// field; 0 keeps the current stack). Nothing in this tree calls it:
// installExceptionHandlers registers DoubleFault with IST field 0, so
// the double fault handler runs on the current stack.
func HandleIRQWithIST(num ExceptionNum, ist uint8, handler ExceptionHandlerWithCode) {
	handleExceptionFn(num, ist, func(g *gate.Registers) {
		frame, regs := split(g)
		handler(g.Info, frame, regs)
	})
}

// nonRecoverable lists the exceptions spec.md §4.F says must panic rather
// than attempt to continue.
var nonRecoverable = map[ExceptionNum]string{
	DoubleFault:                      "double fault",
	gate.MachineCheck:                "machine check",
	gate.StackSegmentFault:           "stack segment fault",
	GPFException:                     "general protection fault",
	gate.InvalidOpcode:               "invalid opcode",
	gate.InvalidTSS:                  "invalid TSS",
	gate.SegmentNotPresent:           "segment not present",
	gate.AlignmentCheck:              "alignment check",
	gate.SIMDFloatingPointException:  "SIMD floating point exception",
}

// pageFaultHandlerFn is registered by kernel/mem/vmm via SetPageFaultHandler;
// until then page faults fall through to the generic non-recoverable path.
var pageFaultHandlerFn ExceptionHandlerWithCode

// SetPageFaultHandler lets vmm install the on-demand mapping handler for
// PageFaultException without irq importing vmm (which would cycle back
// through kernel/mem/pmm).
func SetPageFaultHandler(handler ExceptionHandlerWithCode) {
	pageFaultHandlerFn = handler
}

func logAndMaybePanic(num ExceptionNum, errorCode uint64, frame *Frame, regs *Regs) {
	kfmt.Printf("\nexception %d (error code %d)\n", uint8(num), errorCode)
	regs.Print()
	frame.Print()

	if reason, fatal := nonRecoverable[num]; fatal {
		kernel.Panic(&kernel.Error{Module: "irq", Message: reason})
	}
}

// installExceptionHandlers registers the default handler for every CPU
// exception vector (0-31). It is kept separate from Init so it can be
// unit tested without touching the PIC or loading a real IDT.
func installExceptionHandlers() {
	for num := ExceptionNum(0); num < 32; num++ {
		n := num
		if n == PageFaultException {
			HandleExceptionWithCode(n, func(code uint64, f *Frame, r *Regs) {
				if pageFaultHandlerFn != nil {
					pageFaultHandlerFn(code, f, r)
					return
				}
				logAndMaybePanic(n, code, f, r)
			})
			continue
		}
		HandleExceptionWithCode(n, func(code uint64, f *Frame, r *Regs) {
			logAndMaybePanic(n, code, f, r)
		})
	}
}

// Init installs the default exception handlers for vectors 0-31, wires
// the page fault vector to whatever handler vmm has registered (or the
// generic logger if none yet), remaps the 8259 PIC to vectors 32-47, and
// loads the IDT. It touches real hardware state and is never called from
// tests.
func Init() {
	installExceptionHandlers()
	remapPIC()
	gate.Init()
	gate.SetHaltFn(func() { kernel.HaltFn() })
}
