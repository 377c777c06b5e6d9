package timer

import "pinekernel/kernel/irq"

// handleIRQFn indirects through irq.HandleException so tests can observe
// the registration without touching the real IDT/PIC.
var handleIRQFn = func(num irq.ExceptionNum, handler irq.ExceptionHandler) {
	irq.HandleException(num, handler)
}

// Init programs the PIT and wires its IRQ0 line to Tick. It must run after
// irq.Init has remapped the PIC so IRQ0 lands on gate.IRQ0 rather than
// vector 0.
func Init() {
	programPIT()
	handleIRQFn(irq.IRQ0, func(_ *irq.Frame, _ *irq.Regs) {
		Tick()
		irq.SendEOI(0)
	})
}

// programPIT is the hardware-touching half of Init, split out so tests can
// exercise the IRQ0 registration without reprogramming a real PIT.
var programPIT = func() {
	initPIT()
}
