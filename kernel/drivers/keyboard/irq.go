package keyboard

import (
	"pinekernel/kernel/irq"
	"pinekernel/kernel/port"
)

// readScancodeFn and handleIRQFn are swapped out by tests so Init can be
// exercised without reading a real port or installing a real IDT vector.
var (
	readScancodeFn = func() byte { return port.InB(DataPort) }
	handleIRQFn    = irq.HandleException
)

// Init registers the IRQ1 handler that reads one scan code per interrupt,
// pushes it onto the raw scan code queue (spec.md §4.L: "a global queue of
// scan codes fed by IRQ1"), and acknowledges the interrupt. Decoding and
// listener dispatch happen later, off the interrupt path, inside the Task
// this package's Task function returns.
func Init() {
	handleIRQFn(irq.IRQ1, func(*irq.Frame, *irq.Regs) {
		enqueueScancode(readScancodeFn())
		irq.SendEOI(1)
	})
}
