package irq

import "pinekernel/kernel/port"

const (
	pic1Command = port.Number(0x20)
	pic1Data    = port.Number(0x21)
	pic2Command = port.Number(0xA0)
	pic2Data    = port.Number(0xA1)

	picEOI = 0x20

	icw1Init  = 0x10
	icw1ICW4  = 0x01
	icw4Mode8086 = 0x01
)

// pic1Offset and pic2Offset are the vectors the two chained 8259 PICs are
// remapped to: 32-39 for IRQ0-7, 40-47 for IRQ8-15, matching spec.md
// §4.F's "remapped to vectors 32..47".
const (
	pic1Offset = 32
	pic2Offset = pic1Offset + 8
)

// remapPIC reprograms both the master and slave 8259 PICs so that their
// IRQ lines fire on vectors 32-47 instead of the BIOS default 8-15 (which
// collides with CPU exception vectors).
func remapPIC() {
	mask1 := port.InB(pic1Data)
	mask2 := port.InB(pic2Data)

	port.OutB(pic1Command, icw1Init|icw1ICW4)
	port.Wait()
	port.OutB(pic2Command, icw1Init|icw1ICW4)
	port.Wait()

	port.OutB(pic1Data, pic1Offset)
	port.Wait()
	port.OutB(pic2Data, pic2Offset)
	port.Wait()

	port.OutB(pic1Data, 4) // tell master PIC there's a slave at IRQ2
	port.Wait()
	port.OutB(pic2Data, 2) // tell slave PIC its cascade identity
	port.Wait()

	port.OutB(pic1Data, icw4Mode8086)
	port.Wait()
	port.OutB(pic2Data, icw4Mode8086)
	port.Wait()

	port.OutB(pic1Data, mask1)
	port.OutB(pic2Data, mask2)
}

// sendEOI acknowledges an IRQ so the PIC delivers further interrupts.
// irqLine is the original (pre-remap) 0-15 IRQ number.
func sendEOI(irqLine uint8) {
	if irqLine >= 8 {
		port.OutB(pic2Command, picEOI)
	}
	port.OutB(pic1Command, picEOI)
}

// setIRQMasked masks or unmasks a single IRQ line on whichever PIC owns
// it.
func setIRQMasked(irqLine uint8, masked bool) {
	dataPort := pic1Data
	bit := irqLine
	if irqLine >= 8 {
		dataPort = pic2Data
		bit -= 8
	}

	cur := port.InB(dataPort)
	if masked {
		cur |= 1 << bit
	} else {
		cur &^= 1 << bit
	}
	port.OutB(dataPort, cur)
}
