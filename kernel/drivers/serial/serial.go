// Package serial drives a 16550-compatible UART, used as the kernel's
// earliest output sink: spec.md §6's boot contract wires this up before
// any framebuffer or console driver so that a panic during early boot
// still reaches the outside world.
package serial

import "pinekernel/kernel/port"

// COM1 is the conventional I/O port base for the first serial port on a
// PC-compatible system.
const COM1 port.Number = 0x3F8

// register offsets relative to a port's base, 16550 layout.
const (
	regData        = 0 // DLAB=0: transmit/receive holding register
	regInterruptEn = 1 // DLAB=0: interrupt enable; DLAB=1: divisor high byte
	regFIFOCtrl    = 2
	regLineCtrl    = 3
	regModemCtrl   = 4
	regLineStatus  = 5

	lineCtrlDLAB   = 1 << 7
	lineCtrl8N1    = 0x03
	fifoEnableMode = 0xC7 // enable, clear both FIFOs, 14-byte trigger
	modemLoopback  = 0x1E
	modemNormal    = 0x0F

	lineStatusTxEmpty = 1 << 5
)

// baseDivisor is the UART clock (115200 Hz) divided by the target baud
// rate; 115200/115200 = 1, the fastest rate the chip supports.
const baseDivisor = 1

// Port is a single 16550 UART. The zero value is not usable; construct
// one with New and call Init before first use.
type Port struct {
	base port.Number

	inB  func(port.Number) uint8
	outB func(port.Number, uint8)
}

// New returns a Port for the given I/O base address, defaulting its port
// accessors to the real kernel/port primitives. Tests override inB/outB
// to exercise Init/Write without touching real hardware.
func New(base port.Number) *Port {
	return &Port{base: base, inB: port.InB, outB: port.OutB}
}

// Init programs the UART for 115200 8N1, no parity, enables and clears
// its FIFOs, then loops the chip back on itself to verify it responds
// before committing to normal operation — the same self-test the 16550
// reference drivers in the teacher's ecosystem run before trusting a
// port exists at all.
func (p *Port) Init() bool {
	p.outB(p.base+regInterruptEn, 0x00) // disable interrupts while programming

	p.outB(p.base+regLineCtrl, lineCtrlDLAB)
	p.outB(p.base+regData, baseDivisor&0xFF)
	p.outB(p.base+regInterruptEn, (baseDivisor>>8)&0xFF)
	p.outB(p.base+regLineCtrl, lineCtrl8N1)

	p.outB(p.base+regFIFOCtrl, fifoEnableMode)

	p.outB(p.base+regModemCtrl, modemLoopback)
	p.outB(p.base+regData, 0xAE)
	if p.inB(p.base+regData) != 0xAE {
		return false
	}

	p.outB(p.base+regModemCtrl, modemNormal)
	return true
}

// transmitReady reports whether the transmit holding register is empty
// and ready to accept another byte.
func (p *Port) transmitReady() bool {
	return p.inB(p.base+regLineStatus)&lineStatusTxEmpty != 0
}

// WriteByte busy-waits for the transmitter to go idle, then sends b.
// '\n' is preceded by '\r' so plain line-feeds render correctly on a
// terminal that does not itself translate them.
func (p *Port) WriteByte(b byte) error {
	if b == '\n' {
		for !p.transmitReady() {
		}
		p.outB(p.base+regData, '\r')
	}
	for !p.transmitReady() {
	}
	p.outB(p.base+regData, b)
	return nil
}

// Write implements io.Writer by sending every byte of p in order.
func (p *Port) Write(b []byte) (int, error) {
	for _, c := range b {
		if err := p.WriteByte(c); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}
