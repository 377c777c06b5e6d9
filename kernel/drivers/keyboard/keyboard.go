// Package keyboard decodes the PS/2 Set-1 scan code stream read from I/O
// port 0x60 on IRQ1 (spec.md §4.F/§4.L) into KeyEvents, and dispatches
// them to whichever listeners have registered interest.
package keyboard

import "pinekernel/kernel/port"

// DataPort is the PS/2 controller's data register; IRQ1's handler reads
// one byte from it per interrupt.
const DataPort port.Number = 0x60

// KeyState is whether a key transitioned down or up.
type KeyState uint8

const (
	Down KeyState = iota
	Up
)

// KeyEvent is a single decoded Set-1 transition.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

// Listener receives every decoded KeyEvent, in order.
type Listener func(KeyEvent)

var listeners []Listener

// Register adds l to the set of listeners notified by HandleScancode.
func Register(l Listener) {
	listeners = append(listeners, l)
}

// decoder is the Set-1 state machine: most scan codes are a single byte,
// but the extended keys (arrows, right Ctrl/Alt, ...) are prefixed with
// 0xE0, so a single byte of look-behind is all the state this format
// needs.
type decoder struct {
	extended bool
}

var defaultDecoder decoder

// HandleScancode feeds one byte read from DataPort through the decoder
// and, if it completed a key transition, notifies every registered
// listener. Bytes that only extend the state machine (the 0xE0 prefix)
// produce no event.
func HandleScancode(b byte) {
	if ev, ok := defaultDecoder.feed(b); ok {
		for _, l := range listeners {
			l(ev)
		}
	}
}

const extendedPrefix = 0xE0

// releaseBit distinguishes a key-up from a key-down: Set-1 reuses the
// make code for the break code with bit 7 set.
const releaseBit = 0x80

func (d *decoder) feed(b byte) (KeyEvent, bool) {
	if b == extendedPrefix {
		d.extended = true
		return KeyEvent{}, false
	}

	extended := d.extended
	d.extended = false

	state := Down
	code := b
	if code&releaseBit != 0 {
		state = Up
		code &^= releaseBit
	}

	key, ok := lookup(code, extended)
	if !ok {
		return KeyEvent{}, false
	}
	return KeyEvent{Code: key, State: state}, true
}
