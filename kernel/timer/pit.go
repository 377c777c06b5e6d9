// Package timer drives the 8253/8254 Programmable Interval Timer: it
// programs channel 0 for the periodic tick that IRQ0 advances (spec.md
// §4.G) and uses channel 2's one-shot mode for short busy-wait delays.
package timer

import (
	"sync/atomic"

	"pinekernel/kernel/port"
)

const (
	chan0Data    = port.Number(0x40)
	chan2Data    = port.Number(0x42)
	modeCommand  = port.Number(0x43)
	controlPort  = port.Number(0x61)

	// baseFrequency is the PIT's fixed input clock, ~1.193182 MHz.
	baseFrequency = 1_193_182

	// minFrequency is the lowest rate the 16-bit divisor can express.
	minFrequency = 19

	accessLoHiByte = 0x3 << 4

	modeSquareWave           = 0x3 << 1
	modeInterruptOnTerminal  = 0x0 << 1

	channel0Select = 0x0 << 6
	channel2Select = 0x2 << 6

	controlEnableCounter2 = 1 << 0
	controlSpeakerData    = 1 << 1
	controlStatusCounter2 = 1 << 5

	// maxCounterValue is the largest divisor channel 2 can hold.
	maxCounterValue = 0xFFFF

	// maxDelayMicros is the longest one-shot delay a single counter load
	// can express (~54.9 ms at the base frequency).
	maxDelayMicros = uint32(uint64(maxCounterValue) * 1_000_000 / baseFrequency)
)

// TimerError enumerates the failure modes spec.md §4.G calls out. The
// zero value means success, so callers can compare against 0 the same
// way the rest of this package's port-level code does.
type TimerError uint8

const (
	noTimerError TimerError = iota
	// OutOfRange is returned when a requested delay cannot be
	// represented by a single 16-bit counter load.
	OutOfRange
	// NotActive is returned when channel 2 is not currently enabled.
	NotActive
	// NoTicksAvailable is returned by GetTicks for an unknown
	// registration id.
	NoTicksAvailable
)

func (e TimerError) Error() string {
	switch e {
	case OutOfRange:
		return "timer: delay out of range"
	case NotActive:
		return "timer: counter not active"
	case NoTicksAvailable:
		return "timer: no ticks available for this registration"
	default:
		return "timer: unknown error"
	}
}

// SelectedHz is the tick rate channel 0 is programmed for at Init; it can
// be overridden before calling Init (e.g. from a kernel command line
// argument, SPEC_FULL.md §1).
var SelectedHz uint32 = 1000

// tickWaits holds one atomic counter per caller that has called
// RegisterWait; IRQ0's handler increments every entry each tick.
var (
	tickWaits   []*uint32
	elapsedTicks uint64
)

// Tick is invoked by the IRQ0 handler on every timer interrupt. It
// advances the global tick counter and every registered wait counter.
func Tick() {
	atomic.AddUint64(&elapsedTicks, 1)
	for _, c := range tickWaits {
		atomic.AddUint32(c, 1)
	}
}

// ElapsedTicks returns the number of timer ticks since Init.
func ElapsedTicks() uint64 {
	return atomic.LoadUint64(&elapsedTicks)
}

// RegisterWait allocates a new tick counter and returns its id, for use
// with GetTicks. Counters are never removed (they're cheap and the
// kernel has no task-exit path that would need to reclaim one yet).
func RegisterWait() int {
	tickWaits = append(tickWaits, new(uint32))
	return len(tickWaits) - 1
}

// GetTicks returns the number of ticks that have elapsed since id was
// registered.
func GetTicks(id int) (uint32, TimerError) {
	if id < 0 || id >= len(tickWaits) {
		return 0, NoTicksAvailable
	}
	return atomic.LoadUint32(tickWaits[id]), noTimerError
}

// initPIT programs PIT channel 0 for a square-wave at SelectedHz and
// resets the tick bookkeeping. Frequencies below the PIT's ~19 Hz floor
// are rejected by falling back to the floor instead of silently wrapping
// the 16-bit divisor.
func initPIT() {
	hz := SelectedHz
	if hz < minFrequency {
		hz = minFrequency
	}
	divisor := uint16(baseFrequency / hz)

	port.OutB(modeCommand, channel0Select|accessLoHiByte|modeSquareWave)
	port.OutB(chan0Data, uint8(divisor))
	port.OutB(chan0Data, uint8(divisor>>8))

	tickWaits = tickWaits[:0]
	atomic.StoreUint64(&elapsedTicks, 0)
}

// set programs channel 2 for a one-shot delay of the given microsecond
// count and returns once the counter has been loaded (not once it has
// elapsed; callers poll waitForTimeout or similar to block).
func set(micros uint32) TimerError {
	if micros > maxDelayMicros {
		return OutOfRange
	}
	counter := uint16((uint64(baseFrequency) * uint64(micros)) / 1_000_000)

	ctrl := port.InB(controlPort)
	ctrl &^= controlSpeakerData
	ctrl |= controlEnableCounter2
	port.OutB(controlPort, ctrl)

	port.OutB(modeCommand, channel2Select|accessLoHiByte|modeInterruptOnTerminal)
	port.OutB(chan2Data, uint8(counter))
	port.OutB(chan2Data, uint8(counter>>8))
	return noTimerError
}

// waitForTimeout busy-polls channel 2's status bit until the one-shot
// delay programmed by set elapses.
func waitForTimeout() TimerError {
	for {
		ctrl := port.InB(controlPort)
		if ctrl&controlEnableCounter2 == 0 {
			return NotActive
		}
		if ctrl&controlStatusCounter2 != 0 {
			return noTimerError
		}
	}
}

// udelay busy-waits for approximately d microseconds using PIT channel 2.
// Delays beyond maxDelayMicros are chunked into repeated one-shot loads.
func udelay(d uint32) TimerError {
	for d > 0 {
		chunk := d
		if chunk > maxDelayMicros {
			chunk = maxDelayMicros
		}
		if err := set(chunk); err != noTimerError {
			return err
		}
		if err := waitForTimeout(); err != noTimerError {
			return err
		}
		d -= chunk
	}
	return noTimerError
}

// Udelay busy-waits for approximately d microseconds.
func Udelay(d uint32) TimerError { return udelay(d) }

// Mdelay busy-waits for approximately d milliseconds.
func Mdelay(d uint32) TimerError { return udelay(d * 1000) }

// Sdelay busy-waits for approximately d seconds.
func Sdelay(d uint32) TimerError { return udelay(d * 1_000_000) }
