// Package sync provides the synchronization primitives used throughout the
// kernel: a spinlock for state shared between thread and IRQ context, plus a
// helper for running a critical section with interrupts disabled.
package sync

import "sync/atomic"

// YieldFn is invoked by Spinlock.Acquire while busy-waiting so that other
// ready threads get a chance to run instead of burning the current time
// slice spinning. It defaults to a no-op; kernel/sched.Init installs the
// real cooperative yield once the scheduler exists.
var YieldFn = func() {}

// Spinlock implements a lock where a caller trying to acquire it busy-waits
// until the lock becomes available. Re-acquiring a lock already held by the
// current thread deadlocks, same as the teacher.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired.
func (l *Spinlock) Acquire() {
	for !l.TryToAcquire() {
		YieldFn()
	}
}

// TryToAcquire attempts to acquire the lock without blocking. It returns
// true if the lock was acquired.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock. Calling Release on a free lock is a
// no-op.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// WithoutInterrupts disables interrupts, runs fn and restores the previous
// interrupt flag state. Any lock that may also be acquired from IRQ context
// must be taken this way on the thread side, per spec.md §5.
func WithoutInterrupts(fn func()) {
	enabled := disableInterruptsFn()
	defer func() {
		if enabled {
			enableInterruptsFn()
		}
	}()
	fn()
}

// disableInterruptsFn/enableInterruptsFn are swapped by kernel/cpu during
// arch init and overridden by tests; disableInterruptsFn must report
// whether interrupts were enabled prior to the call.
var (
	disableInterruptsFn = func() bool { return false }
	enableInterruptsFn  = func() {}
)

// SetInterruptControl installs the arch-specific functions used by
// WithoutInterrupts. Called once from kernel/cpu.Init.
func SetInterruptControl(disable func() bool, enable func()) {
	disableInterruptsFn = disable
	enableInterruptsFn = enable
}
