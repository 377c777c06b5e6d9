package sync

import "testing"

func TestSpinlockTryToAcquire(t *testing.T) {
	var l Spinlock

	if !l.TryToAcquire() {
		t.Fatal("expected first TryToAcquire to succeed")
	}
	if l.TryToAcquire() {
		t.Fatal("expected second TryToAcquire to fail while held")
	}

	l.Release()

	if !l.TryToAcquire() {
		t.Fatal("expected TryToAcquire to succeed after Release")
	}
}

func TestSpinlockAcquireYieldsWhileContended(t *testing.T) {
	defer func(orig func()) { YieldFn = orig }(YieldFn)

	var l Spinlock
	l.Acquire()

	yieldCount := 0
	YieldFn = func() {
		yieldCount++
		if yieldCount == 3 {
			l.Release()
		}
	}

	l.Acquire()

	if yieldCount < 3 {
		t.Fatalf("expected Acquire to spin via YieldFn at least 3 times, got %d", yieldCount)
	}
}

func TestWithoutInterrupts(t *testing.T) {
	defer func() { disableInterruptsFn, enableInterruptsFn = func() bool { return false }, func() {} }()

	var disabled, restored bool
	SetInterruptControl(
		func() bool { disabled = true; return true },
		func() { restored = true },
	)

	ran := false
	WithoutInterrupts(func() { ran = true })

	if !disabled || !restored || !ran {
		t.Fatalf("expected disable+run+restore, got disabled=%v ran=%v restored=%v", disabled, ran, restored)
	}
}

func TestWithoutInterruptsKeepsDisabled(t *testing.T) {
	defer func() { disableInterruptsFn, enableInterruptsFn = func() bool { return false }, func() {} }()

	restored := false
	SetInterruptControl(
		func() bool { return false }, // interrupts were already disabled
		func() { restored = true },
	)

	WithoutInterrupts(func() {})

	if restored {
		t.Fatal("expected WithoutInterrupts not to re-enable interrupts that were already disabled")
	}
}
