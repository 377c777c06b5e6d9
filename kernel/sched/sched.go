// Package sched implements the kernel's single-CPU cooperative scheduler:
// thread spawning, a pluggable ready-queue policy, and the blocking
// primitives (sleep/park/unpark/join) built on top of it, per spec.md §4.K.
// Application processors are detected by kernel/irq/apic but never handed
// threads of their own (spec.md §5's "single-threaded cooperative on the
// boot CPU"), so every policy here is exercised with cpu_id 0 only; the
// work-stealing policy's multi-queue machinery is kept for completeness
// and future multi-core bring-up rather than because anything steals today.
package sched

import (
	"sync/atomic"
	"time"

	"pinekernel/kernel"
	"pinekernel/kernel/mem"
	"pinekernel/kernel/mem/heap"
	"pinekernel/kernel/sync"
	"pinekernel/kernel/timer"
)

// ThreadID identifies a thread for its whole lifetime; ids are never reused
// while a join handle on them may still be outstanding.
type ThreadID uint64

// State is a thread's scheduling state, per spec.md §3's Thread record.
type State int

const (
	Ready State = iota
	Running
	Sleeping
	Waiting
	Exited
)

// ThreadFunc is a spawned thread's entry point; its return value becomes
// the exit code a joiner observes.
type ThreadFunc func(arg uintptr) int

// Thread is one schedulable unit of execution.
type Thread struct {
	id    ThreadID
	state State
	rsp   uintptr

	stackBase uintptr
	stackSize uintptr

	entry ThreadFunc
	arg   uintptr

	wakeTick  uint64
	waitingOn ThreadID
	exitCode  int
	waiters   []ThreadID
}

// ID returns the thread's identifier.
func (t *Thread) ID() ThreadID { return t.id }

// Policy is a pluggable ready-queue strategy; spec.md §3 names four
// concrete shapes (O(1) two-queue, round-robin, stride, work-stealing),
// implemented in policy_*.go.
type Policy interface {
	Push(tid ThreadID)
	Pop(cpuID uint) (ThreadID, bool)
	Tick(current ThreadID) bool
	SetPriority(tid ThreadID, priority uint8)
	Remove(tid ThreadID)
}

const defaultStackSize = 64 * mem.Kb

var (
	lock    sync.Spinlock
	threads = map[ThreadID]*Thread{}

	policy     Policy
	currentTID ThreadID
	nextTID    ThreadID = 1

	reschedulePending uint32

	// allocStackFn backs Spawn's stack allocation; tests swap it for a
	// fake allocator over a plain Go-backed buffer instead of relying on
	// kernel/mem/heap's package-level free list, which only a running
	// kernel's Init ever seeds.
	allocStackFn = func(size uintptr) (uintptr, *kernel.Error) {
		return heap.Alloc(size, 16)
	}

	// elapsedTicksFn backs Sleep's deadline arithmetic and Tick's sleeper
	// wakeup scan; tests swap it out instead of driving kernel/timer's own
	// package-level tick counter, which Sleep/Tick don't own and shouldn't
	// reset as a side effect of an unrelated package's tests.
	elapsedTicksFn = timer.ElapsedTicks
)

// Init installs p as the ready-queue policy and registers the calling
// context (the boot thread) as thread 0, Running. It also points
// kernel/sync's cooperative YieldFn at Yield, so spinlocks busy-wait by
// giving other ready threads a turn instead of only burning cycles.
func Init(p Policy) {
	policy = p
	boot := &Thread{id: 0, state: Running}
	threads[0] = boot
	currentTID = 0
	sync.YieldFn = Yield
}

func currentThread() *Thread {
	return threads[currentTID]
}

func lookupThread(tid ThreadID) *Thread {
	lock.Acquire()
	defer lock.Release()
	return threads[tid]
}

// Spawn allocates a stack from the heap, seeds it with a Context whose
// fabricated return address is threadTrampoline (so the entry function
// runs through a normal CALL once switched in, per context_amd64.s), and
// pushes the new thread onto the ready queue. stackSize of 0 uses a
// default 64 KiB stack.
func Spawn(entry ThreadFunc, arg uintptr, stackSize mem.Size) (*Thread, *kernel.Error) {
	if stackSize == 0 {
		stackSize = defaultStackSize
	}

	base, err := allocStackFn(uintptr(stackSize))
	if err != nil {
		return nil, err
	}
	top := base + uintptr(stackSize)

	lock.Acquire()
	tid := nextTID
	nextTID++
	lock.Release()

	th := &Thread{
		id:        tid,
		state:     Ready,
		stackBase: base,
		stackSize: uintptr(stackSize),
		entry:     entry,
		arg:       arg,
	}

	ctxAddr := top - contextSize
	writeInitialContext(ctxAddr, uintptr(tid))
	th.rsp = ctxAddr

	lock.Acquire()
	threads[tid] = th
	lock.Release()

	policy.Push(tid)
	return th, nil
}

// runThread is the Go-side landing point threadTrampoline calls once a
// freshly spawned thread is first switched into; tid arrives as a plain
// uintptr (not a closure) since Spawn's fabricated Context can only carry
// one machine word through Switch's raw register handoff.
func runThread(tid uintptr) {
	th := lookupThread(ThreadID(tid))
	code := th.entry(th.arg)
	Exit(code)
}

// Yield voluntarily gives up the remaining time slice. The current thread
// stays Ready and is pushed back onto the policy queue before any
// different ready thread is switched in.
func Yield() {
	sync.WithoutInterrupts(func() {
		cur := currentThread()
		cur.state = Ready
		policy.Push(cur.id)
		scheduleAway()
	})
}

// scheduleAway asks the policy for the next thread to run and switches
// into it if it differs from the one currently running. Callers that want
// the current thread suspended (rather than re-queued, as Yield does) set
// its state before calling this. Must run with interrupts already
// disabled.
func scheduleAway() {
	cur := currentThread()

	lock.Acquire()
	next, ok := policy.Pop(0)
	lock.Release()
	if !ok || next == cur.id {
		return
	}

	lock.Acquire()
	nextThread := threads[next]
	nextThread.state = Running
	currentTID = next
	lock.Release()

	switchFn(&cur.rsp, &nextThread.rsp)
}

// switchFn indirects through Switch so tests can exercise the whole
// yield/sleep/park/join bookkeeping above without the raw asm routine
// actually repointing the test process's own stack pointer at heap memory
// the Go runtime doesn't know about.
var switchFn = Switch

// parkSelf suspends the current thread, whose state the caller has already
// set to Sleeping or Waiting, without re-queuing it.
func parkSelf() {
	sync.WithoutInterrupts(scheduleAway)
}

// Park marks the current thread Sleeping with no wake deadline and
// suspends it; only an explicit Unpark brings it back to Ready.
func Park() {
	cur := currentThread()
	cur.state = Sleeping
	cur.wakeTick = 0
	parkSelf()
}

// Sleep suspends the current thread for at least d, rounding up to whole
// ticks. A zero duration is treated as an immediate Yield rather than a
// no-op, following the original GluOS scheduler's sleep(Duration::ZERO)
// behavior of still giving other ready threads a turn.
func Sleep(d time.Duration) {
	ticks := durationToTicks(d)
	if ticks == 0 {
		Yield()
		return
	}

	cur := currentThread()
	cur.state = Sleeping
	cur.wakeTick = elapsedTicksFn() + ticks
	parkSelf()
}

func durationToTicks(d time.Duration) uint64 {
	hz := uint64(timer.SelectedHz)
	return (uint64(d.Nanoseconds())*hz + uint64(time.Second) - 1) / uint64(time.Second)
}

// Unpark makes tid Ready and pushes it onto the policy queue if it is
// currently Sleeping; it is a no-op otherwise (already Ready/Running, or
// Waiting on a join, or Exited).
func Unpark(tid ThreadID) {
	lock.Acquire()
	th, ok := threads[tid]
	if !ok || th.state != Sleeping {
		lock.Release()
		return
	}
	th.state = Ready
	lock.Release()

	policy.Push(tid)
}

// Join blocks until tid exits, then returns its exit code and frees its
// thread-table entry. Joining an id that has already been reaped returns 0;
// callers are expected to join each thread at most once, matching the
// teacher's JoinHandle-consumes-self idiom.
func Join(tid ThreadID) int {
	for {
		lock.Acquire()
		th, ok := threads[tid]
		if !ok {
			lock.Release()
			return 0
		}
		if th.state == Exited {
			code := th.exitCode
			delete(threads, tid)
			lock.Release()
			return code
		}

		cur := currentThread()
		cur.state = Waiting
		cur.waitingOn = tid
		th.waiters = append(th.waiters, cur.id)
		lock.Release()

		parkSelf()
	}
}

// Exit marks the current thread Exited with the given code, wakes any
// joiners, and switches away for the last time. It never returns: nothing
// will ever Pop this thread's id from the ready queue again.
func Exit(code int) {
	sync.WithoutInterrupts(func() {
		cur := currentThread()
		cur.state = Exited
		cur.exitCode = code

		lock.Acquire()
		waiters := cur.waiters
		cur.waiters = nil
		var woken []ThreadID
		for _, w := range waiters {
			if wth, ok := threads[w]; ok && wth.state == Waiting && wth.waitingOn == cur.id {
				wth.state = Ready
				woken = append(woken, w)
			}
		}
		lock.Release()
		for _, w := range woken {
			policy.Push(w)
		}

		scheduleAway()
	})
	for {
	}
}

// Tick is called from IRQ0 (kernel/kmain's IRQ0 handler calls it after
// timer.Tick and before sending the EOI): it wakes any sleeper
// whose deadline has passed, then asks the policy's own tick bookkeeping
// (round-robin's slice countdown, and so on) whether the current thread
// should be rescheduled. If so, it only sets a flag; IRQ handlers never
// preempt directly, per spec.md §5.
func Tick() {
	now := elapsedTicksFn()

	var woken []ThreadID
	lock.Acquire()
	for tid, th := range threads {
		if th.state == Sleeping && th.wakeTick != 0 && now >= th.wakeTick {
			th.state = Ready
			th.wakeTick = 0
			woken = append(woken, tid)
		}
	}
	lock.Release()
	for _, tid := range woken {
		policy.Push(tid)
	}

	cur := currentThread()
	if policy.Tick(cur.id) {
		atomic.StoreUint32(&reschedulePending, 1)
	}
}

// CheckReschedule yields if the last Tick asked for a reschedule. Callers
// invoke it at a safe boundary (loop iteration, syscall return, and so on);
// it is the cooperative half of the "reschedule pending" flag Tick sets.
func CheckReschedule() {
	if atomic.SwapUint32(&reschedulePending, 0) == 1 {
		Yield()
	}
}

// Current returns the currently running thread's id.
func Current() ThreadID {
	return currentTID
}
