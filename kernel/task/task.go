// Package task implements the cooperative future/task executor from
// spec.md §4.L: a set of poll-based tasks driven forward by an Executor
// that only makes progress when something wakes a task up, rather than by
// busy-polling every task on every loop iteration.
//
// Go has no built-in async/await, so a Task here is the explicit
// state-machine shape that desugared futures boil down to: Poll is called
// again and again, returns Pending until the task has real work to report,
// and is handed a Waker it can stash away so whatever produces that work
// (an IRQ handler, a timer deadline) can schedule another Poll call without
// the executor itself needing to know why the task was waiting.
package task

import "pinekernel/kernel/sync"

// Status is a Task's progress after one Poll call.
type Status int

const (
	// Pending means the task has no more work to do until woken.
	Pending Status = iota
	// Ready means the task has finished and will not be polled again.
	Ready
)

// Task is one schedulable unit of work in the executor. Poll is called with
// a Waker the task may retain (typically overwriting whatever waker it
// stashed on the previous Pending call) so something outside the executor
// can requeue it later.
type Task interface {
	Poll(w *Waker) Status
}

// TaskFunc adapts a plain poll function to the Task interface, for tasks
// that need no state beyond a closure's captured variables.
type TaskFunc func(w *Waker) Status

// Poll calls f.
func (f TaskFunc) Poll(w *Waker) Status { return f(w) }

// id identifies one spawned task within its Executor.
type id uint64

// Waker lets whatever eventually produces a task's next bit of work
// (an IRQ handler, a sleeping thread's deadline) push that task back onto
// its executor's ready queue without holding a reference to the task
// itself or knowing anything about how the executor is implemented.
type Waker struct {
	exec *Executor
	id   id
}

// Wake requeues the task this Waker was handed to. Calling Wake more than
// once, or after the task has already completed, is harmless.
func (w *Waker) Wake() {
	if w == nil || w.exec == nil {
		return
	}
	w.exec.wake(w.id)
}

// Executor runs a set of Tasks to completion, polling only the ones a
// Waker has marked ready since the last Run. It owns no thread of its
// own: spec.md §4.L's "not preemptive" is satisfied by Run simply
// returning once the ready queue drains, so the caller (kernel/kmain's
// idle loop) decides what runs in between.
type Executor struct {
	lock   sync.Spinlock
	tasks  map[id]Task
	ready  []id
	queued map[id]bool
	nextID id
}

// NewExecutor returns an empty, ready-to-use Executor.
func NewExecutor() *Executor {
	return &Executor{
		tasks:  map[id]Task{},
		queued: map[id]bool{},
	}
}

// Spawn adds t to the executor and schedules it for its first Poll call.
func (e *Executor) Spawn(t Task) {
	e.lock.Acquire()
	tid := e.nextID
	e.nextID++
	e.tasks[tid] = t
	e.enqueue(tid)
	e.lock.Release()
}

// enqueue must be called with the lock held.
func (e *Executor) enqueue(tid id) {
	if e.queued[tid] {
		return
	}
	e.queued[tid] = true
	e.ready = append(e.ready, tid)
}

func (e *Executor) wake(tid id) {
	e.lock.Acquire()
	defer e.lock.Release()
	if _, alive := e.tasks[tid]; !alive {
		return
	}
	e.enqueue(tid)
}

// Run polls every currently ready task once, removing any that report
// Ready, and returns the number of tasks it polled. It returns 0 (without
// blocking) once the ready queue is empty; spec.md §4.L's "polls tasks
// when woken by the timer or keyboard waker" expects the caller to call
// Run again only after some waker fires, typically from an idle loop that
// halts the CPU between rounds.
func (e *Executor) Run() int {
	polled := 0
	for {
		tid, t, ok := e.popReady()
		if !ok {
			return polled
		}
		polled++

		w := &Waker{exec: e, id: tid}
		if t.Poll(w) == Ready {
			e.lock.Acquire()
			delete(e.tasks, tid)
			e.lock.Release()
		}
	}
}

func (e *Executor) popReady() (id, Task, bool) {
	e.lock.Acquire()
	defer e.lock.Release()

	if len(e.ready) == 0 {
		return 0, nil, false
	}
	tid := e.ready[0]
	e.ready = e.ready[1:]
	delete(e.queued, tid)

	t, alive := e.tasks[tid]
	if !alive {
		return 0, nil, false
	}
	return tid, t, true
}

// Idle reports whether the executor has no task ready to run right now
// (though tasks may still exist, parked waiting on a future wake).
func (e *Executor) Idle() bool {
	e.lock.Acquire()
	defer e.lock.Release()
	return len(e.ready) == 0
}
