package keyboard

import (
	"pinekernel/kernel/sync"
	"pinekernel/kernel/task"
)

// queueSize bounds the raw scan code backlog between an IRQ1 interrupt and
// the next time the keyboard task gets polled; 100 mirrors the original
// ArrayQueue::new(100) in original_source/src/task/keyboard.rs.
const queueSize = 100

// scancodeRing is a fixed-capacity FIFO byte queue. IRQ1's handler must not
// block or allocate (spec.md §4.L), so pushing onto a full ring buffer just
// drops the byte rather than growing it.
type scancodeRing struct {
	buf        [queueSize]byte
	head, tail int
	len        int
}

func (r *scancodeRing) push(b byte) bool {
	if r.len == queueSize {
		return false
	}
	r.buf[r.tail] = b
	r.tail = (r.tail + 1) % queueSize
	r.len++
	return true
}

func (r *scancodeRing) pop() (byte, bool) {
	if r.len == 0 {
		return 0, false
	}
	b := r.buf[r.head]
	r.head = (r.head + 1) % queueSize
	r.len--
	return b, true
}

var (
	queueLock sync.Spinlock
	queue     scancodeRing
	waker     *task.Waker
)

// enqueueScancode is IRQ1's half of the handoff: stash the byte in the
// ring buffer and, if a Task has already registered a waker from a prior
// Pending poll, wake it. Mirrors the original's add_scancode, which is
// explicitly commented "must not block or allocate".
func enqueueScancode(b byte) {
	queueLock.Acquire()
	queue.push(b)
	w := waker
	queueLock.Release()

	w.Wake()
}

// Task returns a task.Task that drains the raw scan code queue, decoding
// and dispatching every byte via HandleScancode, and parks itself (Pending,
// with a stashed Waker) once the queue runs dry. Spawn it once on the
// kernel's task executor; spec.md §4.L's "executor polls tasks when woken
// by ... keyboard waker" is enqueueScancode calling that stashed Waker.
func Task() task.Task {
	return task.TaskFunc(func(w *task.Waker) task.Status {
		for {
			queueLock.Acquire()
			b, ok := queue.pop()
			queueLock.Release()
			if !ok {
				break
			}
			HandleScancode(b)
		}

		queueLock.Acquire()
		waker = w
		queueLock.Release()
		return task.Pending
	})
}
