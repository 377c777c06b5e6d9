package sched

import "pinekernel/kernel/sync"

// O1Policy is the two-FIFO-queue scheduler from spec.md §3: pushes land in
// the inactive queue, pops drain the active one, and the two swap roles
// once the active queue runs dry. Every pop costs O(1) regardless of how
// many threads are ready, at the cost of FIFO order resetting across a
// swap.
type O1Policy struct {
	lock   sync.Spinlock
	active int
	queues [2][]ThreadID
}

// NewO1Policy returns a ready-to-use O1Policy.
func NewO1Policy() *O1Policy {
	return &O1Policy{}
}

func (p *O1Policy) Push(tid ThreadID) {
	p.lock.Acquire()
	defer p.lock.Release()
	inactive := 1 - p.active
	p.queues[inactive] = append(p.queues[inactive], tid)
}

func (p *O1Policy) Pop(_ uint) (ThreadID, bool) {
	p.lock.Acquire()
	defer p.lock.Release()

	if len(p.queues[p.active]) == 0 {
		p.active = 1 - p.active
	}
	q := p.queues[p.active]
	if len(q) == 0 {
		return 0, false
	}
	tid := q[0]
	p.queues[p.active] = q[1:]
	return tid, true
}

// Tick always asks for a reschedule, matching the original O1Scheduler: it
// carries no notion of a time slice of its own, so every tick is a
// candidate reschedule point.
func (p *O1Policy) Tick(_ ThreadID) bool {
	return true
}

func (p *O1Policy) SetPriority(ThreadID, uint8) {}

// Remove is not supported by this policy; dropping a thread from the
// middle of either FIFO would require a linear scan the original
// O1Scheduler explicitly declines to implement either.
func (p *O1Policy) Remove(ThreadID) {}
