package sched

import (
	"sync/atomic"

	"pinekernel/kernel/sync"
)

// WorkStealingPolicy gives each CPU its own ready deque; a pop that finds
// its own deque empty tries every other CPU's deque in turn before giving
// up, per spec.md §3. PineKernel runs application processors detected but
// parked (spec.md §5), so in practice only cpu_id 0's deque is ever
// populated; the stealing path exists for when a future kmain actually
// starts APs, and is exercised directly by its own tests in the meantime.
type WorkStealingPolicy struct {
	lock    sync.Spinlock
	workers [][]ThreadID
	next    uint64
}

// NewWorkStealingPolicy returns a WorkStealingPolicy with cpuCount
// per-CPU deques.
func NewWorkStealingPolicy(cpuCount int) *WorkStealingPolicy {
	if cpuCount < 1 {
		cpuCount = 1
	}
	return &WorkStealingPolicy{workers: make([][]ThreadID, cpuCount)}
}

// Push assigns tid to a deque chosen by a monotonic counter modulo the CPU
// count, spreading load evenly rather than always favoring CPU 0.
func (p *WorkStealingPolicy) Push(tid ThreadID) {
	n := uint64(len(p.workers))
	cpu := atomic.AddUint64(&p.next, 1) % n

	p.lock.Acquire()
	defer p.lock.Release()
	p.workers[cpu] = append(p.workers[cpu], tid)
}

// Pop tries cpuID's own deque first (LIFO, cheapest), then every other
// deque in round-robin order starting from cpuID's neighbour (FIFO, since
// stealing from the opposite end of a victim's deque minimizes contention
// with the victim's own pops).
func (p *WorkStealingPolicy) Pop(cpuID uint) (ThreadID, bool) {
	p.lock.Acquire()
	defer p.lock.Release()

	n := len(p.workers)
	id := int(cpuID) % n

	if q := p.workers[id]; len(q) > 0 {
		tid := q[len(q)-1]
		p.workers[id] = q[:len(q)-1]
		return tid, true
	}

	for i := 1; i < n; i++ {
		victim := (id + i) % n
		if q := p.workers[victim]; len(q) > 0 {
			tid := q[0]
			p.workers[victim] = q[1:]
			return tid, true
		}
	}
	return 0, false
}

func (p *WorkStealingPolicy) Tick(_ ThreadID) bool {
	return true
}

func (p *WorkStealingPolicy) SetPriority(ThreadID, uint8) {}

// Remove is not supported: a thread may be sitting in any of several
// per-CPU deques and removing it would require scanning all of them, which
// the original WorkStealingScheduler likewise declines to do.
func (p *WorkStealingPolicy) Remove(ThreadID) {}
