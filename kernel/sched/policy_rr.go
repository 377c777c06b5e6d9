package sched

import "pinekernel/kernel/sync"

// RRPolicy is the time-sliced round-robin scheduler from spec.md §3: an
// intrusive doubly-linked circular list of ready tids, each carrying a
// rest-slice counter decremented per tick; the current thread is
// rescheduled once its slice reaches zero.
type RRPolicy struct {
	lock         sync.Spinlock
	maxTimeSlice uint32
	infos        map[ThreadID]*rrInfo
	head         ThreadID
}

type rrInfo struct {
	restSlice  uint32
	prev, next ThreadID
}

// NewRRPolicy returns a RRPolicy whose threads each get maxTimeSlice ticks
// before being rescheduled.
func NewRRPolicy(maxTimeSlice uint32) *RRPolicy {
	return &RRPolicy{maxTimeSlice: maxTimeSlice, infos: map[ThreadID]*rrInfo{}}
}

func (p *RRPolicy) Push(tid ThreadID) {
	p.lock.Acquire()
	defer p.lock.Release()

	info, ok := p.infos[tid]
	if !ok {
		info = &rrInfo{}
		p.infos[tid] = info
	}
	if info.restSlice == 0 {
		info.restSlice = p.maxTimeSlice
	}
	p.listAddBefore(tid, p.head)
}

func (p *RRPolicy) Pop(_ uint) (ThreadID, bool) {
	p.lock.Acquire()
	defer p.lock.Release()

	if p.head == 0 {
		return 0, false
	}
	tid := p.head
	p.listRemove(tid)
	return tid, true
}

func (p *RRPolicy) Tick(current ThreadID) bool {
	p.lock.Acquire()
	defer p.lock.Release()

	info, ok := p.infos[current]
	if !ok {
		return true
	}
	if info.restSlice > 0 {
		info.restSlice--
	}
	return info.restSlice == 0
}

func (p *RRPolicy) SetPriority(ThreadID, uint8) {}

func (p *RRPolicy) Remove(tid ThreadID) {
	p.lock.Acquire()
	defer p.lock.Release()
	if _, ok := p.infos[tid]; ok {
		p.listRemove(tid)
		delete(p.infos, tid)
	}
}

// listAddBefore and listRemove operate on the circular list via each
// node's own prev/next; p.head being ThreadID 0 means the list is empty.
// Thread ids start at 1 (see sched.go's nextTID), so 0 is never a real
// thread and is safe to reuse as the empty marker, adapted from the
// original RRSchedulerInner's dedicated infos[0] sentinel node.
func (p *RRPolicy) listAddBefore(tid, at ThreadID) {
	if at == 0 {
		p.head = tid
		node := p.infos[tid]
		node.prev, node.next = tid, tid
		return
	}
	atNode := p.infos[at]
	prev := atNode.prev
	p.infos[tid].next = at
	p.infos[tid].prev = prev
	p.infos[prev].next = tid
	atNode.prev = tid
}

func (p *RRPolicy) listRemove(tid ThreadID) {
	node := p.infos[tid]
	if node.next == tid {
		p.head = 0
		return
	}
	p.infos[node.next].prev = node.prev
	p.infos[node.prev].next = node.next
	if p.head == tid {
		p.head = node.next
	}
}
