package sched

import (
	"container/heap"

	"pinekernel/kernel/sync"
)

// bigStride bounds the wrap-safe stride comparison in strideLess, per
// spec.md §3's "b − a ≤ 0x7FFFFFFF ⇒ a < b".
const bigStride uint32 = 0x7FFFFFFF

// strideLess reports whether a sorts before b under wraparound-safe
// unsigned comparison: a is less than b iff advancing from a to b takes no
// more than half the stride space.
func strideLess(a, b uint32) bool {
	if a == b {
		return false
	}
	return b-a <= bigStride
}

type strideInfo struct {
	present   bool
	restSlice uint32
	stride    uint32
	priority  uint8
}

// strideEntry is one item in the policy's min-heap, ordered by stride with
// ties unused (tids are unique).
type strideEntry struct {
	stride uint32
	tid    ThreadID
}

type strideQueue []strideEntry

func (q strideQueue) Len() int            { return len(q) }
func (q strideQueue) Less(i, j int) bool  { return strideLess(q[i].stride, q[j].stride) }
func (q strideQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *strideQueue) Push(x interface{}) { *q = append(*q, x.(strideEntry)) }
func (q *strideQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// StridePolicy is the stride scheduler from spec.md §3: each ready thread
// carries a monotonic stride counter, the min-heap always pops the
// smallest, and popping a thread advances its stride by bigStride/priority
// (higher priority, smaller advance, more frequent turns).
type StridePolicy struct {
	lock         sync.Spinlock
	maxTimeSlice uint32
	infos        map[ThreadID]*strideInfo
	queue        strideQueue
}

// NewStridePolicy returns a StridePolicy whose threads each get
// maxTimeSlice ticks before being rescheduled.
func NewStridePolicy(maxTimeSlice uint32) *StridePolicy {
	return &StridePolicy{maxTimeSlice: maxTimeSlice, infos: map[ThreadID]*strideInfo{}}
}

func (p *StridePolicy) infoFor(tid ThreadID) *strideInfo {
	info, ok := p.infos[tid]
	if !ok {
		info = &strideInfo{}
		p.infos[tid] = info
	}
	return info
}

func (p *StridePolicy) Push(tid ThreadID) {
	p.lock.Acquire()
	defer p.lock.Release()

	info := p.infoFor(tid)
	info.present = true
	if info.restSlice == 0 {
		info.restSlice = p.maxTimeSlice
	}
	heap.Push(&p.queue, strideEntry{stride: info.stride, tid: tid})
}

func (p *StridePolicy) Pop(_ uint) (ThreadID, bool) {
	p.lock.Acquire()
	defer p.lock.Release()

	for p.queue.Len() > 0 {
		entry := heap.Pop(&p.queue).(strideEntry)
		info, ok := p.infos[entry.tid]
		if !ok || !info.present {
			continue
		}
		info.present = false
		pass := bigStride
		if info.priority != 0 {
			pass = bigStride / uint32(info.priority)
		}
		info.stride += pass
		return entry.tid, true
	}
	return 0, false
}

func (p *StridePolicy) Tick(current ThreadID) bool {
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

func (p *StridePolicy) SetPriority(tid ThreadID, priority uint8) {
	p.lock.Acquire()
	defer p.lock.Release()
	p.infoFor(tid).priority = priority
}

func (p *StridePolicy) Remove(tid ThreadID) {
	p.lock.Acquire()
	defer p.lock.Release()
	if info, ok := p.infos[tid]; ok {
		info.present = false
	}
}
