package sched

import "testing"

func TestWorkStealingPolicyPopPrefersOwnDeque(t *testing.T) {
	p := NewWorkStealingPolicy(2)
	p.Push(1) // cpu (next=1 % 2) == 1
	p.Push(2) // cpu (next=2 % 2) == 0

	got, ok := p.Pop(0)
	if !ok || got != 2 {
		t.Fatalf("Pop(0) = (%d, %v), want (2, true): cpu 0's own deque holds thread 2", got, ok)
	}
}

func TestWorkStealingPolicyOwnDequeIsLIFO(t *testing.T) {
	p := NewWorkStealingPolicy(1)
	p.Push(1)
	p.Push(2)
	p.Push(3)

	// A single deque means every push round-robins onto cpu 0; Pop must
	// take from the tail (LIFO) of its own deque.
	for _, want := range []ThreadID{3, 2, 1} {
		got, ok := p.Pop(0)
		if !ok || got != want {
			t.Fatalf("Pop(0) = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
}

func TestWorkStealingPolicyStealsFromNeighbourFIFO(t *testing.T) {
	p := NewWorkStealingPolicy(3)
	// cpu 0's deque is left empty; cpu 1's deque holds two threads so
	// Pop(0) must steal the head (FIFO) of the first non-empty neighbour.
	p.workers[1] = []ThreadID{10, 11}
	p.workers[2] = []ThreadID{20}

	got, ok := p.Pop(0)
	if !ok || got != 10 {
		t.Fatalf("Pop(0) = (%d, %v), want (10, true): head of cpu 1's deque, FIFO", got, ok)
	}
	got, ok = p.Pop(0)
	if !ok || got != 11 {
		t.Fatalf("Pop(0) = (%d, %v), want (11, true)", got, ok)
	}
	got, ok = p.Pop(0)
	if !ok || got != 20 {
		t.Fatalf("Pop(0) = (%d, %v), want (20, true): cpu 1 now empty, steal from cpu 2 next", got, ok)
	}
}

func TestWorkStealingPolicyPopEmptyReturnsFalse(t *testing.T) {
	p := NewWorkStealingPolicy(2)
	if _, ok := p.Pop(0); ok {
		t.Fatal("Pop on an empty policy returned ok=true")
	}
}

func TestWorkStealingPolicyTickAlwaysRequestsReschedule(t *testing.T) {
	p := NewWorkStealingPolicy(1)
	if !p.Tick(1) {
		t.Fatal("WorkStealingPolicy.Tick must always return true")
	}
}
