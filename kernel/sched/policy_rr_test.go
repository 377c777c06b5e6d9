package sched

import "testing"

func TestRRPolicyPopOrderIsFIFO(t *testing.T) {
	p := NewRRPolicy(5)
	p.Push(1)
	p.Push(2)
	p.Push(3)

	// Regression test: listAddBefore must never move p.head when inserting
	// ahead of it, or pushes would come back out in LIFO (stack) order
	// instead of FIFO.
	for _, want := range []ThreadID{1, 2, 3} {
		got, ok := p.Pop(0)
		if !ok || got != want {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
}

func TestRRPolicyPopEmptyReturnsFalse(t *testing.T) {
	p := NewRRPolicy(5)
	if _, ok := p.Pop(0); ok {
		t.Fatal("Pop on an empty policy returned ok=true")
	}
}

func TestRRPolicyPushAfterDrainingToEmptyWorks(t *testing.T) {
	p := NewRRPolicy(5)
	p.Push(1)
	if got, _ := p.Pop(0); got != 1 {
		t.Fatalf("Pop() = %d, want 1", got)
	}
	// The list must be back to a correct empty state (head == 0) so a
	// subsequent push becomes the sole element again, not a corrupt list.
	p.Push(2)
	p.Push(3)
	for _, want := range []ThreadID{2, 3} {
		got, ok := p.Pop(0)
		if !ok || got != want {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
}

func TestRRPolicyRemoveFromMiddleOfList(t *testing.T) {
	p := NewRRPolicy(5)
	p.Push(1)
	p.Push(2)
	p.Push(3)

	p.Remove(2)

	for _, want := range []ThreadID{1, 3} {
		got, ok := p.Pop(0)
		if !ok || got != want {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := p.Pop(0); ok {
		t.Fatal("expected the list to be empty after draining the remaining two threads")
	}
}

func TestRRPolicyTickDecrementsAndSignalsAtZero(t *testing.T) {
	p := NewRRPolicy(2)
	p.Push(1)
	p.Pop(0) // consumes the ready-queue entry but leaves the rrInfo behind

	if p.Tick(1) {
		t.Fatal("Tick after 1 of 2 slice ticks must not yet request a reschedule")
	}
	if !p.Tick(1) {
		t.Fatal("Tick after 2 of 2 slice ticks must request a reschedule")
	}
}

func TestRRPolicyTickOnUnknownThreadRequestsReschedule(t *testing.T) {
	p := NewRRPolicy(5)
	if !p.Tick(42) {
		t.Fatal("Tick on a thread with no rrInfo must request a reschedule")
	}
}
