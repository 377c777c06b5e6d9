package sched

import "testing"

func TestO1PolicyFIFOWithinActiveQueue(t *testing.T) {
	p := NewO1Policy()
	p.Push(1)
	p.Push(2)
	p.Push(3)

	for _, want := range []ThreadID{1, 2, 3} {
		got, ok := p.Pop(0)
		if !ok || got != want {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
}

func TestO1PolicyPopEmptyReturnsFalse(t *testing.T) {
	p := NewO1Policy()
	if _, ok := p.Pop(0); ok {
		t.Fatal("Pop on an empty policy returned ok=true")
	}
}

func TestO1PolicySwapsToOtherQueueOnceActiveDrains(t *testing.T) {
	p := NewO1Policy()
	p.Push(1)
	p.Push(2)

	// The active queue starts empty, so the first Pop swaps in the queue
	// holding 1 and 2.
	if got, _ := p.Pop(0); got != 1 {
		t.Fatalf("first Pop = %d, want 1", got)
	}
	// Push always appends to the inactive queue, so 3 comes out only after
	// 2 drains the active queue and the queues swap again.
	p.Push(3)
	if got, _ := p.Pop(0); got != 2 {
		t.Fatalf("second Pop = %d, want 2", got)
	}
	if got, _ := p.Pop(0); got != 3 {
		t.Fatalf("third Pop = %d, want 3", got)
	}
}

func TestO1PolicyTickAlwaysRequestsReschedule(t *testing.T) {
	p := NewO1Policy()
	if !p.Tick(1) {
		t.Fatal("O1Policy.Tick must always return true (every tick yields a turn)")
	}
}
