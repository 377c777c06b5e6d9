package task

import "testing"

func TestRunPollsOnlySpawnedTasksOnce(t *testing.T) {
	e := NewExecutor()
	var polls int
	e.Spawn(TaskFunc(func(w *Waker) Status {
		polls++
		return Ready
	}))

	if n := e.Run(); n != 1 {
		t.Fatalf("Run() polled %d tasks, want 1", n)
	}
	if polls != 1 {
		t.Fatalf("task polled %d times, want 1", polls)
	}
	if n := e.Run(); n != 0 {
		t.Fatalf("second Run() polled %d tasks, want 0 (completed task must not run again)", n)
	}
}

func TestPendingTaskIsNotPolledAgainUntilWoken(t *testing.T) {
	e := NewExecutor()
	var polls int
	e.Spawn(TaskFunc(func(w *Waker) Status {
		polls++
		return Pending
	}))

	e.Run()
	if polls != 1 {
		t.Fatalf("polls = %d, want 1", polls)
	}

	if n := e.Run(); n != 0 {
		t.Fatalf("Run() polled %d tasks, want 0 (task never woke itself)", n)
	}
	if polls != 1 {
		t.Fatalf("polls = %d, want still 1", polls)
	}
}

func TestWakerRequeuesAPendingTask(t *testing.T) {
	e := NewExecutor()
	var polls int
	var stashed *Waker
	e.Spawn(TaskFunc(func(w *Waker) Status {
		polls++
		if polls < 3 {
			stashed = w
			return Pending
		}
		return Ready
	}))

	e.Run()
	if polls != 1 {
		t.Fatalf("polls = %d, want 1", polls)
	}

	stashed.Wake()
	e.Run()
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}

	stashed.Wake()
	if n := e.Run(); n != 1 {
		t.Fatalf("Run() polled %d tasks, want 1", n)
	}
	if polls != 3 {
		t.Fatalf("polls = %d, want 3", polls)
	}

	// The task returned Ready on its third poll: a further wake must be a
	// harmless no-op, not a panic or a resurrection of a removed task.
	stashed.Wake()
	if n := e.Run(); n != 0 {
		t.Fatalf("Run() polled %d tasks after completion, want 0", n)
	}
}

func TestWakeBeforeRunDoesNotDoubleQueue(t *testing.T) {
	e := NewExecutor()
	var polls int
	var stashed *Waker
	e.Spawn(TaskFunc(func(w *Waker) Status {
		polls++
		stashed = w
		return Pending
	}))

	e.Run()
	if polls != 1 {
		t.Fatalf("polls = %d, want 1", polls)
	}

	stashed.Wake()
	stashed.Wake()
	stashed.Wake()
	n := e.Run()
	if n != 1 {
		t.Fatalf("Run() polled %d tasks, want 1 (three wakes before Run must still queue only once)", n)
	}
}

func TestNilWakerWakeIsANoOp(t *testing.T) {
	var w *Waker
	w.Wake() // must not panic
}

func TestIdleReflectsReadyQueueState(t *testing.T) {
	e := NewExecutor()
	if !e.Idle() {
		t.Fatal("a fresh executor must be idle")
	}

	var stashed *Waker
	e.Spawn(TaskFunc(func(w *Waker) Status {
		stashed = w
		return Pending
	}))
	if e.Idle() {
		t.Fatal("a freshly spawned task must be ready for its first poll")
	}

	e.Run()
	if !e.Idle() {
		t.Fatal("executor must be idle once the only task is Pending and unwoken")
	}

	stashed.Wake()
	if e.Idle() {
		t.Fatal("executor must not be idle once a task has been woken")
	}
}
