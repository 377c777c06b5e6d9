package timer

import "testing"

func TestTickAdvancesElapsedAndRegistrations(t *testing.T) {
	tickWaits = nil
	elapsedTicks = 0

	id := RegisterWait()
	Tick()
	Tick()
	Tick()

	if got := ElapsedTicks(); got != 3 {
		t.Fatalf("ElapsedTicks() = %d, want 3", got)
	}
	got, err := GetTicks(id)
	if err != noTimerError {
		t.Fatalf("GetTicks returned error %v", err)
	}
	if got != 3 {
		t.Fatalf("GetTicks(id) = %d, want 3", got)
	}
}

func TestGetTicksUnknownID(t *testing.T) {
	tickWaits = nil
	if _, err := GetTicks(0); err != NoTicksAvailable {
		t.Fatalf("GetTicks(0) err = %v, want NoTicksAvailable", err)
	}
	if _, err := GetTicks(-1); err != NoTicksAvailable {
		t.Fatalf("GetTicks(-1) err = %v, want NoTicksAvailable", err)
	}
}

func TestRegisterWaitIndependentCounters(t *testing.T) {
	tickWaits = nil
	a := RegisterWait()
	Tick()
	b := RegisterWait()
	Tick()

	gotA, _ := GetTicks(a)
	gotB, _ := GetTicks(b)
	if gotA != 2 {
		t.Fatalf("counter a = %d, want 2", gotA)
	}
	if gotB != 1 {
		t.Fatalf("counter b = %d, want 1", gotB)
	}
}

func TestSetRejectsOutOfRangeDelay(t *testing.T) {
	if err := set(maxDelayMicros + 1); err != OutOfRange {
		t.Fatalf("set() err = %v, want OutOfRange", err)
	}
}

func TestTimerErrorStrings(t *testing.T) {
	cases := map[TimerError]string{
		OutOfRange:       "timer: delay out of range",
		NotActive:        "timer: counter not active",
		NoTicksAvailable: "timer: no ticks available for this registration",
	}
	for err, want := range cases {
		if got := err.Error(); got != want {
			t.Errorf("%v.Error() = %q, want %q", err, got, want)
		}
	}
}
