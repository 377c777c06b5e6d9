package gate

import (
	"bytes"
	"testing"
)

func TestInstallIDTBuildsAllGates(t *testing.T) {
	origLoad := loadIDTFn
	defer func() { loadIDTFn = origLoad }()

	var loadedBase uintptr
	loadIDTFn = func(base uintptr) { loadedBase = base }

	// gateStubTable is read-only data filled in by stubs_amd64.s.
	want := gateStubTable[5]

	installIDT()

	if loadedBase != idtAddr() {
		t.Fatalf("installIDT did not load the real IDT base")
	}
	if got := idt[5].offset(); got != want {
		t.Fatalf("gate 5 offset = %#x, want %#x", got, want)
	}
	if idt[5].selector != kernelCodeSelector {
		t.Fatalf("gate 5 selector = %#x, want %#x", idt[5].selector, kernelCodeSelector)
	}
	if idt[5].typeAttr != idtTypeInterruptGate {
		t.Fatalf("gate 5 typeAttr = %#x, want %#x", idt[5].typeAttr, idtTypeInterruptGate)
	}
}

func TestSetGateIST(t *testing.T) {
	setGateIST(8, 1)
	if idt[8].ist != 1 {
		t.Fatalf("gate 8 ist = %d, want 1", idt[8].ist)
	}
	setGateIST(8, 0)
}

func TestHandleInterruptDispatches(t *testing.T) {
	defer func() { handlerTable[42] = nil }()

	var got *Registers
	HandleInterrupt(InterruptNumber(42), 0, func(r *Registers) { got = r })

	regs := &Registers{RAX: 7}
	dispatch(42, regs)

	if got != regs {
		t.Fatalf("registered handler did not receive the dispatched frame")
	}
}

func TestDispatchFallsBackToDefaultHandler(t *testing.T) {
	origDefault := defaultHandler
	origHalt := haltFn
	defer func() { defaultHandler = origDefault; haltFn = origHalt }()

	var haltCalls int
	haltFn = func() { haltCalls++ }

	var calledVector uint8
	defaultHandler = func(v uint8, r *Registers) { calledVector = v }

	dispatch(99, &Registers{})

	if calledVector != 99 {
		t.Fatalf("defaultHandler called with vector %d, want 99", calledVector)
	}
	_ = haltCalls
}

func TestRegistersDumpTo(t *testing.T) {
	var buf bytes.Buffer
	r := &Registers{RAX: 1, RIP: 2}
	r.DumpTo(&buf)
	if buf.Len() == 0 {
		t.Fatalf("DumpTo wrote nothing")
	}
}

func TestHasErrorCode(t *testing.T) {
	cases := map[InterruptNumber]bool{
		DoubleFault:        true,
		PageFaultException: true,
		GPFException:       true,
		DivideByZero:       false,
		IRQ0:               false,
	}
	for num, want := range cases {
		if got := hasErrorCode(num); got != want {
			t.Errorf("hasErrorCode(%d) = %v, want %v", num, got, want)
		}
	}
}
