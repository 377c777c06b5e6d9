package kernel

import (
	"testing"
	"unsafe"
)

func TestMemset(t *testing.T) {
	buf := make([]byte, 37)
	addr := uintptr(unsafe.Pointer(&buf[0]))

	Memset(addr, 0xAB, uintptr(len(buf)))

	for i, b := range buf {
		if b != 0xAB {
			t.Fatalf("byte %d: expected 0xAB, got 0x%x", i, b)
		}
	}
}

func TestMemsetZeroSize(t *testing.T) {
	buf := []byte{1, 2, 3}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	Memset(addr, 0, 0)
	if buf[0] != 1 || buf[1] != 2 || buf[2] != 3 {
		t.Fatalf("Memset with size 0 must not touch the buffer, got %v", buf)
	}
}

func TestMemcopy(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7}
	dst := make([]byte, len(src))

	Memcopy(uintptr(unsafe.Pointer(&src[0])), uintptr(unsafe.Pointer(&dst[0])), uintptr(len(src)))

	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, src[i], dst[i])
		}
	}
}

func TestErrorInterface(t *testing.T) {
	err := &Error{Module: "test", Message: "boom"}
	if err.Error() != "boom" {
		t.Fatalf("expected %q, got %q", "boom", err.Error())
	}
}

func TestPanicHalts(t *testing.T) {
	defer func(origSink func(string), origHalt func()) {
		PanicSinkFn = origSink
		HaltFn = origHalt
	}(PanicSinkFn, HaltFn)

	var sunk string
	haltCalled := false
	PanicSinkFn = func(s string) { sunk = s }
	HaltFn = func() { haltCalled = true }

	Panic(&Error{Module: "m", Message: "boom"})

	if sunk == "" {
		t.Fatal("expected Panic to write to the sink")
	}
	if !haltCalled {
		t.Fatal("expected Panic to call HaltFn")
	}
}
