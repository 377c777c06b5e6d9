package vmm

import "testing"

func TestPageAddress(t *testing.T) {
	if got, want := Page(5).Address(), uintptr(5<<12); got != want {
		t.Fatalf("Address() = %#x, want %#x", got, want)
	}
}

func TestPageFromAddress(t *testing.T) {
	specs := []struct {
		addr uintptr
		want Page
	}{
		{0, 0},
		{0xFFF, 0},
		{0x1000, 1},
		{0x1001, 1},
		{0x401000, 0x401},
	}

	for _, spec := range specs {
		if got := PageFromAddress(spec.addr); got != spec.want {
			t.Errorf("PageFromAddress(%#x) = %d, want %d", spec.addr, got, spec.want)
		}
	}
}
