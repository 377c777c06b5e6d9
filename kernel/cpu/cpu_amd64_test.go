package cpu

import "testing"

func TestIsIntel(t *testing.T) {
	defer func(orig func(uint32) (uint32, uint32, uint32, uint32)) { cpuidFn = orig }(cpuidFn)

	specs := []struct {
		name          string
		ebx, ecx, edx uint32
		expIsIntel    bool
	}{
		{"intel", 0x756e6547, 0x6c65746e, 0x49656e69, true},
		{"amd", 0x68747541, 0x444d4163, 0x69746e65, false},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			cpuidFn = func(uint32) (uint32, uint32, uint32, uint32) {
				return 0, spec.ebx, spec.ecx, spec.edx
			}

			if got := IsIntel(); got != spec.expIsIntel {
				t.Errorf("IsIntel() = %v, want %v", got, spec.expIsIntel)
			}
		})
	}
}

func TestHasAPIC(t *testing.T) {
	defer func(orig func(uint32) (uint32, uint32, uint32, uint32)) { cpuidFn = orig }(cpuidFn)

	cpuidFn = func(leaf uint32) (uint32, uint32, uint32, uint32) {
		if leaf != 1 {
			t.Fatalf("expected leaf 1, got %d", leaf)
		}
		return 0, 0, 0, 1 << 9
	}

	if !HasAPIC() {
		t.Fatal("expected HasAPIC to report true when EDX bit 9 is set")
	}

	cpuidFn = func(uint32) (uint32, uint32, uint32, uint32) { return 0, 0, 0, 0 }
	if HasAPIC() {
		t.Fatal("expected HasAPIC to report false when EDX bit 9 is clear")
	}
}
