package multiboot

import (
	"reflect"
	"testing"
)

func TestVisitMemRegions(t *testing.T) {
	defer func() { info = nil }()

	SetBootInfo(&BootInfo{
		MemoryMap: []MemoryMapEntry{
			{PhysAddress: 0, Length: 0x1000, Type: MemAvailable},
			{PhysAddress: 0x1000, Length: 0x1000, Type: MemReserved},
			{PhysAddress: 0x2000, Length: 0x1000, Type: MemAvailable},
		},
	})

	var seen []uint64
	VisitMemRegions(func(e *MemoryMapEntry) bool {
		seen = append(seen, e.PhysAddress)
		return true
	})

	want := []uint64{0, 0x1000, 0x2000}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
}

func TestVisitMemRegionsAbort(t *testing.T) {
	defer func() { info = nil }()

	SetBootInfo(&BootInfo{
		MemoryMap: []MemoryMapEntry{
			{PhysAddress: 0, Type: MemAvailable},
			{PhysAddress: 1, Type: MemAvailable},
			{PhysAddress: 2, Type: MemAvailable},
		},
	})

	count := 0
	VisitMemRegions(func(e *MemoryMapEntry) bool {
		count++
		return e.PhysAddress != 1
	})

	if count != 2 {
		t.Fatalf("expected scan to abort after 2 entries, visited %d", count)
	}
}

func TestGetBootCmdLine(t *testing.T) {
	defer func() { info = nil }()

	SetBootInfo(&BootInfo{CmdLine: "sched=stride hz=1000 quiet"})

	got := GetBootCmdLine()
	want := map[string]string{"sched": "stride", "hz": "1000", "quiet": ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGetBootCmdLineEmpty(t *testing.T) {
	defer func() { info = nil }()
	SetBootInfo(&BootInfo{})

	if got := GetBootCmdLine(); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestMemoryEntryTypeString(t *testing.T) {
	specs := []struct {
		typ  MemoryEntryType
		want string
	}{
		{MemAvailable, "available"},
		{MemReserved, "reserved"},
		{MemAcpiReclaimable, "ACPI (reclaimable)"},
		{MemBadMemory, "bad memory"},
		{MemoryEntryType(99), "unknown"},
	}

	for _, spec := range specs {
		if got := spec.typ.String(); got != spec.want {
			t.Errorf("%d.String() = %q, want %q", spec.typ, got, spec.want)
		}
	}
}
