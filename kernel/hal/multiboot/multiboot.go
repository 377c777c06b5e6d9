// Package multiboot decodes the boot_info structure handed to the kernel
// entry point by the bootloader (spec.md §6). Unlike the full multiboot2
// tag stream the teacher parses, spec.md's boot contract is the simpler
// "physical_memory_offset + memory map" shape used by a bootloader-style
// loader, so this package reads that layout directly instead of walking
// tag headers. The kernel command line (GetBootCmdLine) is a plain string
// split on whitespace.
package multiboot

import (
	"reflect"
	"strings"
	"unsafe"
)

// MemoryEntryType classifies a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates RAM usable by the frame allocator.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates memory that must never be handed out.
	MemReserved

	// MemAcpiReclaimable indicates ACPI tables that can be reclaimed
	// after they have been parsed.
	MemAcpiReclaimable

	// MemBadMemory indicates memory the firmware reported as faulty.
	MemBadMemory
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemBadMemory:
		return "bad memory"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes one physical memory region, as reported by the
// bootloader's memory map (spec.md §6: `{start, end, type}`).
type MemoryMapEntry struct {
	PhysAddress uint64
	Length      uint64
	Type        MemoryEntryType
}

// MemRegionVisitor is invoked once per memory map entry by VisitMemRegions.
// Returning false aborts the scan early.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

// BootInfo mirrors the boot_info structure passed to kernel_entry: the
// offset at which all physical memory is identity-mapped by the
// bootloader-built PML4, plus the memory map and an optional command line.
type BootInfo struct {
	PhysicalMemoryOffset uint64
	MemoryMap            []MemoryMapEntry
	CmdLine              string
}

var info *BootInfo

// SetBootInfo records the BootInfo handed to the kernel by kernel_entry.
// PhysicalMemoryOffset, VisitMemRegions and PhysToVirt panic with a
// nil-pointer fault if called before this has run (GetBootCmdLine returns
// an empty map instead), matching spec.md §9's "explicit init() that
// must run before any consumer" guidance.
func SetBootInfo(bi *BootInfo) {
	info = bi
}

// PhysicalMemoryOffset returns the virtual offset at which physical memory
// is identity-mapped, i.e. physAddr is reachable at PhysicalMemoryOffset()+physAddr.
func PhysicalMemoryOffset() uintptr {
	return uintptr(info.PhysicalMemoryOffset)
}

// VisitMemRegions invokes visitor once for every memory map entry.
func VisitMemRegions(visitor MemRegionVisitor) {
	for i := range info.MemoryMap {
		if !visitor(&info.MemoryMap[i]) {
			return
		}
	}
}

// GetBootCmdLine parses the kernel command line into key=value pairs,
// split on whitespace, the way the teacher's multiboot package parses the
// bootloader-supplied command line for console/font overrides. This spec
// repurposes it to select the scheduler policy and timer frequency at boot
// (SPEC_FULL.md §1).
func GetBootCmdLine() map[string]string {
	out := make(map[string]string)
	if info == nil || info.CmdLine == "" {
		return out
	}

	for _, tok := range strings.Fields(info.CmdLine) {
		if idx := strings.IndexByte(tok, '='); idx >= 0 {
			out[tok[:idx]] = tok[idx+1:]
		} else {
			out[tok] = ""
		}
	}
	return out
}

// PhysToVirt returns a virtual pointer usable to read/write the physical
// address phys, relying on the bootloader's identity mapping at
// PhysicalMemoryOffset. This is the "physical memory window" spec.md
// §4.C requires every mapper operation to be built on.
func PhysToVirt(phys uintptr) unsafe.Pointer {
	return unsafe.Pointer(PhysicalMemoryOffset() + phys)
}

// rawMemoryMapEntry is one {start, end, type} record as rt0 lays it out
// at MemoryMapAddr, padded to a 24-byte stride so the type field stays
// 4-byte aligned.
type rawMemoryMapEntry struct {
	Start uint64
	End   uint64
	Type  uint32
	_     uint32
}

// rawBootInfo mirrors the boot_info struct spec.md §6 says rt0 receives
// from the bootloader: a physical memory offset, a {addr, count} pair
// describing the memory map array, and an optional {addr, len} command
// line string. Every address here is already reachable directly (rt0
// runs before the higher-half physical memory window this package itself
// exposes via PhysToVirt is mapped).
type rawBootInfo struct {
	PhysicalMemoryOffset uint64
	MemoryMapAddr        uint64
	MemoryMapCount       uint64
	CmdLineAddr          uint64
	CmdLineLen           uint64
}

// byteSliceAt builds a []byte over addr..addr+length without a copy, the
// same reflect.SliceHeader overlay kernel.Memset/Memcopy use to avoid an
// unsafe pointer arithmetic chain.
func byteSliceAt(addr uintptr, length int) []byte {
	if length == 0 {
		return nil
	}
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  length,
		Cap:  length,
	}))
}

// ParseBootInfo reads the raw boot_info blob rt0 passes to Kmain at ptr
// and converts it into a BootInfo. Kmain calls this once, before any
// other package in the tree touches multiboot state, and hands the
// result to SetBootInfo.
func ParseBootInfo(ptr uintptr) *BootInfo {
	raw := *(*rawBootInfo)(unsafe.Pointer(ptr))

	bi := &BootInfo{
		PhysicalMemoryOffset: raw.PhysicalMemoryOffset,
	}

	if raw.MemoryMapCount > 0 {
		entries := *(*[]rawMemoryMapEntry)(unsafe.Pointer(&reflect.SliceHeader{
			Data: uintptr(raw.MemoryMapAddr),
			Len:  int(raw.MemoryMapCount),
			Cap:  int(raw.MemoryMapCount),
		}))
		bi.MemoryMap = make([]MemoryMapEntry, len(entries))
		for i, e := range entries {
			bi.MemoryMap[i] = MemoryMapEntry{
				PhysAddress: e.Start,
				Length:      e.End - e.Start,
				Type:        MemoryEntryType(e.Type),
			}
		}
	}

	if raw.CmdLineLen > 0 {
		bi.CmdLine = string(byteSliceAt(uintptr(raw.CmdLineAddr), int(raw.CmdLineLen)))
	}

	return bi
}
