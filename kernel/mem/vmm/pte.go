package vmm

import (
	"pinekernel/kernel"
	"pinekernel/kernel/hal/multiboot"
	"pinekernel/kernel/mem"
	"pinekernel/kernel/mem/pmm"
)

// ErrInvalidMapping is returned when looking up a virtual address that has
// no corresponding physical mapping.
var ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

// pageTableEntry is a single slot inside any of the four page table
// levels. It encodes a physical frame address plus a set of flags; the
// exact bit layout is architecture-dependent.
type pageTableEntry uintptr

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input
// flags set.
func (pte pageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) != 0
}

// SetFlags ORs the input flags into the entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uintptr(*pte) | uintptr(flags))
}

// ClearFlags clears the input flags from the entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uintptr(*pte) &^ uintptr(flags))
}

// Frame returns the physical frame this entry points to.
func (pte pageTableEntry) Frame() pmm.Frame {
	return pmm.Frame((uintptr(pte) & ptePhysPageMask) >> mem.PageShift)
}

// SetFrame updates the entry to point at the given physical frame.
func (pte *pageTableEntry) SetFrame(frame pmm.Frame) {
	*pte = pageTableEntry((uintptr(*pte) &^ ptePhysPageMask) | frame.Address())
}

// tableVirtAddrFn resolves the virtual address at which a page table
// occupying the given physical frame can be read/written. The default
// implementation relies on the bootloader's physical-memory window
// (multiboot.PhysToVirt); tests override it to run entirely on
// heap-backed fake tables.
var tableVirtAddrFn = func(frame pmm.Frame) uintptr {
	return uintptr(multiboot.PhysToVirt(frame.Address()))
}

// pteForAddress returns the final page table entry that corresponds to a
// virtual address, walking every intermediate level. Returns
// ErrInvalidMapping if any level along the path is not present.
func pteForAddress(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *pageTableEntry
	)

	walk(virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			entry = nil
			err = ErrInvalidMapping
			return false
		}

		entry = pte
		return true
	})

	return entry, err
}
