package vmm

import (
	"unsafe"

	"pinekernel/kernel/cpu"
	"pinekernel/kernel/mem"
	"pinekernel/kernel/mem/pmm"
)

var (
	// ptePtrFn returns a pointer to the supplied entry address. Tests
	// override this to point at heap-backed fake page tables instead of
	// real physical memory.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}

	// activePDTFrameFn returns the physical frame backing the PML4
	// currently loaded in CR3. Tests override it to avoid touching the
	// real control registers.
	activePDTFrameFn = func() pmm.Frame {
		return pmm.Frame(uintptr(cpu.ReadCR3()) >> mem.PageShift)
	}
)

// pageTableWalker is invoked by walk with the page table entry that
// corresponds to each level for a given virtual address. Returning false
// aborts the walk.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for virtAddr, starting from the
// currently active PML4 (as reported by CR3). Unlike the recursive
// self-mapping trick, each level's table is reached through the
// bootloader's physical-memory-offset window (tableVirtAddrFn), so no
// page table ever needs to map itself.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	tableAddr := tableVirtAddrFn(activePDTFrameFn())

	for level := uint8(0); level < pageLevels; level++ {
		entryIndex := (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr := tableAddr + (entryIndex << mem.PointerShift)

		pte := (*pageTableEntry)(ptePtrFn(entryAddr))
		if !walkFn(level, pte) {
			return
		}

		if level == pageLevels-1 {
			return
		}

		tableAddr = tableVirtAddrFn(pte.Frame())
	}
}
