package pmm

import (
	"pinekernel/kernel"
	"pinekernel/kernel/hal/multiboot"
	"pinekernel/kernel/mem"
)

// ErrOutOfMemory is returned once every usable frame has been handed out.
var ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

// BootAllocator is a rudimentary physical frame allocator used to
// bootstrap the kernel before any more advanced allocator (a buddy
// allocator, a bitmap allocator, ...) could be built on top of it. It
// scans the bootloader-reported memory map and returns the next
// available free frame; frames are never freed (spec.md §4.B: "No
// freeing; allocation is monotonic").
//
// For identical memory maps and call counts the allocator always returns
// the same sequence of frames (spec.md §4.B determinism clause), which is
// what lets AllocFrame be exercised from plain table tests without any
// hardware.
type BootAllocator struct {
	allocCount uint64

	lastAllocFrame Frame

	kernelStartAddr, kernelEndAddr   uintptr
	kernelStartFrame, kernelEndFrame Frame
}

// Init sets up the allocator, reserving the page-aligned range spanned by
// the running kernel image so it is never handed out as a free frame.
func (a *BootAllocator) Init(kernelStart, kernelEnd uintptr) {
	pageSizeMinus1 := uintptr(mem.PageSize - 1)
	a.kernelStartAddr = kernelStart
	a.kernelEndAddr = kernelEnd
	a.kernelStartFrame = Frame((kernelStart &^ pageSizeMinus1) >> mem.PageShift)
	a.kernelEndFrame = Frame(((kernelEnd+pageSizeMinus1)&^pageSizeMinus1)>>mem.PageShift) - 1
}

// AllocFrame scans the memory regions reported by the bootloader and
// reserves the next available free frame, skipping reserved regions and
// the frames occupied by the running kernel image.
func (a *BootAllocator) AllocFrame() (Frame, *kernel.Error) {
	err := ErrOutOfMemory

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable || region.Length < uint64(mem.PageSize) {
			return true
		}

		pageSizeMinus1 := uint64(mem.PageSize - 1)
		regionStartFrame := Frame(((region.PhysAddress + pageSizeMinus1) &^ pageSizeMinus1) >> mem.PageShift)
		regionEndFrame := Frame(((region.PhysAddress+region.Length)&^pageSizeMinus1)>>mem.PageShift) - 1

		if a.lastAllocFrame >= regionEndFrame && a.allocCount != 0 {
			return true
		}

		switch {
		case a.lastAllocFrame < regionStartFrame || a.allocCount == 0:
			// Either we just moved into this region, or this is the very
			// first allocation ever made.
			a.lastAllocFrame = regionStartFrame
		default:
			a.lastAllocFrame++
		}

		if a.kernelEndAddr > a.kernelStartAddr &&
			a.lastAllocFrame >= a.kernelStartFrame && a.lastAllocFrame <= a.kernelEndFrame {
			// The next frame would land on the kernel image; skip past it.
			a.lastAllocFrame = a.kernelEndFrame + 1
		}

		if a.lastAllocFrame > regionEndFrame {
			return true
		}

		err = nil
		return false
	})

	if err != nil {
		return InvalidFrame, ErrOutOfMemory
	}

	a.allocCount++
	return a.lastAllocFrame, nil
}
