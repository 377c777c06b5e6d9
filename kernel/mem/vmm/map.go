package vmm

import (
	"pinekernel/kernel"
	"pinekernel/kernel/mem"
	"pinekernel/kernel/mem/pmm"
)

var (
	// flushTLBEntryFn is overridden by tests; invalidates a single TLB
	// entry on the calling CPU.
	flushTLBEntryFn = flushTLBEntry

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}

	// errAlreadyMapped is returned by Map when the target page is
	// already present and points at a different frame.
	errAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page is already mapped to a different frame"}
)

// FrameAllocatorFn allocates a physical frame, used to materialize
// missing intermediate page tables.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// Map establishes a mapping between a virtual page and a physical frame,
// walking the currently active page tables and allocating any missing
// intermediate level via allocFn. Returns errAlreadyMapped if the page is
// already present and points at a different frame.
func Map(page Page, frame pmm.Frame, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			if pte.HasFlags(FlagPresent) && pte.Frame() != frame {
				err = errAlreadyMapped
				return false
			}

			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(FlagPresent | flags)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		if !pte.HasFlags(FlagPresent) {
			var newTableFrame pmm.Frame
			newTableFrame, err = allocFn()
			if err != nil {
				return false
			}

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW)

			kernel.Memset(tableVirtAddrFn(newTableFrame), 0, uintptr(mem.PageSize))
		}

		return true
	})

	return err
}

// Unmap clears the mapping previously installed for page, flushes its TLB
// entry and returns the frame that was freed. The frame is not returned
// to the physical frame allocator; the caller decides what to do with it.
func Unmap(page Page) (pmm.Frame, *kernel.Error) {
	var (
		err   *kernel.Error
		freed pmm.Frame
	)

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			if !pte.HasFlags(FlagPresent) {
				err = ErrInvalidMapping
				return false
			}

			freed = pte.Frame()
			pte.ClearFlags(FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	if err != nil {
		return 0, err
	}
	return freed, nil
}
