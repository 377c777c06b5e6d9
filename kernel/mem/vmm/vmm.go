package vmm

import (
	"pinekernel/kernel"
	"pinekernel/kernel/cpu"
	"pinekernel/kernel/irq"
	"pinekernel/kernel/kfmt"
	"pinekernel/kernel/mem"
)

// errUnrecoverableFault is reported to kernel.Panic when a page fault
// cannot be satisfied by on-demand mapping or copy-on-write.
var errUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "unrecoverable page fault"}

// readCR2Fn is overridden by tests; on real hardware it reads the
// faulting address the CPU recorded for the last page fault.
var readCR2Fn = func() uintptr { return uintptr(cpu.ReadCR2()) }

// frameAllocator backs the frames Map and the page fault handler hand out
// for missing intermediate tables and on-demand/CoW pages. It is nil
// until SetFrameAllocator is called during boot.
var frameAllocator FrameAllocatorFn

// SetFrameAllocator installs the allocator used for every subsequent
// Map/page-fault call. kernel/kmain wires this to pmm.AllocFrame once the
// boot memory map has been parsed.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// Init wires the page fault and general protection fault vectors. It
// must run after irq.Init has installed the default exception handlers,
// since SetPageFaultHandler overrides the PageFaultException entry they
// left in place.
func Init() {
	irq.SetPageFaultHandler(pageFaultHandler)
	irq.HandleExceptionWithCode(irq.GPFException, generalProtectionFaultHandler)
}

// pageFaultHandler implements spec.md §4.C's on-demand mapping contract:
// a fault on a page with no mapping at all is treated as lazy
// stack-growth or lazy heap backing and satisfied by installing a fresh
// writable frame; a protection violation (PRESENT already set in the
// error code) is only recovered if the page is marked copy-on-write,
// otherwise it is logged and the kernel panics.
func pageFaultHandler(errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	faultAddress := readCR2Fn()
	faultPage := PageFromAddress(faultAddress)

	const presentBit = 1 << 0

	var pageEntry *pageTableEntry
	walk(faultPage.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		present := pte.HasFlags(FlagPresent)
		if pteLevel == pageLevels-1 && present {
			pageEntry = pte
		}
		return present
	})

	if errorCode&presentBit == 0 {
		if err := reserveZeroedFrame(faultPage); err != nil {
			nonRecoverablePageFault(faultAddress, errorCode, frame, regs, err)
			return
		}
		return
	}

	if pageEntry != nil && !pageEntry.HasFlags(FlagRW) && pageEntry.HasFlags(FlagCopyOnWrite) {
		if err := resolveCopyOnWrite(faultPage, pageEntry); err != nil {
			nonRecoverablePageFault(faultAddress, errorCode, frame, regs, err)
			return
		}
		return
	}

	nonRecoverablePageFault(faultAddress, errorCode, frame, regs, errUnrecoverableFault)
}

// reserveZeroedFrame allocates a fresh frame and maps it present/writable
// at page, zeroing its contents first.
func reserveZeroedFrame(page Page) *kernel.Error {
	newFrame, err := frameAllocator()
	if err != nil {
		return err
	}

	kernel.Memset(tableVirtAddrFn(newFrame), 0, uintptr(mem.PageSize))
	return Map(page, newFrame, FlagRW|FlagNoExecute, frameAllocator)
}

// resolveCopyOnWrite copies the faulting page's contents into a freshly
// allocated frame, then remaps the page writable and clears the
// copy-on-write flag. Because every physical frame is already reachable
// through the bootloader's physical-memory window, no temporary mapping
// is needed to read the old frame before remapping it.
func resolveCopyOnWrite(page Page, pageEntry *pageTableEntry) *kernel.Error {
	newFrame, err := frameAllocator()
	if err != nil {
		return err
	}

	srcAddr := tableVirtAddrFn(pageEntry.Frame())
	dstAddr := tableVirtAddrFn(newFrame)
	kernel.Memcopy(srcAddr, dstAddr, uintptr(mem.PageSize))

	pageEntry.ClearFlags(FlagCopyOnWrite)
	pageEntry.SetFlags(FlagPresent | FlagRW)
	pageEntry.SetFrame(newFrame)
	flushTLBEntryFn(page.Address())
	return nil
}

func nonRecoverablePageFault(faultAddress uintptr, errorCode uint64, frame *irq.Frame, regs *irq.Regs, err *kernel.Error) {
	kfmt.Printf("\npage fault while accessing address: 0x%16x\nreason: ", faultAddress)
	switch errorCode {
	case 0:
		kfmt.Printf("read from non-present page")
	case 1:
		kfmt.Printf("page protection violation (read)")
	case 2:
		kfmt.Printf("write to non-present page")
	case 3:
		kfmt.Printf("page protection violation (write)")
	case 4:
		kfmt.Printf("page-fault in user-mode")
	case 8:
		kfmt.Printf("page table has reserved bit set")
	case 16:
		kfmt.Printf("instruction fetch")
	default:
		kfmt.Printf("unknown")
	}

	kfmt.Printf("\n\n")
	regs.Print()
	frame.Print()

	kernel.Panic(err)
}

// generalProtectionFaultHandler logs the faulting instruction pointer and
// registers, then panics; spec.md §4.F lists gp as non-recoverable.
func generalProtectionFaultHandler(errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	kfmt.Printf("\ngeneral protection fault (error code %d)\n", errorCode)
	regs.Print()
	frame.Print()
	kernel.Panic(&kernel.Error{Module: "vmm", Message: "general protection fault"})
}
