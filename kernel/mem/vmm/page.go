package vmm

import "pinekernel/kernel/mem"

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << mem.PageShift)
}

// PageFromAddress returns the Page that contains the given virtual
// address. Non page-aligned addresses are rounded down to the page that
// contains them.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr &^ (uintptr(mem.PageSize) - 1)) >> mem.PageShift)
}
