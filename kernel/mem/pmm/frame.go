// Package pmm implements the physical frame allocator described in
// spec.md §4.B: it hands out unique 4 KiB-aligned physical frames sourced
// from the bootloader's memory map and never frees them.
package pmm

import (
	"math"

	"pinekernel/kernel/mem"
)

// Frame identifies a physical memory page by its page number (not its raw
// address -- multiply by mem.PageSize, or call Address, to get the byte
// address).
type Frame uintptr

// InvalidFrame is returned by allocators when they cannot satisfy a
// request.
const InvalidFrame = Frame(math.MaxUint64)

// Valid reports whether f is a real frame (as opposed to InvalidFrame).
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical byte address this frame represents.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}
