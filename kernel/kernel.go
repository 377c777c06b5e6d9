// Package kernel contains types and helpers shared by every other package
// in the tree. It has no dependencies of its own so that it can be safely
// imported from the earliest stages of boot, before a heap allocator or
// logging sink exists.
package kernel

import (
	"reflect"
	"unsafe"
)

// Error describes a kernel error. All kernel errors are defined as global
// variables that are pointers to Error. This stems from the fact that the Go
// allocator may not be available yet when the error needs to be constructed,
// so we cannot rely on errors.New or fmt.Errorf.
type Error struct {
	// Module is the package that generated the error.
	Module string

	// Message is a short, human readable description of the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// PanicSinkFn is invoked by Panic before halting the CPU. It is swapped out
// by kernel/kmain once a real output sink (serial, console) is available;
// until then it defaults to a no-op so that early panics do not themselves
// fault.
var PanicSinkFn = func(string) {}

// HaltFn stops the CPU. It is assigned by kernel/cpu during arch init; tests
// override it to verify that Panic halts exactly once.
var HaltFn = func() {}

// Panic renders err to the active sink and halts the CPU through HaltFn;
// once kernel/cpu has installed the real halt loop, Panic never returns.
// Callers that want a register dump print it before calling Panic. It is called
// Panic rather than relying on the builtin panic so that the compiler does
// not treat the call site as dead code and eliminate it.
func Panic(err *Error) {
	if err != nil {
		PanicSinkFn("panic: [" + err.Module + "] " + err.Message + "\n")
	} else {
		PanicSinkFn("panic: unknown error\n")
	}
	HaltFn()
}

// Memset sets size bytes at the given address to the supplied value. Instead
// of looping byte-by-byte it makes log2(size) copy calls, which is
// considerably faster since page-aligned regions are the common case.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst. The regions must not overlap.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: src,
	}))
	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: dst,
	}))

	copy(dstSlice, srcSlice)
}
