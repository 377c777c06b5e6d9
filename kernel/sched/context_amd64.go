package sched

import "unsafe"

// Context mirrors the layout Switch leaves on a thread's own stack after
// saving it: the six callee-saved registers SysV64 guarantees survive a
// call, in push order, immediately above the return address the CALL
// instruction that entered Switch already placed there, per spec.md §4.K.
type Context struct {
	R15, R14, R13, R12, RBP, RBX uintptr
	RIP                          uintptr
}

var contextSize = unsafe.Sizeof(Context{})

// trampolineAddr holds threadTrampoline's entry address. It is populated
// by a DATA directive in context_amd64.s, the same way gate's
// gateStubTable is filled in from stubs_amd64.s, rather than by reflecting
// on a Go func value.
var trampolineAddr uintptr

// writeInitialContext builds the Context a freshly spawned thread needs at
// its very first switch-in: RIP points at threadTrampoline rather than
// directly at the entry function, so the entry function is reached
// through an ordinary CALL (and Go's regular ABI0 calling convention)
// instead of needing to match Switch's raw register handoff; tid travels
// through RBX, the one register threadTrampoline is guaranteed to still
// hold untouched.
func writeInitialContext(addr, tid uintptr) {
	ctx := (*Context)(unsafe.Pointer(addr))
	*ctx = Context{RIP: trampolineAddr, RBX: tid}
}

// Switch saves the calling thread's callee-saved registers onto its own
// stack, records the resulting stack pointer at *from, loads the stack
// pointer from *to, restores the other thread's callee-saved registers
// from it, and returns into whatever RIP sits on top of that stack:
// either back into a previous Switch call, or into threadTrampoline for a
// thread that has never run before.
func Switch(from, to *uintptr)
