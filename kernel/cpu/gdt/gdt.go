// Package gdt builds the kernel's Global Descriptor Table and Task State
// Segment, per spec.md §4.E: null, kernel code, user code, user data,
// then the TSS descriptor, with the TSS's IST[0] pointing at a dedicated
// double-fault stack.
package gdt

import (
	"unsafe"

	"pinekernel/kernel/cpu"
)

// Selector indexes one of the GDT's 8-byte descriptors, shifted left 3
// (the low 3 bits of a real segment selector carry RPL/TI; TI is always
// zero here, and RPL is 3 on the user selectors and 0 on the rest).
type Selector uint16

const (
	NullSelector     Selector = 0
	CodeSelector     Selector = 1 << 3
	UserCodeSelector Selector = 2<<3 | 3
	UserDataSelector Selector = 3<<3 | 3
	tssSelector      Selector = 4 << 3
)

// descriptor flag/access bits, amd64 long-mode layout (OSDev "GDT" wiki).
const (
	accessPresent   = 1 << 7
	accessNotSystem = 1 << 4
	accessExec      = 1 << 3
	accessRW        = 1 << 1

	// flagLongMode is the descriptor's L bit (bit 1 of the 4-bit flags
	// nibble at bits 52-55), which must be set on a 64-bit code segment.
	flagLongMode = 1 << 1

	tssAccessPresent = 1 << 7
	tssAccessType    = 0x9 // 64-bit TSS (available)
)

// entryCount is null + kernel code + user code + user data + a 16-byte
// TSS descriptor (which occupies two 8-byte slots).
const entryCount = 6

var gdt [entryCount]uint64

// doubleFaultStackSize is the size of the dedicated stack TSS IST[0]
// points at, per spec.md §4.E; no IDT gate selects that slot (see
// irq.HandleIRQWithIST). Matches the teacher's 4 MiB KERNEL_STACK_SIZE.
const doubleFaultStackSize = 4 * 1024 * 1024

var doubleFaultStack [doubleFaultStackSize]byte

// taskStateSegment is the amd64 64-bit TSS layout: reserved0, rsp[0..2],
// reserved1, ist[1..7], reserved2, iomapBase.
type taskStateSegment struct {
	reserved0 uint32
	rsp       [3]uint64
	reserved1 uint64
	ist       [7]uint64
	reserved2 uint64
	iomapBase uint16
}

var tss taskStateSegment

type gdtRegister struct {
	limit uint16
	base  uint64
}

var gdtReg gdtRegister

// loadGDTFn and loadTRFn indirect through cpu so tests can observe that
// Init reaches them without executing a real LGDT/LTR.
var (
	loadGDTFn        = cpu.LoadGDT
	loadTRFn         = cpu.LoadTaskRegister
	reloadSegmentsFn = reloadSegments
)

func codeSegmentDescriptor(dpl uint8) uint64 {
	access := uint64(accessPresent | accessNotSystem | accessExec | accessRW)
	access |= uint64(dpl) << 5
	return access<<40 | flagLongMode<<52
}

func dataSegmentDescriptor(dpl uint8) uint64 {
	access := uint64(accessPresent | accessNotSystem | accessRW)
	access |= uint64(dpl) << 5
	return access << 40
}

func tssDescriptor(base uintptr, limit uint32) (low, high uint64) {
	low = uint64(limit & 0xFFFF)
	low |= (uint64(base) & 0xFFFFFF) << 16
	low |= uint64(tssAccessPresent|tssAccessType) << 40
	low |= uint64((limit>>16)&0xF) << 48
	low |= ((uint64(base) >> 24) & 0xFF) << 56

	high = (uint64(base) >> 32) & 0xFFFFFFFF
	return low, high
}

// Init builds the GDT and TSS, points IST[0] at doubleFaultStack, loads
// the GDTR, reloads every segment register, and loads the task register.
// spec.md §4.F's double-fault handler contract requires IST index 0 to
// reference this stack so a stack-overflow-induced double fault always
// runs with a known-good stack.
func Init() {
	stackTop := uintptr(unsafe.Pointer(&doubleFaultStack[0])) + doubleFaultStackSize
	tss.ist[0] = uint64(stackTop)

	gdt[0] = 0
	gdt[1] = codeSegmentDescriptor(0)
	gdt[2] = codeSegmentDescriptor(3)
	gdt[3] = dataSegmentDescriptor(3)

	tssBase := uintptr(unsafe.Pointer(&tss))
	tssLimit := uint32(unsafe.Sizeof(tss) - 1)
	low, high := tssDescriptor(tssBase, tssLimit)
	gdt[4] = low
	gdt[5] = high

	gdtReg.limit = uint16(unsafe.Sizeof(gdt) - 1)
	gdtReg.base = uint64(uintptr(unsafe.Pointer(&gdt[0])))

	loadGDTFn(uintptr(unsafe.Pointer(&gdtReg)))
	reloadSegmentsFn(uint16(CodeSelector))
	loadTRFn(uint16(tssSelector))
}
