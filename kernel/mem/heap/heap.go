// Package heap implements the kernel's general-purpose allocator: a
// reserved virtual range, eagerly mapped in full at Init, served out of a
// single intrusive free list with first-fit placement, per spec.md §4.D.
package heap

import (
	"unsafe"

	"pinekernel/kernel"
	"pinekernel/kernel/mem"
	"pinekernel/kernel/mem/vmm"
	"pinekernel/kernel/sync"
)

// heapStart is the base virtual address of the heap's reserved range,
// chosen well clear of the bootloader's physical-memory window
// (multiboot.PhysToVirt) and any identity-mapped kernel image range so
// the two can never collide.
const heapStart uintptr = 0xffff900000000000

// Node is the free list's intrusive node, written directly into the
// first bytes of every free block. Every allocation is rounded up to at
// least sizeof(Node) so that whatever is handed out can always be
// relinked as a Node once freed.
type Node struct {
	size uintptr
	next *Node
}

var nodeSize = unsafe.Sizeof(Node{})

var (
	lock     sync.Spinlock
	freeList *Node

	// mapPageFn and initFreeListFn are swapped out by tests so Init can
	// be exercised without mapping real page tables or writing to the
	// fixed (and, off a real kernel, unmapped) heapStart address.
	mapPageFn      = vmm.Map
	initFreeListFn = initFreeList

	errOutOfMemory = &kernel.Error{Module: "heap", Message: "heap exhausted"}
)

// Init reserves a size-byte virtual range starting at heapStart, maps
// every page in it up front via allocFn (no on-demand heap-backing
// faults, unlike a general VMA range), and seeds the free list with one
// block spanning the whole range.
func Init(allocFn vmm.FrameAllocatorFn, size mem.Size) *kernel.Error {
	pageCount := size.Pages()

	for i := uint64(0); i < pageCount; i++ {
		frame, err := allocFn()
		if err != nil {
			return err
		}

		page := vmm.PageFromAddress(heapStart + uintptr(i)*uintptr(mem.PageSize))
		if err := mapPageFn(page, frame, vmm.FlagRW|vmm.FlagNoExecute, allocFn); err != nil {
			return err
		}
	}

	initFreeListFn(heapStart, uintptr(pageCount)*uintptr(mem.PageSize))
	return nil
}

// initFreeList points the free list at a single block spanning
// [base, base+size). Split out from Init so tests can seed the allocator
// against a real Go-backed buffer instead of the fixed heapStart address.
func initFreeList(base, size uintptr) {
	freeList = (*Node)(unsafe.Pointer(base))
	freeList.size = size
	freeList.next = nil
}

func alignUp(addr, align uintptr) uintptr {
	if align <= 1 {
		return addr
	}
	return (addr + align - 1) &^ (align - 1)
}

// Alloc returns the address of a free, align-aligned block of at least
// size bytes, walking the free list first-fit. size is rounded up to
// max(size, sizeof(Node)) so the block remains relinkable on Free.
// Returns errOutOfMemory if no block is large enough; spec.md §4.D
// treats that as fatal, so callers should kernel.Panic rather than try
// to recover.
//
// Alignment may leave slack on either side of the carved-out block. Any
// slack of at least sizeof(Node) is split off as its own free block;
// smaller slack is donated to this allocation rather than tracked, a
// small, bounded amount of internal fragmentation.
func Alloc(size, align uintptr) (uintptr, *kernel.Error) {
	if size < nodeSize {
		size = nodeSize
	}

	lock.Acquire()
	defer lock.Release()

	var prev *Node
	for cur := freeList; cur != nil; cur = cur.next {
		curAddr := uintptr(unsafe.Pointer(cur))
		dataAddr := alignUp(curAddr, align)
		frontSlack := dataAddr - curAddr
		needed := frontSlack + size

		if needed > cur.size {
			prev = cur
			continue
		}

		backSlack := cur.size - needed
		replacement := cur.next

		if backSlack >= nodeSize {
			tail := (*Node)(unsafe.Pointer(dataAddr + size))
			tail.size = backSlack
			tail.next = replacement
			replacement = tail
		}

		if frontSlack >= nodeSize {
			head := (*Node)(unsafe.Pointer(curAddr))
			head.size = frontSlack
			head.next = replacement
			replacement = head
		}

		if prev == nil {
			freeList = replacement
		} else {
			prev.next = replacement
		}

		return dataAddr, nil
	}

	return 0, errOutOfMemory
}

// Free returns a block previously handed out by Alloc to the free list,
// coalescing with an immediately adjacent free block on either side.
// size must be the same value passed to the matching Alloc call: there
// is no per-block header to recover it from, per spec.md §4.D's "no
// reallocation in place".
func Free(ptr, size uintptr) {
	if size < nodeSize {
		size = nodeSize
	}

	lock.Acquire()
	defer lock.Release()

	node := (*Node)(unsafe.Pointer(ptr))
	node.size = size

	var prev *Node
	cur := freeList
	for cur != nil && uintptr(unsafe.Pointer(cur)) < ptr {
		prev = cur
		cur = cur.next
	}
	node.next = cur

	if prev == nil {
		freeList = node
	} else {
		prev.next = node
	}

	if node.next != nil && ptr+node.size == uintptr(unsafe.Pointer(node.next)) {
		node.size += node.next.size
		node.next = node.next.next
	}

	if prev != nil && uintptr(unsafe.Pointer(prev))+prev.size == ptr {
		prev.size += node.size
		prev.next = node.next
	}
}
