package vmm

import "pinekernel/kernel/cpu"

// flushTLBEntry invalidates the TLB entry for a single virtual address on
// the calling CPU. Cross-CPU TLB shootdown is not performed (spec.md
// §4.C ordering guarantee covers only the calling CPU).
func flushTLBEntry(virtAddr uintptr) {
	cpu.FlushTLBEntry(virtAddr)
}
