// Package kmain wires every other package in the tree together into the
// boot sequence spec.md §6 describes: rt0 hands off to Kmain once the GDT
// is loaded and a minimal stack is usable, and Kmain brings up memory,
// interrupts, the scheduler, device drivers and filesystem discovery in
// the order each one depends on the last.
package kmain

import (
	"strconv"

	"pinekernel/kernel"
	"pinekernel/kernel/cpu"
	"pinekernel/kernel/cpu/gdt"
	"pinekernel/kernel/drivers/ata"
	"pinekernel/kernel/drivers/keyboard"
	"pinekernel/kernel/drivers/serial"
	"pinekernel/kernel/fs/ext2"
	"pinekernel/kernel/fs/fat32"
	"pinekernel/kernel/fs/partition"
	"pinekernel/kernel/hal/multiboot"
	"pinekernel/kernel/irq"
	"pinekernel/kernel/irq/apic"
	"pinekernel/kernel/kfmt"
	"pinekernel/kernel/mem"
	"pinekernel/kernel/mem/heap"
	"pinekernel/kernel/mem/pmm"
	"pinekernel/kernel/mem/vmm"
	"pinekernel/kernel/sched"
	"pinekernel/kernel/task"
	"pinekernel/kernel/timer"
)

// heapSize is the fixed size of the kernel's general-purpose heap,
// reserved and fully mapped at boot (kernel/mem/heap has no growth path).
const heapSize = mem.Size(4 * 1024 * 1024)

// defaultTimeSlice is the tick count RRPolicy/StridePolicy give each
// thread before forcing a reschedule, used unless overridden.
const defaultTimeSlice = 10

var bootAlloc pmm.BootAllocator

// Kmain is the only Go symbol rt0 calls into. multibootInfoPtr points at
// the raw boot_info blob described in spec.md §6; kernelStart/kernelEnd
// are the physical addresses spanned by the running kernel image, so the
// frame allocator never hands out memory the kernel itself occupies.
//
// Kmain is not expected to return: its final idle loop runs forever.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetBootInfo(multiboot.ParseBootInfo(multibootInfoPtr))

	com1 := serial.New(serial.COM1)
	com1.Init()
	kfmt.SetOutputSink(com1)
	kernel.PanicSinkFn = func(s string) { com1.Write([]byte(s)) }

	kfmt.Printf("starting pinekernel\n")

	gdt.Init()
	cpu.Init()
	irq.Init()

	bootAlloc.Init(kernelStart, kernelEnd)
	vmm.SetFrameAllocator(bootAlloc.AllocFrame)
	vmm.Init()

	if err := heap.Init(bootAlloc.AllocFrame, heapSize); err != nil {
		kernel.Panic(err)
	}

	cmdline := multiboot.GetBootCmdLine()
	if hz, ok := cmdline["hz"]; ok {
		if v, convErr := strconv.Atoi(hz); convErr == nil && v > 0 {
			timer.SelectedHz = uint32(v)
		}
	}
	timer.Init()

	initLocalAPICOrPIC()

	// timer.Init already wired IRQ0 to Tick+EOI; re-register it so every
	// tick also drives the scheduler's sleep/reschedule bookkeeping,
	// per spec.md §4.K.
	irq.HandleException(irq.IRQ0, func(_ *irq.Frame, _ *irq.Regs) {
		timer.Tick()
		sched.Tick()
		irq.SendEOI(0)
	})

	keyboard.Init()
	sched.Init(selectPolicy(cmdline))

	executor := task.NewExecutor()
	executor.Spawn(keyboard.Task())

	cpu.EnableInterrupts()

	discoverFilesystems()

	for {
		executor.Run()
		sched.CheckReschedule()
		if executor.Idle() {
			cpu.Halt()
		}
	}
}

// initLocalAPICOrPIC tries to locate and enable the local APIC; if no
// MADT is found, or CPUID doesn't report APIC support, the 8259 PIC
// irq.Init already remapped stays the active interrupt controller.
func initLocalAPICOrPIC() {
	madt, err := apic.LocateMADT()
	if err != nil || !apic.Available(madt) {
		return
	}

	apic.Enable(madt)
	irq.EOIFn = func(uint8) { apic.EOI() }
	kfmt.Printf("local APIC enabled, %d cores detected\n", len(madt.Cores))
}

// selectPolicy picks the ready-queue policy named by the "sched" boot
// command line key (spec.md §9 Open Question, resolved by SPEC_FULL.md
// §1 into a boot-time choice), defaulting to round-robin.
func selectPolicy(cmdline map[string]string) sched.Policy {
	switch cmdline["sched"] {
	case "o1":
		return sched.NewO1Policy()
	case "stride":
		return sched.NewStridePolicy(defaultTimeSlice)
	case "workstealing":
		return sched.NewWorkStealingPolicy(1)
	default:
		return sched.NewRRPolicy(defaultTimeSlice)
	}
}

// discoverFilesystems probes every ATA drive, discovers each one's
// partition table, and tries to mount each partition as FAT32, falling
// back to a signature-only ext2 probe, per spec.md §4.I's "first whose
// signature matches claims the partition" (NTFS has no driver in this
// tree, so it is never attempted).
func discoverFilesystems() {
	for _, disk := range ata.Probe() {
		parts, scheme, err := partition.Discover(disk)
		if err != nil {
			kfmt.Printf("%s %s: no partition table (%s)\n", disk.Channel.String(), disk.Drive.String(), err.Message)
			continue
		}
		kfmt.Printf("%s %s: %d partition(s)\n", disk.Channel.String(), disk.Drive.String(), len(parts))

		for i, p := range parts {
			if _, mountErr := fat32.Mount(p); mountErr == nil {
				kfmt.Printf("  partition %d (scheme %d): FAT32\n", i, int(scheme))
				continue
			}
			if probeErr := ext2.Probe(p); probeErr == nil {
				kfmt.Printf("  partition %d (scheme %d): ext2\n", i, int(scheme))
				continue
			}
			kfmt.Printf("  partition %d (scheme %d): unrecognized filesystem\n", i, int(scheme))
		}
	}
}
