package apic

import (
	"reflect"
	"unsafe"

	"pinekernel/kernel"
	"pinekernel/kernel/hal/multiboot"
)

// rsdpSignature is the 8-byte marker that opens the RSDP, always
// paragraph (16-byte) aligned within the regions it can appear in.
var rsdpSignature = [8]byte{'R', 'S', 'D', ' ', 'P', 'T', 'R', ' '}

// ebdaStart/ebdaEnd and biosAreaStart/biosAreaEnd are the two physical
// ranges below 1 MiB the ACPI spec says the RSDP can live in: the
// Extended BIOS Data Area and the main BIOS read-only area.
const (
	ebdaStart     = 0x80000
	ebdaEnd       = 0x9ffff
	biosAreaStart = 0xe0000
	biosAreaEnd   = 0xfffff
	rsdpAlign     = 16
)

// rsdpDescriptor is the ACPI 1.0 RSDP layout; only rsdtAddr is read, so
// the ACPI 2.0 XSDT fields that would follow are not modeled.
type rsdpDescriptor struct {
	Signature [8]byte
	Checksum  uint8
	OEMID     [6]byte
	Revision  uint8
	RsdtAddr  uint32
}

const rsdpDescriptorSize = 20 // 8 + 1 + 6 + 1 + 4, the ACPI 1.0 fields above

var errNoMADT = &kernel.Error{Module: "apic", Message: "no APIC entry in RSDT"}

func physBytes(phys uintptr, length int) []byte {
	addr := uintptr(multiboot.PhysToVirt(phys))
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  length,
		Cap:  length,
	}))
}

// searchRSDP scans the EBDA and main BIOS area for the RSDP signature,
// 16 bytes at a time (the alignment every implementation in practice
// uses), the way the teacher-adjacent reference driver's search_rsdp
// does it with a 4 KiB page stride over a byte scan.
func searchRSDP() (*rsdpDescriptor, bool) {
	for _, r := range [][2]uintptr{{ebdaStart, ebdaEnd}, {biosAreaStart, biosAreaEnd}} {
		for addr := r[0]; addr+rsdpAlign <= r[1]; addr += rsdpAlign {
			b := physBytes(addr, 8)
			if string(b) == string(rsdpSignature[:]) {
				var d rsdpDescriptor
				full := physBytes(addr, rsdpDescriptorSize)
				copy((*[rsdpDescriptorSize]byte)(unsafe.Pointer(&d))[:], full)
				return &d, true
			}
		}
	}
	return nil, false
}

// LocateMADT finds the RSDP, walks the RSDT's pointer list looking for
// the table whose signature is "APIC", and parses it. It returns
// errNoMADT (wrapped by the caller's nil check via the bool-free *MADT
// return) when no RSDP or no MADT entry is found, which Available then
// reports as "no local APIC path available" rather than a fatal error:
// a system with no ACPI tables at all just keeps using the 8259 PIC.
func LocateMADT() (*MADT, *kernel.Error) {
	rsdp, ok := searchRSDP()
	if !ok {
		return nil, errNoMADT
	}

	header := physBytes(uintptr(rsdp.RsdtAddr), sdtHeaderSize)
	signature, length, ok := Header(header)
	if !ok || signature != "RSDT" {
		return nil, errNoMADT
	}

	rsdt := physBytes(uintptr(rsdp.RsdtAddr), int(length))
	pointers := rsdt[sdtHeaderSize:]
	for i := 0; i+4 <= len(pointers); i += 4 {
		tablePhys := uintptr(pointers[i]) | uintptr(pointers[i+1])<<8 | uintptr(pointers[i+2])<<16 | uintptr(pointers[i+3])<<24

		tableHeader := physBytes(tablePhys, sdtHeaderSize)
		sig, tableLength, ok := Header(tableHeader)
		if !ok || sig != "APIC" {
			continue
		}

		data := physBytes(tablePhys, int(tableLength))
		return ParseMADT(data)
	}

	return nil, errNoMADT
}
