// Package apic parses the ACPI MADT (Multiple APIC Description Table) and
// drives the local APIC, the path spec.md §4.F takes when "CPUID reports
// APIC and the ACPI MADT is present"; kernel/irq's 8259 remap stays the
// fallback otherwise.
package apic

import (
	"encoding/binary"
	"unsafe"

	"pinekernel/kernel"
)

// sdtHeader is the standard ACPI table header every table, including the
// MADT, begins with.
type sdtHeader struct {
	Signature       [4]byte
	Length          uint32
	Revision        uint8
	Checksum        uint8
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       uint32
	CreatorRevision uint32
}

const sdtHeaderSize = 36

// MADT entry type bytes, per the OSDev MADT reference.
const (
	entryProcLocalAPIC            = 0
	entryIOAPIC                   = 1
	entryIOAPICSourceOverride     = 2
	entryIOAPICNonMaskableInt     = 3
	entryLocalAPICNonMaskableInt  = 4
	entryLocalAPICAddressOverride = 5
	entryProcLocalX2APIC          = 9
)

// ProcLocalAPIC describes one enumerated CPU core (MADT entry type 0).
type ProcLocalAPIC struct {
	AcpiProcessorID uint8
	APICID          uint8
	Flags           uint32
}

// Enabled reports whether this core's local APIC is usable: bit 0 set
// means the processor is enabled; bit 1 set means it can be enabled
// later (online-capable) even if bit 0 is clear.
func (p ProcLocalAPIC) Enabled() bool      { return p.Flags&0x1 != 0 }
func (p ProcLocalAPIC) OnlineCapable() bool { return p.Flags&0x2 != 0 }

// IOAPIC describes one I/O APIC (MADT entry type 1).
type IOAPIC struct {
	ID                      uint8
	Address                 uint32
	GlobalSystemInterrupt   uint32
}

// InterruptSourceOverride remaps a legacy ISA IRQ to a different global
// system interrupt (MADT entry type 2) — BIOSes commonly use this to move
// IRQ0 or IRQ2 off their PC/AT default.
type InterruptSourceOverride struct {
	BusSource             uint8
	IRQSource             uint8
	GlobalSystemInterrupt uint32
	Flags                 uint16
}

// MADT is the parsed form of the ACPI MADT: the local APIC's physical
// base address plus every enumerated core and I/O APIC.
type MADT struct {
	LocalAPICAddr uint32
	Cores         []ProcLocalAPIC
	IOAPICs       []IOAPIC
	Overrides     []InterruptSourceOverride
}

var errTruncatedMADT = &kernel.Error{Module: "apic", Message: "truncated MADT record"}

// Header reinterprets the first sdtHeaderSize bytes of data as the common
// ACPI table header so a caller (the ACPI table walker that locates the
// MADT in the first place) can confirm the "APIC" signature before
// handing the remaining bytes to ParseMADT.
func Header(data []byte) (signature string, length uint32, ok bool) {
	if len(data) < sdtHeaderSize {
		return "", 0, false
	}
	var h sdtHeader
	copy((*[sdtHeaderSize]byte)(unsafe.Pointer(&h))[:], data[:sdtHeaderSize])
	return string(h.Signature[:]), h.Length, true
}

// ParseMADT walks the variable-length record list following a MADT's
// fixed header (local APIC address + flags), in the same record-type
// switch shape as the teacher's MADT reader, skipping any record type it
// does not recognize rather than failing the whole parse.
func ParseMADT(data []byte) (*MADT, *kernel.Error) {
	if len(data) < sdtHeaderSize+8 {
		return nil, errTruncatedMADT
	}

	madt := &MADT{
		LocalAPICAddr: binary.LittleEndian.Uint32(data[sdtHeaderSize:]),
	}

	idx := sdtHeaderSize + 8
	for idx+2 <= len(data) {
		recordType := data[idx]
		recordLength := int(data[idx+1])
		if recordLength < 2 || idx+recordLength > len(data) {
			return nil, errTruncatedMADT
		}
		payload := data[idx+2 : idx+recordLength]

		switch recordType {
		case entryProcLocalAPIC:
			if len(payload) < 6 {
				return nil, errTruncatedMADT
			}
			madt.Cores = append(madt.Cores, ProcLocalAPIC{
				AcpiProcessorID: payload[0],
				APICID:          payload[1],
				Flags:           binary.LittleEndian.Uint32(payload[2:]),
			})
		case entryIOAPIC:
			if len(payload) < 10 {
				return nil, errTruncatedMADT
			}
			madt.IOAPICs = append(madt.IOAPICs, IOAPIC{
				ID:                    payload[0],
				Address:               binary.LittleEndian.Uint32(payload[2:]),
				GlobalSystemInterrupt: binary.LittleEndian.Uint32(payload[6:]),
			})
		case entryIOAPICSourceOverride:
			if len(payload) < 8 {
				return nil, errTruncatedMADT
			}
			madt.Overrides = append(madt.Overrides, InterruptSourceOverride{
				BusSource:             payload[0],
				IRQSource:             payload[1],
				GlobalSystemInterrupt: binary.LittleEndian.Uint32(payload[2:]),
				Flags:                 binary.LittleEndian.Uint16(payload[6:]),
			})
		case entryLocalAPICAddressOverride:
			if len(payload) < 10 {
				return nil, errTruncatedMADT
			}
			// Entry type 5 supersedes the 32-bit address in the MADT
			// header with a 64-bit one; only the low 32 bits matter to
			// Enable, which only ever maps a 4 KiB register page.
			madt.LocalAPICAddr = uint32(binary.LittleEndian.Uint64(payload[2:]))
		case entryIOAPICNonMaskableInt, entryLocalAPICNonMaskableInt, entryProcLocalX2APIC:
			// Recognized but not acted on: this kernel neither programs
			// NMI routing nor runs any core through x2APIC mode.
		}

		idx += recordLength
	}

	return madt, nil
}
