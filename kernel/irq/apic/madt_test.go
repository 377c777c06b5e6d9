package apic

import (
	"encoding/binary"
	"testing"
)

// buildMADT assembles a synthetic MADT payload: sdtHeaderSize bytes of
// header, 4 bytes of local APIC address, 4 bytes of flags, then the
// supplied entries concatenated in order.
func buildMADT(t *testing.T, localAPICAddr uint32, entries ...[]byte) []byte {
	t.Helper()

	buf := make([]byte, sdtHeaderSize+8)
	copy(buf[0:4], []byte("APIC"))
	binary.LittleEndian.PutUint32(buf[sdtHeaderSize:], localAPICAddr)

	for _, e := range entries {
		buf = append(buf, e...)
	}
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)))
	return buf
}

func procLocalAPICEntry(acpiProcID, apicID uint8, flags uint32) []byte {
	e := make([]byte, 8)
	e[0] = entryProcLocalAPIC
	e[1] = 8
	e[2] = acpiProcID
	e[3] = apicID
	binary.LittleEndian.PutUint32(e[4:], flags)
	return e
}

func ioAPICEntry(id uint8, addr, gsiBase uint32) []byte {
	e := make([]byte, 12)
	e[0] = entryIOAPIC
	e[1] = 12
	e[2] = id
	binary.LittleEndian.PutUint32(e[4:], addr)
	binary.LittleEndian.PutUint32(e[8:], gsiBase)
	return e
}

func sourceOverrideEntry(bus, irq uint8, gsi uint32, flags uint16) []byte {
	e := make([]byte, 10)
	e[0] = entryIOAPICSourceOverride
	e[1] = 10
	e[2] = bus
	e[3] = irq
	binary.LittleEndian.PutUint32(e[4:], gsi)
	binary.LittleEndian.PutUint16(e[8:], flags)
	return e
}

func TestParseMADTHeaderAddress(t *testing.T) {
	data := buildMADT(t, 0xFEE00000)

	madt, err := ParseMADT(data)
	if err != nil {
		t.Fatalf("ParseMADT failed: %v", err)
	}
	if madt.LocalAPICAddr != 0xFEE00000 {
		t.Fatalf("LocalAPICAddr = %#x, want 0xFEE00000", madt.LocalAPICAddr)
	}
	if len(madt.Cores) != 0 || len(madt.IOAPICs) != 0 {
		t.Fatalf("expected no entries, got cores=%d ioapics=%d", len(madt.Cores), len(madt.IOAPICs))
	}
}

func TestParseMADTProcLocalAPICEntries(t *testing.T) {
	data := buildMADT(t, 0xFEE00000,
		procLocalAPICEntry(0, 0, 1),
		procLocalAPICEntry(1, 2, 0),
	)

	madt, err := ParseMADT(data)
	if err != nil {
		t.Fatalf("ParseMADT failed: %v", err)
	}
	if len(madt.Cores) != 2 {
		t.Fatalf("got %d cores, want 2", len(madt.Cores))
	}
	if !madt.Cores[0].Enabled() {
		t.Fatal("expected first core to report Enabled()")
	}
	if madt.Cores[1].Enabled() || madt.Cores[1].OnlineCapable() {
		t.Fatal("expected second core to report neither Enabled() nor OnlineCapable()")
	}
	if madt.Cores[1].APICID != 2 {
		t.Fatalf("APICID = %d, want 2", madt.Cores[1].APICID)
	}
}

func TestParseMADTIOAPICAndOverride(t *testing.T) {
	data := buildMADT(t, 0xFEE00000,
		ioAPICEntry(1, 0xFEC00000, 0),
		sourceOverrideEntry(0, 2, 9, 0x0D),
	)

	madt, err := ParseMADT(data)
	if err != nil {
		t.Fatalf("ParseMADT failed: %v", err)
	}
	if len(madt.IOAPICs) != 1 || madt.IOAPICs[0].Address != 0xFEC00000 {
		t.Fatalf("unexpected IOAPICs: %+v", madt.IOAPICs)
	}
	if len(madt.Overrides) != 1 || madt.Overrides[0].GlobalSystemInterrupt != 9 {
		t.Fatalf("unexpected Overrides: %+v", madt.Overrides)
	}
}

func TestParseMADTSkipsUnrecognizedEntry(t *testing.T) {
	unknown := []byte{200, 4, 0, 0}
	data := buildMADT(t, 0xFEE00000, unknown, procLocalAPICEntry(0, 0, 1))

	madt, err := ParseMADT(data)
	if err != nil {
		t.Fatalf("ParseMADT failed: %v", err)
	}
	if len(madt.Cores) != 1 {
		t.Fatalf("expected the entry after the unrecognized one to still parse, got %d cores", len(madt.Cores))
	}
}

func TestParseMADTTruncated(t *testing.T) {
	if _, err := ParseMADT(make([]byte, 10)); err != errTruncatedMADT {
		t.Fatalf("err = %v, want errTruncatedMADT", err)
	}
}

func TestHeaderSignature(t *testing.T) {
	data := buildMADT(t, 0xFEE00000)

	sig, length, ok := Header(data)
	if !ok {
		t.Fatal("expected Header to succeed")
	}
	if sig != "APIC" {
		t.Fatalf("signature = %q, want APIC", sig)
	}
	if length != uint32(len(data)) {
		t.Fatalf("length = %d, want %d", length, len(data))
	}
}
