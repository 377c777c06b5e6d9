package partition

import (
	"testing"

	"pinekernel/kernel"
)

// fakeDisk is an in-memory SectorReader: sectors keyed by LBA, any
// unpopulated LBA reads back as a zeroed sector.
type fakeDisk struct {
	sectors map[uint64][]byte
}

func newFakeDisk() *fakeDisk { return &fakeDisk{sectors: map[uint64][]byte{}} }

func (f *fakeDisk) ReadSector(lba uint64) ([]byte, *kernel.Error) {
	if s, ok := f.sectors[lba]; ok {
		return s, nil
	}
	return make([]byte, SectorSize), nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func TestDiscoverNoSignatureReturnsErrNoPartitionTable(t *testing.T) {
	d := newFakeDisk()
	_, scheme, err := Discover(d)
	if err != ErrNoPartitionTable {
		t.Fatalf("Discover() err = %v, want ErrNoPartitionTable", err)
	}
	if scheme != SchemeNone {
		t.Fatalf("scheme = %v, want SchemeNone", scheme)
	}
}

func TestDiscoverParsesMBRPartitions(t *testing.T) {
	d := newFakeDisk()
	sec0 := make([]byte, SectorSize)
	sec0[510], sec0[511] = 0x55, 0xAA

	off := mbrEntryOffset
	sec0[off] = 0x80 // bootable flag, non-zero record
	putUint32(sec0[off+8:off+12], 2048)
	putUint32(sec0[off+12:off+16], 1048576)
	d.sectors[0] = sec0

	parts, scheme, err := Discover(d)
	if err != nil {
		t.Fatalf("Discover() = %v, want nil", err)
	}
	if scheme != SchemeMBR {
		t.Fatalf("scheme = %v, want SchemeMBR", scheme)
	}
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1", len(parts))
	}
	if parts[0].StartLBA != 2048 || parts[0].SectorCount != 1048576 {
		t.Fatalf("parts[0] = %+v, want StartLBA=2048 SectorCount=1048576", parts[0])
	}
}

func TestDiscoverSkipsZeroMBREntries(t *testing.T) {
	d := newFakeDisk()
	sec0 := make([]byte, SectorSize)
	sec0[510], sec0[511] = 0x55, 0xAA
	// entry 0 populated, entries 1-3 left zeroed
	off := mbrEntryOffset
	putUint32(sec0[off+8:off+12], 63)
	putUint32(sec0[off+12:off+16], 1000)
	d.sectors[0] = sec0

	parts, _, err := Discover(d)
	if err != nil {
		t.Fatalf("Discover() = %v, want nil", err)
	}
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1 (zero entries must be skipped)", len(parts))
	}
}

func TestDiscoverParsesGPTPartitions(t *testing.T) {
	d := newFakeDisk()
	sec1 := make([]byte, SectorSize)
	copy(sec1, gptSignature)
	d.sectors[1] = sec1

	sec2 := make([]byte, SectorSize)
	entry := sec2[0:gptEntrySize]
	entry[0] = 0x01 // non-zero type GUID
	putUint64(entry[32:40], 34)     // start_lba
	putUint64(entry[40:48], 1033)   // end_lba
	d.sectors[2] = sec2

	parts, scheme, err := Discover(d)
	if err != nil {
		t.Fatalf("Discover() = %v, want nil", err)
	}
	if scheme != SchemeGPT {
		t.Fatalf("scheme = %v, want SchemeGPT", scheme)
	}
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1", len(parts))
	}
	if parts[0].StartLBA != 34 || parts[0].SectorCount != 1000 {
		t.Fatalf("parts[0] = %+v, want StartLBA=34 SectorCount=1000", parts[0])
	}
}

func TestDiscoverGPTStopsAtFirstZeroEntryInASector(t *testing.T) {
	d := newFakeDisk()
	sec1 := make([]byte, SectorSize)
	copy(sec1, gptSignature)
	d.sectors[1] = sec1

	sec2 := make([]byte, SectorSize)
	// entry 0 is zero (ends the sector's scan); entry 1 is populated but
	// must never be reached.
	entry1 := sec2[gptEntrySize : 2*gptEntrySize]
	entry1[0] = 0x01
	putUint64(entry1[32:40], 100)
	putUint64(entry1[40:48], 200)
	d.sectors[2] = sec2

	parts, _, err := Discover(d)
	if err != nil {
		t.Fatalf("Discover() = %v, want nil", err)
	}
	if len(parts) != 0 {
		t.Fatalf("len(parts) = %d, want 0", len(parts))
	}
}

func TestDiscoverPrefersGPTOverMBR(t *testing.T) {
	d := newFakeDisk()
	sec1 := make([]byte, SectorSize)
	copy(sec1, gptSignature)
	d.sectors[1] = sec1

	sec0 := make([]byte, SectorSize)
	sec0[510], sec0[511] = 0x55, 0xAA
	d.sectors[0] = sec0

	_, scheme, err := Discover(d)
	if err != nil {
		t.Fatalf("Discover() = %v, want nil", err)
	}
	if scheme != SchemeGPT {
		t.Fatal("Discover must check GPT (LBA 1) before falling back to MBR (LBA 0)")
	}
}
