// Package partition implements spec.md §4.I's partition-table discovery:
// GPT first, falling back to MBR, over anything that can read a sector
// off a disk.
package partition

import (
	"bytes"

	"pinekernel/kernel"
)

// SectorSize is the fixed sector size every partition table on this
// kernel's disks is read in.
const SectorSize = 512

// SectorReader reads one SectorSize-byte sector at the given LBA.
// kernel/drivers/ata.Disk implements this directly.
type SectorReader interface {
	ReadSector(lba uint64) ([]byte, *kernel.Error)
}

// Partition is one accepted partition-table entry: the disk it lives on
// and the sector range it spans.
type Partition struct {
	Disk        SectorReader
	StartLBA    uint64
	SectorCount uint64
}

// Scheme reports which partition table a disk used.
type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeGPT
	SchemeMBR
)

var (
	gptSignature = []byte("EFI PART")
	mbrSignature = [2]byte{0x55, 0xAA}
)

// gptEntrySize is the byte size of one GPT partition entry.
const gptEntrySize = 128

// gptEntrySectors is how many sectors of 128-byte entries this driver
// parses, per spec.md §4.I's "up to 32 sectors of 128-byte
// GPT entries".
const gptEntrySectors = 32

// mbrEntryOffset and mbrEntrySize locate the four MBR partition records
// inside LBA 0.
const (
	mbrEntryOffset = 446
	mbrEntrySize   = 16
)

// ErrNoPartitionTable is returned when a disk has neither a GPT nor an
// MBR signature where one is expected.
var ErrNoPartitionTable = &kernel.Error{Module: "partition", Message: "no GPT or MBR signature found"}

// Discover reads LBA 1 looking for the GPT header signature; failing
// that, it reads LBA 0 looking for the MBR boot signature. It returns
// the accepted partitions and which scheme produced them, per
// spec.md §4.I steps 1-2.
func Discover(d SectorReader) ([]Partition, Scheme, *kernel.Error) {
	if sec1, err := d.ReadSector(1); err == nil && bytes.Equal(sec1[:len(gptSignature)], gptSignature) {
		parts, err := parseGPT(d)
		if err != nil {
			return nil, SchemeNone, err
		}
		return parts, SchemeGPT, nil
	}

	sec0, err := d.ReadSector(0)
	if err != nil {
		return nil, SchemeNone, err
	}
	if sec0[SectorSize-2] == mbrSignature[0] && sec0[SectorSize-1] == mbrSignature[1] {
		return parseMBR(d, sec0), SchemeMBR, nil
	}

	return nil, SchemeNone, ErrNoPartitionTable
}

// parseGPT walks LBA 2..33 (inclusive), four 128-byte entries per
// 512-byte sector, accepting any entry whose type GUID (the first 16
// bytes) is non-zero. A sector's first all-zero entry ends that
// sector's scan, mirroring the original driver this is ported from.
func parseGPT(d SectorReader) ([]Partition, *kernel.Error) {
	var partitions []Partition
	for lba := uint64(2); lba < 2+gptEntrySectors; lba++ {
		sector, err := d.ReadSector(lba)
		if err != nil {
			break
		}
		for i := 0; i < SectorSize/gptEntrySize; i++ {
			entry := sector[i*gptEntrySize : (i+1)*gptEntrySize]
			typeGUID := entry[0:16]
			if allZero(typeGUID) {
				break
			}
			startLBA := leUint64(entry[16+16 : 16+16+8])
			endLBA := leUint64(entry[16+16+8 : 16+16+16])
			partitions = append(partitions, Partition{
				Disk:        d,
				StartLBA:    startLBA,
				SectorCount: endLBA - startLBA + 1,
			})
		}
	}
	return partitions, nil
}

// parseMBR reads the four fixed-offset MBR partition records out of LBA
// 0, accepting any whose 16-byte record is non-zero.
func parseMBR(d SectorReader, sector []byte) []Partition {
	var partitions []Partition
	for i := 0; i < 4; i++ {
		off := mbrEntryOffset + i*mbrEntrySize
		record := sector[off : off+mbrEntrySize]
		if allZero(record) {
			continue
		}
		lbaStart := leUint32(record[8:12])
		sectorCount := leUint32(record[12:16])
		partitions = append(partitions, Partition{
			Disk:        d,
			StartLBA:    uint64(lbaStart),
			SectorCount: uint64(sectorCount),
		})
	}
	return partitions
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
