// Package ext2 implements the signature-only probe spec.md §4.I calls
// for: the ext2 driver is explicitly unspecified beyond "the first
// whose signature matches claims the partition," so this package reads
// just enough of the superblock to answer that question.
package ext2

import (
	"encoding/binary"

	"pinekernel/kernel"
	"pinekernel/kernel/fs/partition"
)

// SectorSize is the fixed sector size the superblock is read in.
const SectorSize = 512

// magic is the ext2 superblock signature (ext2_signature field).
const magic = 0xEF53

// superblockByteOffset is where the superblock always starts, regardless
// of block size.
const superblockByteOffset = 1024

// signatureFieldOffset is ext2_signature's byte offset within the
// superblock.
const signatureFieldOffset = 56

// ErrNotExt2 is returned when the superblock's signature field isn't
// 0xEF53.
var ErrNotExt2 = &kernel.Error{Module: "ext2", Message: "superblock signature does not match ext2"}

// Probe reads the sector containing byte 1024 of the partition (where
// the superblock always starts) and checks the ext2_signature field. It
// does nothing beyond that check: spec.md explicitly leaves the rest of
// the ext2 driver unspecified.
func Probe(p partition.Partition) *kernel.Error {
	startSector := uint64(superblockByteOffset / SectorSize)
	sector, err := p.Disk.ReadSector(p.StartLBA + startSector)
	if err != nil {
		return err
	}

	signature := binary.LittleEndian.Uint16(sector[signatureFieldOffset : signatureFieldOffset+2])
	if signature != magic {
		return ErrNotExt2
	}
	return nil
}
