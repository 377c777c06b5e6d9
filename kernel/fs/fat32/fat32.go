// Package fat32 implements the read side of spec.md §4.J: mounting a
// FAT32 partition, walking its directory tree once at mount time into a
// flat path index, and reading files and directories back out of it by
// following FAT cluster chains.
package fat32

import (
	"encoding/binary"
	"path"
	"strings"

	"pinekernel/kernel"
	"pinekernel/kernel/fs/partition"
)

// SectorSize is the fixed sector size this driver reads in.
const SectorSize = 512

var (
	// ErrNotFAT32 is returned when a partition's BPB fs_type_label isn't
	// "FAT32".
	ErrNotFAT32 = &kernel.Error{Module: "fat32", Message: "partition is not FAT32"}
	// ErrNotFound is returned when a path isn't in the mount-time index.
	ErrNotFound = &kernel.Error{Module: "fat32", Message: "path not found"}
	// ErrIsADirectory is returned when ReadFile is called on a directory.
	ErrIsADirectory = &kernel.Error{Module: "fat32", Message: "path is a directory"}
)

// BPB is the subset of the FAT32 BIOS Parameter Block this driver reads,
// at the standard fixed byte offsets every FAT32 volume uses.
type BPB struct {
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectors     uint16
	NumFATs             uint8
	RootEntries         uint16
	TotalSectors16      uint16
	SectorsPerFAT16     uint16
	TotalSectors32      uint32
	SectorsPerFAT32     uint32
	RootDirFirstCluster uint32
	FSTypeLabel         [8]byte
}

func parseBPB(sector []byte) BPB {
	var b BPB
	b.BytesPerSector = binary.LittleEndian.Uint16(sector[11:13])
	b.SectorsPerCluster = sector[13]
	b.ReservedSectors = binary.LittleEndian.Uint16(sector[14:16])
	b.NumFATs = sector[16]
	b.RootEntries = binary.LittleEndian.Uint16(sector[17:19])
	b.TotalSectors16 = binary.LittleEndian.Uint16(sector[19:21])
	b.SectorsPerFAT16 = binary.LittleEndian.Uint16(sector[22:24])
	b.TotalSectors32 = binary.LittleEndian.Uint32(sector[32:36])
	b.SectorsPerFAT32 = binary.LittleEndian.Uint32(sector[36:40])
	b.RootDirFirstCluster = binary.LittleEndian.Uint32(sector[44:48])
	copy(b.FSTypeLabel[:], sector[82:90])
	return b
}

// FATSize is the FAT's size in sectors: the 16-bit field when set, else
// the 32-bit extended field.
func (b BPB) FATSize() uint32 {
	if b.SectorsPerFAT16 != 0 {
		return uint32(b.SectorsPerFAT16)
	}
	return b.SectorsPerFAT32
}

// RootDirSectors is always 0 on FAT32 (RootEntries is 0; the root
// directory is just another cluster chain), kept for parity with the
// FAT12/16 formula this is generalized from.
func (b BPB) RootDirSectors() uint32 {
	return (uint32(b.RootEntries)*32 + uint32(b.BytesPerSector) - 1) / uint32(b.BytesPerSector)
}

func (b BPB) FirstFATSector() uint32 { return uint32(b.ReservedSectors) }

func (b BPB) FirstDataSector() uint32 {
	return uint32(b.ReservedSectors) + uint32(b.NumFATs)*b.FATSize() + b.RootDirSectors()
}

func (b BPB) RootDirFirstSector() uint32 {
	return ClusterToSector(b.RootDirFirstCluster, b.FirstDataSector())
}

// ClusterToSector converts a cluster number to its first sector, per
// spec.md §4.J: sector = (cluster - 2) + first_data_sector.
func ClusterToSector(cluster, firstDataSector uint32) uint32 {
	return cluster - 2 + firstDataSector
}

// ClusterKind is one of the four states a 28-bit FAT entry can be in,
// per spec.md §4.J/§3's chain classifier: every value in 0..=0x0FFFFFFF
// falls into exactly one of Free, Next, Bad, or EndOfChain.
type ClusterKind int

const (
	ClusterFree ClusterKind = iota
	ClusterNext
	ClusterBad
	ClusterEndOfChain
)

const (
	fatEntryMask    = 0x0FFFFFFF
	fatBadCluster   = 0x0FFFFFF7
	fatEOCThreshold = 0x0FFFFFF8
)

// ClassifyCluster masks raw to 28 bits and classifies it. next is only
// meaningful when kind is ClusterNext.
func ClassifyCluster(raw uint32) (kind ClusterKind, next uint32) {
	v := raw & fatEntryMask
	switch {
	case v == 0:
		return ClusterFree, 0
	case v == fatBadCluster:
		return ClusterBad, 0
	case v >= fatEOCThreshold:
		return ClusterEndOfChain, 0
	default:
		return ClusterNext, v
	}
}

// FileEntry is one decoded directory record: a file or a subdirectory.
type FileEntry struct {
	Name         string
	IsFile       bool
	FirstCluster uint32
	Size         uint32
}

// dirEntrySize is the fixed byte size of every FAT directory record,
// long-name or 8.3.
const dirEntrySize = 32

const lfnAttribute = 0x0F

// parseEntries decodes the 32-byte directory records packed into raw,
// per spec.md §4.J's directory walk: LFN records accumulate a long name
// that the next 8.3 record consumes; entries whose name starts with "."
// are skipped.
func parseEntries(raw []byte) []FileEntry {
	var entries []FileEntry
	var longName string
	haveLFN := false

	for off := 0; off+dirEntrySize <= len(raw); off += dirEntrySize {
		rec := raw[off : off+dirEntrySize]
		switch rec[0] {
		case 0x00:
			return entries
		case 0xE5:
			continue
		}

		attr := rec[11]
		if attr == lfnAttribute {
			longName = decodeLFNChars(rec) + longName
			haveLFN = true
			continue
		}

		name := shortName(rec)
		if haveLFN {
			name = longName
		}
		longName, haveLFN = "", false

		if strings.HasPrefix(name, ".") {
			continue
		}

		hi := uint32(binary.LittleEndian.Uint16(rec[20:22]))
		lo := uint32(binary.LittleEndian.Uint16(rec[26:28]))
		entries = append(entries, FileEntry{
			Name:         name,
			IsFile:       attr&0x20 != 0,
			FirstCluster: hi<<16 | lo,
			Size:         binary.LittleEndian.Uint32(rec[28:32]),
		})
	}
	return entries
}

// lfnCharOffsets lists the 13 UCS-2 code unit byte offsets inside one
// LFN record, in on-disk order: 5 units at 1, 6 at 14, 2 at 28.
var lfnCharOffsets = [13]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}

func decodeLFNChars(rec []byte) string {
	var sb strings.Builder
	for _, off := range lfnCharOffsets {
		u := binary.LittleEndian.Uint16(rec[off : off+2])
		if u == 0x0000 || u == 0xFFFF {
			continue
		}
		sb.WriteRune(rune(u))
	}
	return sb.String()
}

func shortName(rec []byte) string {
	name := strings.TrimRight(string(rec[0:8]), " ")
	ext := strings.TrimRight(string(rec[8:11]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// indexEntry is what Driver's mount-time walk records for one path.
type indexEntry struct {
	Sector uint32
	IsFile bool
}

// Driver is one mounted FAT32 volume: the parsed BPB plus the flat path
// index built by walking the directory tree once at mount time.
type Driver struct {
	partition partition.Partition
	bpb       BPB
	index     map[string]indexEntry
}

// Mount reads the BPB from the partition's first sector, rejects
// anything whose fs_type_label isn't "FAT32", and recursively indexes
// the whole directory tree, per spec.md §4.J.
func Mount(p partition.Partition) (*Driver, *kernel.Error) {
	sec0, err := readSector(p, 0)
	if err != nil {
		return nil, err
	}
	bpb := parseBPB(sec0)
	if !strings.HasPrefix(string(bpb.FSTypeLabel[:]), "FAT32") {
		return nil, ErrNotFAT32
	}

	d := &Driver{partition: p, bpb: bpb, index: map[string]indexEntry{}}
	rootSector := bpb.RootDirFirstSector()
	d.index["/"] = indexEntry{Sector: rootSector, IsFile: false}
	if err := d.walk("/", rootSector); err != nil {
		return nil, err
	}
	return d, nil
}

func readSector(p partition.Partition, lba uint64) ([]byte, *kernel.Error) {
	return p.Disk.ReadSector(p.StartLBA + lba)
}

func (d *Driver) readSector(sector uint32) ([]byte, *kernel.Error) {
	return readSector(d.partition, uint64(sector))
}

// readFATEntry reads the FAT entry governing the cluster that starts at
// currentSector, per spec.md §4.J's fat_offset formula.
func (d *Driver) readFATEntry(currentSector uint32) (ClusterKind, uint32, *kernel.Error) {
	fatOffset := (currentSector - d.bpb.FirstDataSector() + 2) * 4
	fatSector := fatOffset/SectorSize + d.bpb.FirstFATSector()
	entOffset := fatOffset % SectorSize

	sector, err := d.readSector(fatSector)
	if err != nil {
		return 0, 0, err
	}
	raw := binary.LittleEndian.Uint32(sector[entOffset : entOffset+4])
	kind, next := ClassifyCluster(raw)
	return kind, next, nil
}

// ReadAndFollow reads startSector's cluster, then keeps following the
// FAT chain (emitting every sector's contents) until End-of-Chain, Bad,
// or Free is reached, per spec.md §4.J's read-and-follow description.
func (d *Driver) ReadAndFollow(startSector uint32) ([]byte, *kernel.Error) {
	var out []byte
	sector := startSector
	for {
		data, err := d.readSector(sector)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)

		kind, next, err := d.readFATEntry(sector)
		if err != nil {
			return nil, err
		}
		if kind != ClusterNext {
			break
		}
		sector = ClusterToSector(next, d.bpb.FirstDataSector())
	}
	return out, nil
}

func (d *Driver) walk(prefix string, sector uint32) *kernel.Error {
	data, err := d.ReadAndFollow(sector)
	if err != nil {
		return err
	}
	for _, e := range parseEntries(data) {
		childPath := path.Join(prefix, e.Name)
		var childSector uint32
		if e.FirstCluster >= 2 {
			childSector = ClusterToSector(e.FirstCluster, d.bpb.FirstDataSector())
		}
		d.index[childPath] = indexEntry{Sector: childSector, IsFile: e.IsFile}
		if !e.IsFile && e.FirstCluster >= 2 {
			if err := d.walk(childPath, childSector); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stat reports whether p was found during the mount-time walk, and
// whether it names a file or a directory.
func (d *Driver) Stat(p string) (isFile bool, ok bool) {
	e, ok := d.index[p]
	return e.IsFile, ok
}

// ReadFile returns a file's full contents by following its cluster
// chain from the mount-time index.
func (d *Driver) ReadFile(p string) ([]byte, *kernel.Error) {
	e, ok := d.index[p]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.IsFile {
		return nil, ErrIsADirectory
	}
	return d.ReadAndFollow(e.Sector)
}

// List returns the immediate children of dir, per the mount-time index
// (spec.md §4.J: "this index is the authoritative lookup for later
// reads").
func (d *Driver) List(dir string) []string {
	var children []string
	for p := range d.index {
		if p == dir {
			continue
		}
		if path.Dir(p) == dir {
			children = append(children, p)
		}
	}
	return children
}
