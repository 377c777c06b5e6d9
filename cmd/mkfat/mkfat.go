// Command mkfat assembles a minimal single-directory FAT32 disk image
// from a host directory's files, for use as a test fixture by
// kernel/fs/fat32. It is a host-side tool (in the spirit of
// gopher-os/tools/makelogo, which generates a Go source file from an
// image at build time) and never runs in ring 0, so it is free to use the
// full standard library.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	sectorSize        = 512
	sectorsPerCluster = 1
	reservedSectors   = 1
	numFATs           = 1
	rootDirCluster    = 2

	dirEntrySize = 32
	lfnAttribute = 0x0F
)

// lfnCharOffsets mirrors kernel/fs/fat32's decoding layout: 13 UCS-2 code
// units per LFN record, at these byte offsets.
var lfnCharOffsets = [13]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mkfat] error: %s\n", err.Error())
	os.Exit(1)
}

type fileEntry struct {
	name         string
	data         []byte
	firstCluster uint32
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory whose regular files become the image's root directory")
		out      = flag.String("out", "fat32.img", "output image path")
		volLabel = flag.String("label", "PINEKFAT", "FAT32 volume label")
	)
	flag.Parse()

	if *dir == "" {
		exit(fmt.Errorf("-dir is required"))
	}

	entries, err := readFiles(*dir)
	if err != nil {
		exit(err)
	}

	img, err := buildImage(entries, *volLabel)
	if err != nil {
		exit(err)
	}

	if err := os.WriteFile(*out, img, 0o644); err != nil {
		exit(err)
	}
}

func readFiles(dir string) ([]fileEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []fileEntry
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, fileEntry{name: e.Name(), data: data})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// buildImage lays out a BPB at sector 0, a single FAT, and a root
// directory containing one cluster chain per file, assigning clusters
// sequentially starting at rootDirCluster+1. Every file gets an LFN
// record ahead of its 8.3 alias whenever its name doesn't already fit
// the 8.3 shape, matching the directory-entry pairing
// kernel/fs/fat32.parseEntries expects on the read side.
func buildImage(files []fileEntry, volLabel string) ([]byte, error) {
	nextCluster := uint32(rootDirCluster + 1)
	for i := range files {
		files[i].firstCluster = nextCluster
		nextCluster += clustersFor(len(files[i].data))
	}
	totalDataClusters := nextCluster - rootDirCluster

	// Root directory itself occupies one cluster; every directory entry
	// (LFN + 8.3 pairs) must fit inside it for this simple, flat layout.
	entryCount := 0
	for _, f := range files {
		entryCount += entriesFor(f.name)
	}
	if entryCount*dirEntrySize > sectorSize*sectorsPerCluster {
		return nil, fmt.Errorf("too many files for a single-cluster root directory (got %d entries)", entryCount)
	}

	sectorsPerFAT := fatSectorsFor(rootDirCluster + totalDataClusters)
	firstDataSector := reservedSectors + numFATs*sectorsPerFAT
	totalSectors := firstDataSector + totalDataClusters*sectorsPerCluster

	img := make([]byte, totalSectors*sectorSize)
	writeBPB(img, sectorsPerFAT, totalSectors, volLabel)

	fat := img[reservedSectors*sectorSize : (reservedSectors+sectorsPerFAT)*sectorSize]
	setFATEntry(fat, rootDirCluster, 0x0FFFFFFF) // root dir: single cluster, EOC

	rootDir := sectorAt(img, firstDataSector+clusterOffset(rootDirCluster))
	writeRootDirectory(rootDir, files)

	for _, f := range files {
		chainClusters(fat, f.firstCluster, clustersFor(len(f.data)))
		writeFileData(img, firstDataSector, f)
	}

	return img, nil
}

func clusterOffset(cluster uint32) uint32 { return cluster - 2 }

func sectorAt(img []byte, sector uint32) []byte {
	start := int(sector) * sectorSize
	return img[start : start+sectorSize]
}

func clustersFor(size int) uint32 {
	bytesPerCluster := sectorSize * sectorsPerCluster
	return uint32((size + bytesPerCluster - 1) / bytesPerCluster)
}

// fatSectorsFor returns how many sectors a FAT needs to hold entries for
// clusters 0..clusterCount-1, at 4 bytes per entry.
func fatSectorsFor(clusterCount uint32) uint32 {
	bytesNeeded := clusterCount * 4
	return (bytesNeeded + sectorSize - 1) / sectorSize
}

func setFATEntry(fat []byte, cluster uint32, value uint32) {
	off := cluster * 4
	binary.LittleEndian.PutUint32(fat[off:off+4], value)
}

// chainClusters links count consecutive clusters starting at first into
// a FAT chain terminated with end-of-chain.
func chainClusters(fat []byte, first uint32, count uint32) {
	for i := uint32(0); i < count; i++ {
		cluster := first + i
		if i == count-1 {
			setFATEntry(fat, cluster, 0x0FFFFFFF)
		} else {
			setFATEntry(fat, cluster, cluster+1)
		}
	}
}

func writeFileData(img []byte, firstDataSector uint32, f fileEntry) {
	for i := uint32(0); i*sectorSize < uint32(len(f.data)); i++ {
		sector := sectorAt(img, firstDataSector+clusterOffset(f.firstCluster+i))
		start := i * sectorSize
		end := start + sectorSize
		if end > uint32(len(f.data)) {
			end = uint32(len(f.data))
		}
		copy(sector, f.data[start:end])
	}
}

func writeBPB(img []byte, sectorsPerFAT, totalSectors uint32, volLabel string) {
	b := img[0:sectorSize]
	binary.LittleEndian.PutUint16(b[11:13], sectorSize)
	b[13] = sectorsPerCluster
	binary.LittleEndian.PutUint16(b[14:16], reservedSectors)
	b[16] = numFATs
	binary.LittleEndian.PutUint16(b[17:19], 0) // root_entries: 0 on FAT32
	binary.LittleEndian.PutUint32(b[32:36], totalSectors)
	binary.LittleEndian.PutUint32(b[36:40], sectorsPerFAT)
	binary.LittleEndian.PutUint32(b[44:48], rootDirCluster)
	copy(b[71:82], padRight(strings.ToUpper(volLabel), 11))
	copy(b[82:90], "FAT32   ")
	b[510], b[511] = 0x55, 0xAA
}

func writeRootDirectory(dir []byte, files []fileEntry) {
	off := 0
	for _, f := range files {
		short, needsLFN := shortNameFor(f.name)
		if needsLFN {
			off += writeLFN(dir[off:], f.name)
		}
		writeStandardEntry(dir[off:off+dirEntrySize], short, f.firstCluster, uint32(len(f.data)))
		off += dirEntrySize
	}
}

func entriesFor(name string) int {
	_, needsLFN := shortNameFor(name)
	if needsLFN {
		return 1 + (len([]rune(name))+12)/13
	}
	return 1
}

// shortNameFor returns an 8.3 name for name, and whether name cannot be
// stored as-is in 8.3 form because it is too long or not upper case (in
// which case LFN records must carry the real name).
func shortNameFor(name string) (string, bool) {
	base, ext, _ := strings.Cut(name, ".")
	upperBase := strings.ToUpper(base)
	upperExt := strings.ToUpper(ext)

	if len(upperBase) <= 8 && len(upperExt) <= 3 && upperBase == base && upperExt == ext {
		return padRight(upperBase, 8) + padRight(upperExt, 3), false
	}

	truncated := upperBase
	if len(truncated) > 6 {
		truncated = truncated[:6]
	}
	truncated += "~1"
	if len(upperExt) > 3 {
		upperExt = upperExt[:3]
	}
	return padRight(truncated, 8) + padRight(upperExt, 3), true
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	if len(s) > n {
		s = s[:n]
	}
	return s
}

// writeLFN writes ceil(len(name)/13) LFN records ahead of the 8.3 alias,
// in the reverse order kernel/fs/fat32.parseEntries expects to read them
// (highest-numbered record first, so a forward scan that prepends each
// record's characters rebuilds the name in order). Each record's first
// byte is its sequence number, with 0x40 set on the highest one.
func writeLFN(dst []byte, name string) int {
	runes := []rune(name)
	recordCount := (len(runes) + 12) / 13

	off := 0
	for rec := recordCount; rec >= 1; rec-- {
		start := (rec - 1) * 13
		end := start + 13
		if end > len(runes) {
			end = len(runes)
		}
		chunk := runes[start:end]

		e := dst[off : off+dirEntrySize]
		e[0] = byte(rec)
		if rec == recordCount {
			e[0] |= 0x40
		}
		e[11] = lfnAttribute
		for i, o := range lfnCharOffsets {
			var unit uint16
			switch {
			case i < len(chunk):
				unit = uint16(chunk[i])
			case i == len(chunk):
				unit = 0x0000
			default:
				unit = 0xFFFF
			}
			binary.LittleEndian.PutUint16(e[o:o+2], unit)
		}
		off += dirEntrySize
	}
	return off
}

func writeStandardEntry(e []byte, shortName string, cluster, size uint32) {
	copy(e[0:11], shortName)
	e[11] = 0x20 // ARCHIVE; this tool only ever writes plain files
	binary.LittleEndian.PutUint16(e[20:22], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(e[26:28], uint16(cluster))
	binary.LittleEndian.PutUint32(e[28:32], size)
}
