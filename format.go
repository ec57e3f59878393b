package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/noxer/bytewriter"
)

type Format uint8

const (
	_FormatUnknown Format = iota
	FormatFAT12
	FormatFAT16
	FormatFAT32
	FormatExFAT
)

func (f Format) String() string {
	switch f {
	case FormatFAT12:
		return "FAT12"
	case FormatFAT16:
		return "FAT16"
	case FormatFAT32:
		return "FAT32"
	case FormatExFAT:
		return "exFAT"
	default:
		return "unknown"
	}
}

// Formatter writes a fresh FAT filesystem to a block device.
type Formatter struct {
	window []byte
	bd     BlockDevice
}

type FormatConfig struct {
	Label string
	// ClusterSize is the size of a FAT cluster in blocks. Must be a power
	// of two. Zero picks a default based on volume size.
	ClusterSize int
	// Format selects the FAT format to use. Zero defaults to FAT32.
	Format Format
	// NumberOfFATs is the number of FAT copies to write, 1 or 2. Zero defaults to 2.
	NumberOfFATs uint8
	// RootEntries is the number of 32-byte root directory entries for
	// FAT12/FAT16 volumes. Zero defaults to 512. Ignored for FAT32.
	RootEntries int
}

// geometry holds the computed on-disk layout for a volume about to be formatted.
type geometry struct {
	fmt          Format
	ss           int // sector size, bytes
	auSectors    int // sectors per cluster
	nFAT         int
	rsvdSectors  int
	rootEntries  int // FAT12/16 only
	rootDirSects int // FAT12/16 only
	fatSects     int // sectors per single FAT copy
	nClst        uint32
	totalSectors int
}

// Format writes a new filesystem of fsSizeInBlocks blocks, each blocksize
// bytes, to bd, starting at block 0.
func (f *Formatter) Format(bd BlockDevice, blocksize, fsSizeInBlocks int, cfg FormatConfig) error {
	if cfg.Format == 0 {
		cfg.Format = FormatFAT32
	}
	if cfg.Label == "" {
		cfg.Label = "NO NAME"
	}
	if cfg.NumberOfFATs == 0 {
		cfg.NumberOfFATs = 2
	}
	if cfg.RootEntries == 0 {
		cfg.RootEntries = 512
	}

	geo, err := computeGeometry(blocksize, fsSizeInBlocks, cfg)
	if err != nil {
		return err
	}

	if len(f.window) < blocksize {
		f.window = make([]byte, blocksize)
	} else {
		f.window = f.window[:blocksize]
	}
	f.bd = bd

	switch geo.fmt {
	case FormatFAT12, FormatFAT16, FormatFAT32:
		return f.formatFAT(geo, cfg)
	default:
		return frUnsupported
	}
}

// computeGeometry validates cfg against the volume size and derives the
// sectors-per-FAT, reserved area size, and cluster count iteratively: the
// FAT size depends on the cluster count, which depends on how much of the
// volume the FAT itself consumes.
func computeGeometry(ss, totalSectors int, cfg FormatConfig) (geometry, error) {
	var errs error
	if cs := cfg.ClusterSize; cs != 0 && (cs < 0 || cs&(cs-1) != 0) {
		errs = multierror.Append(errs, fmt.Errorf("cluster size %d is not a power of two", cs))
	}
	if ss < 512 || ss&(ss-1) != 0 {
		errs = multierror.Append(errs, fmt.Errorf("sector size %d must be a power of two >= 512", ss))
	}
	if totalSectors <= 32 {
		errs = multierror.Append(errs, fmt.Errorf("volume of %d sectors is too small to format", totalSectors))
	}
	if cfg.Format != FormatFAT12 && cfg.Format != FormatFAT16 && cfg.Format != FormatFAT32 {
		errs = multierror.Append(errs, fmt.Errorf("unsupported format %s", cfg.Format))
	}
	if cfg.NumberOfFATs != 1 && cfg.NumberOfFATs != 2 {
		errs = multierror.Append(errs, fmt.Errorf("number of FATs must be 1 or 2, got %d", cfg.NumberOfFATs))
	}
	if len(cfg.Label) > 12 {
		errs = multierror.Append(errs, fmt.Errorf("volume label %q longer than 12 characters", cfg.Label))
	}
	if errs != nil {
		return geometry{}, errs
	}

	geo := geometry{
		fmt:  cfg.Format,
		ss:   ss,
		nFAT: int(cfg.NumberOfFATs),
	}
	geo.auSectors = cfg.ClusterSize
	if geo.auSectors == 0 {
		if presetBytes, perr := RecommendedClusterSize(int64(totalSectors) * int64(ss)); perr == nil && presetBytes > 0 {
			geo.auSectors = presetBytes / ss
		}
	}
	if geo.auSectors == 0 {
		geo.auSectors = defaultClusterSectors(cfg.Format, totalSectors)
	}

	if cfg.Format == FormatFAT32 {
		geo.rsvdSectors = 32
	} else {
		geo.rsvdSectors = 1
		geo.rootEntries = cfg.RootEntries
		geo.rootDirSects = (geo.rootEntries*sizeDirEntry + ss - 1) / ss
	}

	dataSectors := totalSectors - geo.rsvdSectors - geo.rootDirSects
	if dataSectors <= 0 {
		return geometry{}, fmt.Errorf("volume of %d sectors has no room for data after reserved and root areas", totalSectors)
	}

	fatSects := 1
	for {
		freeSectors := dataSectors - fatSects*geo.nFAT
		if freeSectors <= 0 {
			return geometry{}, fmt.Errorf("volume too small: FAT area leaves no room for clusters")
		}
		nClst := uint32(freeSectors / geo.auSectors)
		nFatEnt := nClst + 2
		var need int
		switch cfg.Format {
		case FormatFAT12:
			need = int((nFatEnt*3/2 + uint32(ss) - 1) / uint32(ss))
		case FormatFAT16:
			need = int((nFatEnt*2 + uint32(ss) - 1) / uint32(ss))
		default: // FAT32
			need = int((nFatEnt*4 + uint32(ss) - 1) / uint32(ss))
		}
		if need <= fatSects {
			geo.fatSects = fatSects
			geo.nClst = nClst
			break
		}
		fatSects = need
	}
	geo.totalSectors = totalSectors

	if err := validateClusterRange(cfg.Format, geo.nClst); err != nil {
		return geometry{}, err
	}
	return geo, nil
}

func defaultClusterSectors(f Format, totalSectors int) int {
	switch {
	case f == FormatFAT32 && totalSectors > 67108864: // > 32GiB at 512B sectors
		return 64
	case f == FormatFAT32:
		return 8
	case totalSectors < 8400:
		return 1
	default:
		return 4
	}
}

// validateClusterRange checks that the computed cluster count falls in the
// range the requested FAT width can address, using the same thresholds the
// mount path uses to classify a volume (see clustMaxFAT12/16/32).
func validateClusterRange(f Format, nClst uint32) error {
	switch f {
	case FormatFAT12:
		if nClst >= clustMaxFAT12 {
			return fmt.Errorf("volume has %d clusters, too many for FAT12 (max %d)", nClst, clustMaxFAT12-1)
		}
	case FormatFAT16:
		if nClst < clustMaxFAT12 {
			return fmt.Errorf("volume has only %d clusters, too few for FAT16 (use FAT12)", nClst)
		} else if nClst >= clustMaxFAT16 {
			return fmt.Errorf("volume has %d clusters, too many for FAT16 (max %d)", nClst, clustMaxFAT16-1)
		}
	case FormatFAT32:
		if nClst < clustMaxFAT16 {
			return fmt.Errorf("volume has only %d clusters, too few for FAT32 (use FAT16)", nClst)
		}
	}
	return nil
}

// formatFAT writes the boot sector, FSInfo (FAT32 only), every FAT copy,
// and the root directory for the given geometry.
func (f *Formatter) formatFAT(geo geometry, cfg FormatConfig) error {
	if err := f.writeBootSector(geo, cfg, 0); err != nil {
		return err
	}
	if geo.fmt == FormatFAT32 {
		if err := f.writeFSInfo(geo, 1); err != nil {
			return err
		}
		// FAT32 keeps a backup boot sector + FSInfo at sectors 6/7, by
		// convention (bpbBkBootSec32, written into the primary boot sector).
		if err := f.writeBootSector(geo, cfg, 6); err != nil {
			return err
		}
		if err := f.writeFSInfo(geo, 7); err != nil {
			return err
		}
	}

	fatBase := geo.rsvdSectors
	for copyIdx := 0; copyIdx < geo.nFAT; copyIdx++ {
		if err := f.writeFATReservedEntries(geo, lba(fatBase+copyIdx*geo.fatSects)); err != nil {
			return err
		}
	}

	rootBase := fatBase + geo.nFAT*geo.fatSects
	return f.writeRootDir(geo, lba(rootBase), cfg.Label)
}

func (f *Formatter) zeroWindow() {
	for i := range f.window {
		f.window[i] = 0
	}
}

func (f *Formatter) writeSector(sect lba) error {
	_, err := f.bd.WriteBlocks(f.window, int64(sect))
	return err
}

func (f *Formatter) writeBootSector(geo geometry, cfg FormatConfig, sect lba) error {
	f.zeroWindow()
	bs := biosParamBlock{data: f.window}
	copy(f.window[bsJmpBoot:], []byte{0xEB, 0xFE, 0x90}) // jmp short $-2; nop. No real boot code.
	bs.SetOEMName("FATENG  ")

	bs.SetSectorSize(uint16(geo.ss))
	bs.SetSectorsPerCluster(uint16(geo.auSectors))
	bs.SetReservedSectors(uint16(geo.rsvdSectors))
	bs.SetNumberOfFATs(uint8(geo.nFAT))
	bs.SetRootDirEntries(uint16(geo.rootEntries))
	bs.SetTotalSectors(uint32(geo.totalSectors))
	f.window[bpbMedia] = 0xF8 // fixed disk
	bs.SetSectorsPerFAT(uint32(geo.fatSects))

	if geo.fmt == FormatFAT32 {
		bs.SetRootCluster(2)
		binary.LittleEndian.PutUint16(f.window[bpbFSInfo32:], 1)
		binary.LittleEndian.PutUint16(f.window[bpbBkBootSec32:], 6)
		f.window[bsDrvNum32] = 0x80
		f.window[bsBootSig32] = 0x29
		binary.LittleEndian.PutUint32(f.window[bsVolID32:], volumeSerial())
		bs.SetVolumeLabel(cfg.Label)
		w := bytewriter.New(f.window[bsFilSysType32 : bsFilSysType32+8])
		w.Write([]byte("FAT32   "))
	} else {
		binary.LittleEndian.PutUint16(f.window[bpbFATSz16:], uint16(geo.fatSects))
		f.window[bsDrvNum] = 0x80
		f.window[bsBootSig] = 0x29
		binary.LittleEndian.PutUint32(f.window[bsVolID:], volumeSerial())
		copy(f.window[bsVolLab:bsVolLab+11], padName11(cfg.Label))
		w := bytewriter.New(f.window[bsFilSysType : bsFilSysType+8])
		if geo.fmt == FormatFAT12 {
			w.Write([]byte("FAT12   "))
		} else {
			w.Write([]byte("FAT16   "))
		}
	}

	f.window[bs55AA] = 0x55
	f.window[bs55AA+1] = 0xAA
	return f.writeSector(sect)
}

// volumeSerial derives a fixed-looking volume serial number without
// reaching for wall clock time, which Format's callers may not want the
// formatter depending on.
func volumeSerial() uint32 {
	return 0x12345678
}

func (f *Formatter) writeFSInfo(geo geometry, sect lba) error {
	f.zeroWindow()
	fsi := fsinfoSector{data: f.window}
	fsi.SetSignatures(0x41615252, 0x61417272, 0xAA550000)
	fsi.SetFreeClusterCount(geo.nClst - 1) // cluster 2 is consumed by the root directory.
	fsi.SetLastAllocatedCluster(2)
	return f.writeSector(sect)
}

// writeFATReservedEntries clears a FAT copy's first sector and fills in
// the two reserved entries (0 and 1) plus, for FAT32, the root directory's
// own EOC marker in entry 2.
func (f *Formatter) writeFATReservedEntries(geo geometry, base lba) error {
	f.zeroWindow()
	switch geo.fmt {
	case FormatFAT12:
		f.window[0], f.window[1], f.window[2] = 0xF8, 0xFF, 0xFF
	case FormatFAT16:
		binary.LittleEndian.PutUint16(f.window[0:], 0xFFF8)
		binary.LittleEndian.PutUint16(f.window[2:], 0xFFFF)
	case FormatFAT32:
		binary.LittleEndian.PutUint32(f.window[0:], 0x0FFFFFF8)
		binary.LittleEndian.PutUint32(f.window[4:], 0x0FFFFFFF)
		binary.LittleEndian.PutUint32(f.window[8:], maxu32) // root directory, single-cluster EOC.
	}
	if err := f.writeSector(base); err != nil {
		return err
	}
	for s := 1; s < geo.fatSects; s++ {
		f.zeroWindow()
		if err := f.writeSector(base + lba(s)); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) writeRootDir(geo geometry, base lba, label string) error {
	nsects := geo.rootDirSects
	if geo.fmt == FormatFAT32 {
		nsects = geo.auSectors // a single cluster's worth of sectors.
	}
	f.zeroWindow()
	if label != "" && label != "NO NAME" {
		copy(f.window[dirNameOff:], padName11(label))
		f.window[dirAttrOff] = amVOL
	}
	if err := f.writeSector(base); err != nil {
		return err
	}
	for s := 1; s < nsects; s++ {
		f.zeroWindow()
		if err := f.writeSector(base + lba(s)); err != nil {
			return err
		}
	}
	return nil
}

func padName11(label string) []byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:], label)
	return out[:]
}
