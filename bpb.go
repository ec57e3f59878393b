package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

// rawBPB is the common BIOS Parameter Block prefix shared by FAT12/16/32
// boot sectors, up through BPB_TotSec32. It exists purely as a redundant
// cross-check against the named-offset accessors biosParamBlock exposes in
// sectors.go: mountCheckBPB unpacks the same bytes both ways and compares
// them, so a hand-maintained offset constant drifting out of sync in
// tables.go fails loudly at mount time instead of silently misreading a
// volume.
type rawBPB struct {
	JmpBoot    [3]byte
	OEMName    [8]byte
	BytsPerSec uint16
	SecPerClus uint8
	RsvdSecCnt uint16
	NumFATs    uint8
	RootEntCnt uint16
	TotSec16   uint16
	Media      uint8
	FATSz16    uint16
	SecPerTrk  uint16
	NumHeads   uint16
	HiddSec    uint32
	TotSec32   uint32
}

const sizeofRawBPB = 36

func unpackBPB(sector []byte) (rawBPB, error) {
	var bpb rawBPB
	if len(sector) < sizeofRawBPB {
		return bpb, fmt.Errorf("fat: boot sector too short to unpack BPB (%d bytes)", len(sector))
	}
	if err := restruct.Unpack(sector[:sizeofRawBPB], binary.LittleEndian, &bpb); err != nil {
		return bpb, fmt.Errorf("fat: unpack BPB: %w", err)
	}
	return bpb, nil
}

// mountCheckBPB cross-validates the named-offset accessors in sectors.go
// against an independent restruct-based unpack of the same boot sector
// bytes, for BytsPerSec, SecPerClus, RsvdSecCnt, NumFATs and RootEntCnt;
// the other unpacked fields are not compared. It never rejects
// a volume for a legitimate reason the accessors wouldn't already catch;
// it only catches an accessor/offset bug in this codebase.
func mountCheckBPB(bs *biosParamBlock) error {
	raw, err := unpackBPB(bs.data)
	if err != nil {
		return err
	}
	type field struct {
		name         string
		restruct, bs uint32
	}
	fields := []field{
		{"BytsPerSec", uint32(raw.BytsPerSec), uint32(bs.SectorSize())},
		{"SecPerClus", uint32(raw.SecPerClus), uint32(bs.SectorsPerCluster())},
		{"RsvdSecCnt", uint32(raw.RsvdSecCnt), uint32(bs.ReservedSectors())},
		{"NumFATs", uint32(raw.NumFATs), uint32(bs.NumberOfFATs())},
		{"RootEntCnt", uint32(raw.RootEntCnt), uint32(bs.RootDirEntries())},
	}
	for _, f := range fields {
		if f.restruct != f.bs {
			return fmt.Errorf("fat: BPB cross-check failed on %s: restruct=%d accessor=%d", f.name, f.restruct, f.bs)
		}
	}
	return nil
}
