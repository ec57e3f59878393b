package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	fat "github.com/hgrove/fatfs"
	"github.com/hgrove/fatfs/internal/mbr"
	"github.com/urfave/cli/v2"
)

const defaultBlockSize = 512

var mkfsCommand = &cli.Command{
	Name:      "mkfs",
	Usage:     "Create a fresh FAT12/FAT16/FAT32 image",
	ArgsUsage: "IMAGE_PATH",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "size", Usage: "image size in bytes", Required: true},
		&cli.IntFlag{Name: "block-size", Usage: "sector size in bytes", Value: defaultBlockSize},
		&cli.StringFlag{Name: "format", Usage: "fat12, fat16 or fat32", Value: "fat32"},
		&cli.IntFlag{Name: "cluster-size", Usage: "cluster size in bytes, 0 picks a default for the image size"},
		&cli.StringFlag{Name: "label", Usage: "volume label", Value: "NO NAME"},
		&cli.IntFlag{Name: "fats", Usage: "number of FAT copies", Value: 2},
		&cli.BoolFlag{Name: "whole-disk", Usage: "write a protective MBR with a single partition ahead of the FAT volume"},
	},
	Action: mkfsAction,
}

func mkfsAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("mkfs: missing IMAGE_PATH argument")
	}
	size := c.Int64("size")
	blockSize := c.Int("block-size")
	if size <= 0 || blockSize <= 0 || size%int64(blockSize) != 0 {
		return fmt.Errorf("mkfs: size must be a positive multiple of block-size")
	}
	totalBlocks := size / int64(blockSize)

	cfg := fat.FormatConfig{
		Label:        c.String("label"),
		ClusterSize:  c.Int("cluster-size") / blockSize,
		NumberOfFATs: uint8(c.Int("fats")),
	}
	switch c.String("format") {
	case "fat12":
		cfg.Format = fat.FormatFAT12
	case "fat16":
		cfg.Format = fat.FormatFAT16
	case "fat32", "":
		cfg.Format = fat.FormatFAT32
	default:
		return fmt.Errorf("mkfs: unsupported format %q", c.String("format"))
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("mkfs: %w", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("mkfs: %w", err)
	}

	dev := newFileBlockDevice(f, blockSize)
	var formatter fat.Formatter
	fsBlocks := totalBlocks

	if c.Bool("whole-disk") {
		partStart := int64(1)
		fsBlocks = totalBlocks - partStart
		if err := writeProtectiveMBR(dev, blockSize, partStart, fsBlocks, cfg.Format); err != nil {
			return fmt.Errorf("mkfs: %w", err)
		}
		partDev := &offsetBlockDevice{under: dev, sectorOffset: partStart}
		if err := formatter.Format(partDev, blockSize, int(fsBlocks), cfg); err != nil {
			return fmt.Errorf("mkfs: format partition: %w", err)
		}
	} else {
		if err := formatter.Format(dev, blockSize, int(fsBlocks), cfg); err != nil {
			return fmt.Errorf("mkfs: format: %w", err)
		}
	}

	slog.Info("mkfs: wrote image", slog.String("path", path), slog.Int64("size", size),
		slog.String("format", cfg.Format.String()), slog.Bool("whole_disk", c.Bool("whole-disk")))
	return nil
}

// writeProtectiveMBR writes a single-partition MBR at sector 0 of dev,
// covering [partStart, partStart+partBlocks) with a FAT partition type
// matching format. mbr.BootSector exposes no setter for the unique disk ID or
// boot signature, so those two fields are poked directly into the backing
// buffer at their well-known MBR offsets (0x1B8 and 0x1FE) before the
// sector is written out.
func writeProtectiveMBR(dev *fileBlockDevice, blockSize int, partStart, partBlocks int64, format fat.Format) error {
	buf := make([]byte, blockSize)
	bs, err := mbr.ToBootSector(buf)
	if err != nil {
		return err
	}

	var ptype mbr.PartitionType
	switch format {
	case fat.FormatFAT12:
		ptype = mbr.PartitionTypeFAT12
	case fat.FormatFAT16:
		ptype = mbr.PartitionTypeFAT16
	default:
		ptype = mbr.PartitionTypeFAT32LBA
	}
	startCHS := mbr.NewCHS(0, 1, 1)
	lastCHS := mbr.NewCHS(1023, 254, 63) // CHS is ignored by anything that understands LBA.
	pte := mbr.MakePTE(mbr.DriveAttrsBootable, ptype, uint32(partStart), uint32(partBlocks), startCHS, lastCHS)
	bs.SetPartitionTable(0, pte)

	const (
		uniqueDiskIDOff  = 0x1B8
		bootSignatureOff = 0x1FE
	)
	binary.LittleEndian.PutUint32(buf[uniqueDiskIDOff:], fatengDiskSerial)
	binary.LittleEndian.PutUint16(buf[bootSignatureOff:], mbr.BootSignature)

	_, err = dev.WriteBlocks(buf, 0)
	return err
}

// fatengDiskSerial is a fixed-looking disk serial, chosen the same way
// format.go's volumeSerial avoids depending on wall clock time.
const fatengDiskSerial = 0x46415445 // "FATE" in ASCII, reversed by little-endian storage.
