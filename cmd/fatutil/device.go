package main

import (
	"os"
)

// fileBlockDevice adapts a regular *os.File to fat.BlockDevice, for mkfs
// targets and volumes too large to comfortably hold in memory. Unlike
// fat.MemBlockDevice it does not pre-size the backing store: Truncate must
// be called up front by the command that creates the image.
type fileBlockDevice struct {
	f         *os.File
	blockSize int
}

func newFileBlockDevice(f *os.File, blockSize int) *fileBlockDevice {
	return &fileBlockDevice{f: f, blockSize: blockSize}
}

func (d *fileBlockDevice) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	return d.f.ReadAt(dst, startBlock*int64(d.blockSize))
}

func (d *fileBlockDevice) WriteBlocks(data []byte, startBlock int64) (int, error) {
	return d.f.WriteAt(data, startBlock*int64(d.blockSize))
}

func (d *fileBlockDevice) EraseBlocks(startBlock, numBlocks int64) error {
	erased := make([]byte, int(numBlocks)*d.blockSize)
	for i := range erased {
		erased[i] = 0xFF
	}
	_, err := d.f.WriteAt(erased, startBlock*int64(d.blockSize))
	return err
}

// offsetBlockDevice maps block i of the logical device onto block
// i+sectorOffset of the underlying device, so a Formatter can write a FAT
// volume starting partway through a whole-disk image (after its MBR/GPT
// header and partition table).
type offsetBlockDevice struct {
	under       interface {
		ReadBlocks(dst []byte, startBlock int64) (int, error)
		WriteBlocks(data []byte, startBlock int64) (int, error)
		EraseBlocks(startBlock, numBlocks int64) error
	}
	sectorOffset int64
}

func (d *offsetBlockDevice) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	return d.under.ReadBlocks(dst, startBlock+d.sectorOffset)
}

func (d *offsetBlockDevice) WriteBlocks(data []byte, startBlock int64) (int, error) {
	return d.under.WriteBlocks(data, startBlock+d.sectorOffset)
}

func (d *offsetBlockDevice) EraseBlocks(startBlock, numBlocks int64) error {
	return d.under.EraseBlocks(startBlock+d.sectorOffset, numBlocks)
}
