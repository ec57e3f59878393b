package fat

import (
	"github.com/xaionaro-go/bytesextra"
)

// MemBlockDevice adapts an in-memory byte slice to the BlockDevice
// interface via bytesextra.ReadWriteSeeker, for tests and for small
// disk images (the kind cmd/fatutil works with) that comfortably fit in
// memory. buf must already be sized to the full device capacity; unlike a
// file, this device does not grow.
type MemBlockDevice struct {
	buf       []byte
	rws       *bytesextra.ReadWriteSeeker
	blockSize int
}

// NewMemBlockDevice wraps buf (len(buf) must be a multiple of blockSize) as
// a BlockDevice.
func NewMemBlockDevice(buf []byte, blockSize int) *MemBlockDevice {
	return &MemBlockDevice{
		buf:       buf,
		rws:       bytesextra.NewReadWriteSeeker(buf),
		blockSize: blockSize,
	}
}

func (m *MemBlockDevice) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	return m.rws.ReadAt(dst, startBlock*int64(m.blockSize))
}

func (m *MemBlockDevice) WriteBlocks(data []byte, startBlock int64) (int, error) {
	return m.rws.WriteAt(data, startBlock*int64(m.blockSize))
}

// EraseBlocks fills the given block range with 0xFF, mirroring how NOR/NAND
// flash reads after an erase.
func (m *MemBlockDevice) EraseBlocks(startBlock, numBlocks int64) error {
	erased := make([]byte, int(numBlocks)*m.blockSize)
	for i := range erased {
		erased[i] = 0xFF
	}
	_, err := m.rws.WriteAt(erased, startBlock*int64(m.blockSize))
	return err
}

// Bytes returns the backing slice, e.g. to persist the image to disk.
func (m *MemBlockDevice) Bytes() []byte { return m.buf }
