package fat

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

// formatAndMount formats a fresh MemBlockDevice of the given format and size
// and mounts it read-write, for tests that need a clean volume rather than
// the teacher's fixed fatInit image.
func formatAndMount(t *testing.T, format Format, sizeBytes int64, blockSize int) (*FS, *MemBlockDevice) {
	t.Helper()
	buf := make([]byte, sizeBytes)
	dev := NewMemBlockDevice(buf, blockSize)
	var formatter Formatter
	cfg := FormatConfig{Format: format, Label: "TESTVOL"}
	err := formatter.Format(dev, blockSize, int(sizeBytes)/blockSize, cfg)
	require.NoError(t, err)

	var fsys FS
	attachLogger(&fsys)
	err = fsys.Mount(dev, blockSize, ModeRW)
	require.NoError(t, err)
	return &fsys, dev
}

func TestFormatRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		size   int64
	}{
		{"FAT12", FormatFAT12, 2 * 1024 * 1024},
		{"FAT16", FormatFAT16, 32 * 1024 * 1024},
		{"FAT32", FormatFAT32, 128 * 1024 * 1024},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fsys, _ := formatAndMount(t, tc.format, tc.size, 512)

			var fp File
			require.NoError(t, fsys.OpenFile(&fp, "/hello.txt", ModeRead|ModeWrite|ModeCreateNew))
			n, err := fp.Write([]byte("hello, fat"))
			require.NoError(t, err)
			require.Equal(t, len("hello, fat"), n)
			require.NoError(t, fp.Close())

			require.NoError(t, fsys.OpenFile(&fp, "/hello.txt", ModeRead))
			got := make([]byte, 32)
			n, err = fp.Read(got)
			require.NoError(t, err)
			require.Equal(t, "hello, fat", string(got[:n]))
			require.NoError(t, fp.Close())
		})
	}
}

func TestFormatValidationAggregatesErrors(t *testing.T) {
	buf := make([]byte, 1<<20)
	dev := NewMemBlockDevice(buf, 512)
	var formatter Formatter
	// Two independent violations: cluster size not a power of two, and an
	// out-of-range FAT copy count.
	cfg := FormatConfig{Format: FormatFAT12, ClusterSize: 3, NumberOfFATs: 5}
	err := formatter.Format(dev, 512, len(buf)/512, cfg)
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected a *multierror.Error, got %T", err)
	require.GreaterOrEqual(t, len(merr.Errors), 2)
}

func TestFAT32BackupBootSectorMatchesPrimary(t *testing.T) {
	_, dev := formatAndMount(t, FormatFAT32, 128*1024*1024, 512)

	primary := make([]byte, 512)
	backup := make([]byte, 512)
	_, err := dev.ReadBlocks(primary, 0)
	require.NoError(t, err)
	_, err = dev.ReadBlocks(backup, 6)
	require.NoError(t, err)
	require.Equal(t, primary, backup, "FAT32 backup boot sector at LBA 6 must mirror the primary boot sector")

	fsInfoPrimary := make([]byte, 512)
	fsInfoBackup := make([]byte, 512)
	_, err = dev.ReadBlocks(fsInfoPrimary, 1)
	require.NoError(t, err)
	_, err = dev.ReadBlocks(fsInfoBackup, 7)
	require.NoError(t, err)
	require.Equal(t, fsInfoPrimary, fsInfoBackup, "FAT32 backup FSInfo at LBA 7 must mirror the primary FSInfo sector")
}
