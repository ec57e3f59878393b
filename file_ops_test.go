package fat

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenameAndRemove(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT16, 16*1024*1024, 512)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/original-long-name.txt", ModeRead|ModeWrite|ModeCreateNew))
	_, err := fp.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	require.NoError(t, fsys.Rename("/original-long-name.txt", "/renamed.txt"))

	require.NoError(t, fsys.OpenFile(&fp, "/renamed.txt", ModeRead))
	got := make([]byte, 16)
	n, err := fp.Read(got)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got[:n]))
	require.NoError(t, fp.Close())

	// The old name no longer resolves.
	require.Error(t, fsys.OpenFile(&fp, "/original-long-name.txt", ModeRead))

	require.NoError(t, fsys.Remove("/renamed.txt"))
	require.Error(t, fsys.OpenFile(&fp, "/renamed.txt", ModeRead))
}

func TestRenameRejectsExistingTarget(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT16, 16*1024*1024, 512)

	var fp File
	for _, name := range []string{"/a.txt", "/b.txt"} {
		require.NoError(t, fsys.OpenFile(&fp, name, ModeRead|ModeWrite|ModeCreateNew))
		require.NoError(t, fp.Close())
	}

	err := fsys.Rename("/a.txt", "/b.txt")
	require.ErrorIs(t, err, ErrFilenameAlreadyExists)
}

func TestSeekExtendsFileWithZeroFill(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT16, 16*1024*1024, 512)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/sparse.bin", ModeRead|ModeWrite|ModeCreateNew))
	_, err := fp.Write([]byte("abc"))
	require.NoError(t, err)

	off, err := fp.Seek(10, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(10), off)

	_, err = fp.Write([]byte("XY"))
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	require.NoError(t, fsys.OpenFile(&fp, "/sparse.bin", ModeRead))
	got := make([]byte, 32)
	n, err := fp.Read(got)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, "abc\x00\x00\x00\x00\x00\x00\x00XY", string(got[:n]))
	require.NoError(t, fp.Close())
}

func TestSeekPastEOFReadOnlyClips(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT16, 16*1024*1024, 512)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/short.txt", ModeRead|ModeWrite|ModeCreateNew))
	_, err := fp.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	require.NoError(t, fsys.OpenFile(&fp, "/short.txt", ModeRead))
	off, err := fp.Seek(1000, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(2), off, "read-only seek past EOF clips to the current size")

	_, err = fp.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrSeekPastEOF)
	require.NoError(t, fp.Close())
}

func TestPreallocateFreesUnusedTailOnClose(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT12, 2*1024*1024, 512)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/reserved.bin", ModeRead|ModeWrite|ModeCreateNew))
	require.NoError(t, fp.Preallocate(64*1024))

	_, err := fp.Write([]byte("small write"))
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	require.NoError(t, fsys.OpenFile(&fp, "/reserved.bin", ModeRead))
	got := make([]byte, 32)
	n, err := fp.Read(got)
	require.NoError(t, err)
	require.Equal(t, "small write", string(got[:n]))
	require.NoError(t, fp.Close())

	// The preallocated tail beyond what was actually written must have been
	// unlinked from the chain, not merely left dangling.
	report, err := fsys.Check()
	require.NoError(t, err)
	require.True(t, report.Clean())
}
