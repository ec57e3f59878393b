package fat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckCleanOnFreshVolume(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT12, 2*1024*1024, 512)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/a.txt", ModeRead|ModeWrite|ModeCreateNew))
	_, err := fp.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	report, err := fsys.Check()
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.Empty(t, report.LostChains)
	require.Empty(t, report.CrossLinked)
}

// TestCheckAndReclaimLostChain simulates the crash window the distilled
// spec leaves implementation-defined (directory entry unlinked, cluster
// chain not yet freed) and checks that Check reports it as a lost chain and
// Reclaim frees it.
func TestCheckAndReclaimLostChain(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT12, 2*1024*1024, 512)

	const name = "orphan.txt\x00"
	var fp File
	fr := fsys.f_open(&fp, name, faRead|faWrite|faCreateNew)
	require.Equal(t, frOK, fr)
	_, fr = fp.f_write([]byte("orphaned data"))
	require.Equal(t, frOK, fr)
	fr = fp.f_close()
	require.Equal(t, frOK, fr)

	report, err := fsys.Check()
	require.NoError(t, err)
	require.True(t, report.Clean())

	var dj dir
	dj.obj.fs = fsys
	fr = dj.follow_path(name)
	require.Equal(t, frOK, fr)
	fr = fsys.move_window(dj.sect)
	require.Equal(t, frOK, fr)
	dj.dir[dirNameOff] = mskDDEM
	fsys.wflag = 1
	require.Equal(t, frOK, fsys.sync())

	report, err = fsys.Check()
	require.NoError(t, err)
	require.False(t, report.Clean())
	require.Len(t, report.LostChains, 1)
	require.Empty(t, report.CrossLinked)

	freed, err := fsys.Reclaim()
	require.NoError(t, err)
	require.Greater(t, freed, 0)

	report, err = fsys.Check()
	require.NoError(t, err)
	require.True(t, report.Clean())
}

// TestCheckManyFilesFAT12 formats a small FAT12 volume, fills it with many
// small files, then runs Check to confirm a chkdsk-style pass over a
// realistically populated FAT12 root directory reports clean.
func TestCheckManyFilesFAT12(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT12, 2*1024*1024, 512)

	const numFiles = 100
	for i := 0; i < numFiles; i++ {
		var fp File
		name := fmt.Sprintf("/file%03d.txt", i)
		require.NoError(t, fsys.OpenFile(&fp, name, ModeRead|ModeWrite|ModeCreateNew))
		_, err := fp.Write([]byte(fmt.Sprintf("contents of file %d", i)))
		require.NoError(t, err)
		require.NoError(t, fp.Close())
	}

	report, err := fsys.Check()
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.EqualValues(t, numFiles, report.TotalClusters-report.FreeClusters)
}
