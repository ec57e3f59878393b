package fat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAsyncCallsBackSynchronously(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT16, 16*1024*1024, 512)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/async.bin", ModeRead|ModeWrite|ModeCreateNew))

	var called bool
	var result AsyncResult
	fp.WriteAsync([]byte("async payload"), func(r AsyncResult) {
		called = true
		result = r
	})
	// WriteAsync must invoke callback before returning: no goroutine is
	// spawned, so the assertion below must already see the outcome.
	require.True(t, called, "callback must fire synchronously from WriteAsync")
	require.NoError(t, result.Err)
	require.Equal(t, len("async payload"), result.N)
	require.NoError(t, fp.Close())

	require.NoError(t, fsys.OpenFile(&fp, "/async.bin", ModeRead))
	got := make([]byte, 32)
	n, err := fp.Read(got)
	require.NoError(t, err)
	require.Equal(t, "async payload", string(got[:n]))
	require.NoError(t, fp.Close())
}

func TestStreamWriterPumpHandlesSkipAndStop(t *testing.T) {
	fsys, _ := formatAndMount(t, FormatFAT16, 16*1024*1024, 512)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/stream.bin", ModeRead|ModeWrite|ModeCreateNew))

	chunks := [][]byte{[]byte("one-"), []byte("two-"), []byte("three")}
	idx := 0
	skipOnce := true
	sw := NewStreamWriter(&fp)

	pull := func() ([]byte, StreamResponse) {
		if skipOnce {
			skipOnce = false
			return nil, StreamSkip
		}
		if idx >= len(chunks) {
			return nil, StreamStop
		}
		c := chunks[idx]
		idx++
		return c, StreamReady
	}

	done, err := sw.Pump(pull)
	require.NoError(t, err)
	require.False(t, done, "a StreamSkip response must pause, not finish, the pump")

	done, err = sw.Pump(pull)
	require.NoError(t, err)
	require.True(t, done)
	require.NoError(t, fp.Close())

	require.NoError(t, fsys.OpenFile(&fp, "/stream.bin", ModeRead))
	got := make([]byte, 32)
	n, err := fp.Read(got)
	require.NoError(t, err)
	require.Equal(t, "one-two-three", string(got[:n]))
	require.NoError(t, fp.Close())
}

func TestNoBufferingRequiresSectorAlignment(t *testing.T) {
	const blockSize = 512
	fsys, _ := formatAndMount(t, FormatFAT16, 16*1024*1024, blockSize)

	var fp File
	require.NoError(t, fsys.OpenFile(&fp, "/raw.bin", ModeRead|ModeWrite|ModeCreateNew|ModeNoBuffering))

	aligned := make([]byte, blockSize*2)
	for i := range aligned {
		aligned[i] = byte(i)
	}
	n, err := fp.Write(aligned)
	require.NoError(t, err)
	require.Equal(t, len(aligned), n)

	// A length that is not a multiple of the sector size must be rejected
	// outright rather than silently buffered, since ModeNoBuffering promises
	// bytes go straight to the block device.
	_, err = fp.Write(make([]byte, 10))
	require.Error(t, err)
	require.NoError(t, fp.Close())

	require.NoError(t, fsys.OpenFile(&fp, "/raw.bin", ModeRead|ModeNoBuffering))
	got := make([]byte, len(aligned))
	n, err = fp.Read(got)
	require.NoError(t, err)
	require.Equal(t, aligned, got[:n])
	require.NoError(t, fp.Close())
}
