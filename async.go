package fat

import "log/slog"

// AsyncBlockDevice is implemented by block devices that can complete a
// write without blocking the caller for the full transfer. WriteBlocksAsync
// must invoke callback exactly once, from any goroutine, once the write
// either completes or fails.
type AsyncBlockDevice interface {
	BlockDevice
	WriteBlocksAsync(data []byte, startBlock int64, callback func(n int, err error)) error
}

// StreamingBlockDevice is implemented by block devices capable of holding a
// multi-block write command open across a sequence of caller-supplied
// chunks, rather than requiring one WriteBlocks call per block.
type StreamingBlockDevice interface {
	BlockDevice
	// WriteBlocksStream starts a multi-block write at startBlock. pull is
	// invoked once per block the device is ready to accept; it returns the
	// next chunk of exactly one block's worth of data and a StreamResponse
	// directing the command to continue, pause, or terminate.
	WriteBlocksStream(startBlock int64, pull func() (data []byte, resp StreamResponse)) (blocksWritten int64, err error)
}

// StreamResponse is returned by a streaming write's pull callback to
// direct the engine's multi-block write command.
type StreamResponse int

const (
	// StreamReady means the returned data is valid; continue the command.
	StreamReady StreamResponse = iota
	// StreamSkip means no data is ready yet; the caller must invoke Pump
	// again once more is available. The command is paused, not aborted.
	StreamSkip
	// StreamStop means the stream is finished; terminate the command.
	StreamStop
)

// AsyncResult carries the outcome of a WriteAsync call once it completes.
type AsyncResult struct {
	N   int
	Err error
}

// writeBlocksBestEffort performs a block write through fsys.device,
// preferring AsyncBlockDevice.WriteBlocksAsync when the device implements
// it. The async completion is bridged back onto the calling goroutine
// through a buffered channel, so every caller of disk_write benefits
// transparently from an async-capable device without branching.
func (fsys *FS) writeBlocksBestEffort(buf []byte, sector lba, numsectors int) error {
	ad, ok := fsys.device.(AsyncBlockDevice)
	if !ok {
		_, err := fsys.device.WriteBlocks(buf, int64(sector))
		return err
	}
	fsys.trace("fs:writeBlocksBestEffort:async", slog.Uint64("start", uint64(sector)), slog.Int("numsectors", numsectors))
	done := make(chan error, 1)
	if err := ad.WriteBlocksAsync(buf, int64(sector), func(_ int, err error) {
		done <- err
	}); err != nil {
		return err
	}
	return <-done
}

// WriteAsync issues buf as a write at the file's current position and
// invokes callback with the outcome. No goroutine is spawned: this engine
// drives every operation from the caller's goroutine with at most one
// outstanding block-device operation at a time, the same discipline
// writeBlocksBestEffort already follows for disk_write. When the
// underlying device implements AsyncBlockDevice, the sector writes inside
// f_write complete through the device's own completion callback instead of
// blocking on I/O; WriteAsync just gives callers a callback-shaped call
// convention on top of that, rather than a second goroutine racing
// f_write's caller on fsys.win and fp.buf.
//
// Per-file operations are not reentrant: callers must wait for callback
// before issuing another WriteAsync, Write, or Seek on the same File.
func (fp *File) WriteAsync(buf []byte, callback func(AsyncResult)) {
	bw, fr := fp.f_write(buf)
	var err error
	if fr != frOK {
		err = wrapErr("write_async", fr)
	}
	callback(AsyncResult{N: bw, Err: err})
}

// StreamWriter drives the pull-based streaming write protocol described by
// §4.6: the caller repeatedly supplies chunks through a pull callback and
// Pump threads them into the file's cluster chain, cooperatively yielding
// on StreamSkip rather than busy-polling.
type StreamWriter struct {
	fp   *File
	done bool
	err  fileResult
}

// NewStreamWriter returns a StreamWriter bound to fp, which must already be
// open for writing.
func NewStreamWriter(fp *File) *StreamWriter {
	return &StreamWriter{fp: fp}
}

// Pump calls pull to obtain chunks and writes each one in turn.
//
//   - pull returning StreamSkip pauses the stream; Pump returns (false, nil)
//     and must be called again once more data is ready. No state is lost.
//   - pull returning StreamReady writes the chunk and loops, calling pull
//     again immediately for the next one.
//   - pull returning StreamStop finalizes the file (frees any unused
//     preallocated tail and flushes the directory entry) and Pump returns
//     (true, nil).
//
// Any write error finalizes the stream and is returned with done=true.
func (sw *StreamWriter) Pump(pull func() (data []byte, resp StreamResponse)) (done bool, err error) {
	if sw.done {
		return true, wrapErr("stream", sw.err)
	}
	for {
		buf, resp := pull()
		switch resp {
		case StreamSkip:
			return false, nil
		case StreamStop:
			fr := sw.fp.finalizeStream()
			sw.done = true
			sw.err = fr
			if fr != frOK {
				return true, wrapErr("stream", fr)
			}
			return true, nil
		case StreamReady:
			if _, fr := sw.fp.f_write(buf); fr != frOK {
				sw.done = true
				sw.err = fr
				return true, wrapErr("stream", fr)
			}
		default:
			sw.done = true
			sw.err = frInvalidParameter
			return true, wrapErr("stream", frInvalidParameter)
		}
	}
}

// finalizeStream frees any unused preallocated tail and flushes the
// directory entry, without closing the file. Used when a StreamWriter
// reaches StreamStop; the caller still owns the File and may Close it
// separately.
func (fp *File) finalizeStream() fileResult {
	if fp.flag&faWrite != 0 {
		if fr := fp.truncateTail(); fr != frOK {
			return fr
		}
	}
	return fp.obj.fs.f_sync(fp)
}
