package fat

import (
	"io"
	"log/slog"
)

// remove marks every directory entry belonging to the object last matched by
// find() as deleted (including its LFN chain, if any), by walking from the
// start of the entry block up to and including the matched short entry.
func (dp *dir) remove() fileResult {
	fsys := dp.obj.fs
	fsys.trace("dir:remove")
	target := dp.dptr
	ofs := dp.blk_ofs
	if ofs == maxu32 {
		ofs = target
	}
	fr := dp.sdi(ofs)
	if fr != frOK {
		return fr
	}
	for {
		fr = fsys.move_window(dp.sect)
		if fr != frOK {
			break
		}
		dp.dir[dirNameOff] = mskDDEM
		fsys.wflag = 1
		if dp.dptr >= target {
			break
		}
		fr = dp.next(false)
		if fr != frOK {
			break
		}
	}
	return fr
}

// dirIsEmpty reports whether the directory starting at clst holds no entries
// besides "." and "..".
func (fsys *FS) dirIsEmpty(clst uint32) (bool, fileResult) {
	var sdj dir
	sdj.obj.fs = fsys
	sdj.obj.sclust = clst
	fr := sdj.sdi(0)
	for fr == frOK {
		fr = fsys.move_window(sdj.sect)
		if fr != frOK {
			break
		}
		c := sdj.dir[dirNameOff]
		if c == 0 {
			return true, frOK // End of table: empty.
		}
		if c != mskDDEM && c != '.' {
			attr := sdj.dir[dirAttrOff] & amMASK
			if attr != amLFN {
				return false, frOK
			}
		}
		fr = sdj.next(false)
	}
	if fr == frNoFile {
		return true, frOK
	}
	return false, fr
}

// f_unlink removes a file or an empty directory.
func (fsys *FS) f_unlink(path string) fileResult {
	fsys.trace("f_unlink", slog.String("path", path))
	path += "\x00"
	if fsys.fstype == fstypeExFAT {
		return frUnsupported
	} else if fsys.perm&ModeWrite == 0 {
		return frWriteProtected
	}
	var dj dir
	dj.obj.fs = fsys
	fr := dj.follow_path(path)
	if fr == frOK && dj.fn[nsFLAG]&nsDOT != 0 {
		fr = frInvalidName // Cannot remove "." or "..".
	}
	if fr != frOK {
		return fr
	}
	if dj.fn[nsFLAG]&nsNONAME != 0 {
		return frInvalidName // Cannot remove the root directory.
	}
	if dj.obj.attr&amRDO != 0 {
		return frDenied
	}
	dclst := fsys.ld_clust(dj.dir)
	if dj.obj.attr&amDIR != 0 {
		empty, fr := fsys.dirIsEmpty(dclst)
		if fr != frOK {
			return fr
		} else if !empty {
			return frDenied
		}
	}

	fr = dj.remove()
	if fr != frOK {
		return fr
	}
	if dclst != 0 {
		fr = dj.obj.remove_chain(dclst, 0)
		if fr != frOK {
			return fr
		}
	}
	return fsys.sync()
}

// f_rename moves the object at oldPath to newPath, preserving its attributes,
// timestamps, cluster chain and size.
func (fsys *FS) f_rename(oldPath, newPath string) fileResult {
	fsys.trace("f_rename", slog.String("old", oldPath), slog.String("new", newPath))
	oldPath += "\x00"
	newPath += "\x00"
	if fsys.fstype == fstypeExFAT {
		return frUnsupported
	} else if fsys.perm&ModeWrite == 0 {
		return frWriteProtected
	}

	var djo dir
	djo.obj.fs = fsys
	fr := djo.follow_path(oldPath)
	if fr == frOK && djo.fn[nsFLAG]&nsDOT != 0 {
		fr = frInvalidName
	}
	if fr != frOK {
		return fr
	}
	if djo.fn[nsFLAG]&nsNONAME != 0 {
		return frInvalidName // Cannot rename the root directory.
	}

	// Snapshot the old entry's raw bytes; dj.dir is a slice into the shared
	// sector window, which the lookup of newPath below will overwrite.
	var buf [sizeDirEntry]byte
	copy(buf[:], djo.dir[:sizeDirEntry])
	wasDir := djo.obj.attr&amDIR != 0

	djn := djo
	fr = djn.follow_path(newPath)
	if fr == frOK {
		if djn.fn[nsFLAG]&nsNONAME != 0 {
			fr = frInvalidName
		} else {
			fr = frExist
		}
	}
	if fr != frNoFile {
		return fr
	}

	fr = djn.register()
	if fr != frOK {
		return fr
	}
	dst := djn.dir
	dst[dirAttrOff] = buf[dirAttrOff]
	copy(dst[dirCrtTime10Off:sizeDirEntry], buf[dirCrtTime10Off:sizeDirEntry])
	fsys.wflag = 1
	if wasDir {
		// TODO(soypat): fix up the ".." entry when a directory moves to a
		// different parent directory.
	}

	fr = djo.remove()
	if fr != frOK {
		return fr
	}
	return fsys.sync()
}

// file_alloc extends obj's cluster chain to cover at least size bytes,
// without changing obj.objsize. Clusters allocated this way are reused by
// subsequent writes instead of being allocated fresh.
func (obj *objid) file_alloc(size int64) fileResult {
	fsys := obj.fs
	if size <= obj.objsize {
		return frOK
	}
	bcs := int64(fsys.csize) * int64(fsys.ssize)
	want := (size + bcs - 1) / bcs

	var have int64
	clst := obj.sclust
	var last uint32
	for clst >= 2 && clst < fsys.n_fatent {
		have++
		last = clst
		nxt := obj.clusterstat(clst)
		if nxt == maxu32 {
			return frDiskErr
		} else if nxt <= 1 {
			return frIntErr
		}
		clst = nxt
	}

	for ; have < want; have++ {
		nc := obj.create_chain(last)
		switch nc {
		case 0:
			return frDenied
		case 1:
			return frIntErr
		case maxu32:
			return frDiskErr
		}
		if last == 0 {
			obj.sclust = nc
		}
		last = nc
	}
	return frOK
}

// truncateTail frees any cluster chain allocated beyond the file's current
// size, reclaiming clusters left over from a Preallocate call.
func (fp *File) truncateTail() fileResult {
	obj := &fp.obj
	fsys := obj.fs
	if obj.sclust == 0 {
		return frOK
	}
	bcs := int64(fsys.csize) * int64(fsys.ssize)
	want := (obj.objsize + bcs - 1) / bcs
	if want == 0 {
		fr := obj.remove_chain(obj.sclust, 0)
		obj.sclust = 0
		return fr
	}

	clst := obj.sclust
	for i := int64(1); i < want; i++ {
		nxt := obj.clusterstat(clst)
		if nxt == maxu32 {
			return frDiskErr
		} else if nxt <= 1 || nxt >= fsys.n_fatent {
			return frIntErr
		}
		clst = nxt
	}
	tail := obj.clusterstat(clst)
	if tail == maxu32 {
		return frDiskErr
	} else if tail < 2 || tail >= fsys.n_fatent {
		return frOK // No preallocated tail left to free.
	}
	return obj.remove_chain(tail, clst)
}

// f_lseek moves the file's read/write pointer to ofs, following (and, in
// write mode, extending) the cluster chain as needed.
func (fp *File) f_lseek(ofs int64) fileResult {
	fsys := fp.obj.fs
	fsys.trace("f_lseek", slog.Int64("ofs", ofs))
	if fp.flag == 0 {
		return frInvalidObject
	} else if fp.err != frOK {
		return fp.err
	} else if fsys.fstype == fstypeExFAT {
		return frUnsupported
	} else if ofs < 0 {
		return frInvalidParameter
	}
	if ofs > fp.obj.objsize && fp.flag&faWrite == 0 {
		ofs = fp.obj.objsize
	}
	if fp.flag&faDIRTY != 0 {
		// Write back the buffered sector before the buffer is reloaded.
		if fsys.disk_write(fp.buf[:], fp.sect, 1) != drOK {
			return fp.abort(frDiskErr)
		}
		fp.flag &^= faDIRTY
	}

	prevFptr, prevClust := fp.fptr, fp.clust
	fp.fptr = 0
	fp.sect = 0
	var clst uint32
	if ofs > 0 {
		bcs := int64(fsys.csize) * int64(fsys.ssize)
		if prevFptr > 0 && (ofs-1)/bcs >= (prevFptr-1)/bcs {
			// Destination is in or after the cluster already positioned at.
			clst = prevClust
			fp.fptr = (prevFptr - 1) &^ (bcs - 1)
			ofs -= fp.fptr
		} else {
			clst = fp.obj.sclust
			if clst == 0 && fp.flag&faWrite != 0 {
				clst = fp.obj.create_chain(0)
				switch clst {
				case 0:
					return frDenied
				case 1:
					return fp.abort(frIntErr)
				case maxu32:
					return fp.abort(frDiskErr)
				}
				fp.obj.sclust = clst
			}
		}
		fp.clust = clst
		if clst != 0 {
			for ofs > bcs {
				ofs -= bcs
				fp.fptr += bcs
				if fp.flag&faWrite != 0 {
					clst = fp.obj.create_chain(clst)
					if clst == 0 {
						ofs = 0 // Disk full: clip the seek short.
						break
					}
				} else {
					clst = fp.obj.clusterstat(clst)
				}
				if clst == maxu32 {
					return fp.abort(frDiskErr)
				} else if clst <= 1 || clst >= fsys.n_fatent {
					return fp.abort(frIntErr)
				}
				fp.clust = clst
			}
			fp.fptr += ofs
			if fsys.modSS(uint32(ofs)) != 0 {
				fp.sect = fsys.clst2sect(clst) + lba(ofs/int64(fsys.ssize))
			}
		}
	}

	if fp.fptr > fp.obj.objsize {
		fp.obj.objsize = fp.fptr
		fp.flag |= faMODIFIED
	}
	if fsys.modSS(uint32(fp.fptr)) != 0 && fp.sect != 0 {
		if fsys.disk_read(fp.buf[:], fp.sect, 1) != drOK {
			return frDiskErr
		}
	}
	return frOK
}

// Seek implements io.Seeker, repositioning the file's read/write pointer.
// On a file opened for writing, seeking past the current end of file
// extends the file to the new position at once and allocates the clusters
// it needs; those clusters are not cleared. On a read-only file the
// position is clipped to the file size. A position before the start of the
// file returns ErrSeekPastEOF.
func (fp *File) Seek(offset int64, whence int) (int64, error) {
	fr := fp.obj.validate()
	if fr != frOK {
		return 0, wrapErr("seek", fr)
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = fp.fptr + offset
	case io.SeekEnd:
		abs = fp.obj.objsize + offset
	default:
		return 0, wrapErr("seek", frInvalidParameter)
	}
	if abs < 0 {
		return 0, ErrSeekPastEOF
	}
	fr = fp.f_lseek(abs)
	if fr != frOK {
		return 0, wrapErr("seek", fr)
	}
	return fp.fptr, nil
}

// Preallocate extends the file's cluster chain to cover at least n bytes,
// without changing its reported size or read/write position. Close frees
// whatever part of the preallocated tail is never written to.
func (fp *File) Preallocate(n int64) error {
	fr := fp.obj.validate()
	if fr != frOK {
		return wrapErr("preallocate", fr)
	} else if fp.flag&faWrite == 0 {
		return wrapErr("preallocate", frWriteProtected)
	}
	fr = fp.obj.file_alloc(n)
	if fr != frOK {
		return wrapErr("preallocate", fr)
	}
	return nil
}

// Remove removes the named file, or directory if it is empty.
func (fsys *FS) Remove(path string) error {
	fr := fsys.f_unlink(path)
	if fr != frOK {
		return wrapErr("remove", fr)
	}
	return nil
}

// Rename renames (moves) oldpath to newpath. It fails with ErrFilenameAlreadyExists
// if newpath already exists.
func (fsys *FS) Rename(oldpath, newpath string) error {
	fr := fsys.f_rename(oldpath, newpath)
	if fr != frOK {
		return wrapErr("rename", fr)
	}
	return nil
}
