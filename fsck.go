package fat

import (
	"log/slog"

	"github.com/boljen/go-bitmap"
)

// CheckReport summarizes the result of a consistency check walk over a
// mounted volume: every cluster marked allocated in the FAT, cross-checked
// against every cluster actually reachable by walking the directory tree
// from the root.
type CheckReport struct {
	TotalClusters uint32
	FreeClusters  uint32 // counted directly from the FAT during the walk.

	// LostChains holds the start cluster of every cluster chain that is
	// marked allocated in the FAT but unreachable from any directory entry.
	LostChains []uint32

	// CrossLinked holds every cluster visited more than once while walking
	// the directory tree, meaning two or more files/directories share it.
	CrossLinked []uint32
}

// Clean reports whether the volume has no lost chains and no cross-linked
// clusters.
func (r CheckReport) Clean() bool {
	return len(r.LostChains) == 0 && len(r.CrossLinked) == 0
}

// Check walks fsys's FAT and directory tree and reports inconsistencies:
// clusters allocated but not referenced by any file (lost chains) and
// clusters referenced by more than one file or directory (cross-linked).
// It does not modify the volume.
func (fsys *FS) Check() (CheckReport, error) {
	fsys.trace("fs:check")
	n := int(fsys.n_fatent)
	allocated := bitmap.New(n)
	visited := bitmap.New(n)

	probe := objid{fs: fsys}
	var report CheckReport
	report.TotalClusters = fsys.n_fatent - 2
	for clst := uint32(2); clst < fsys.n_fatent; clst++ {
		v := probe.clusterstat(clst)
		if v == maxu32 {
			return report, ErrCommunication
		}
		if v == 0 {
			report.FreeClusters++
		} else {
			allocated.Set(int(clst), true)
		}
	}

	crossLinkedSet := make(map[uint32]bool)
	markChain := func(start uint32) fileResult {
		clst := start
		for clst >= 2 && clst < fsys.n_fatent {
			if visited.Get(int(clst)) {
				crossLinkedSet[clst] = true
			}
			visited.Set(int(clst), true)
			nxt := probe.clusterstat(clst)
			if nxt == maxu32 {
				return frDiskErr
			} else if nxt <= 1 {
				return frOK // chain ends; a chain that ends early on a free/reserved entry is not reported.
			}
			clst = nxt
		}
		return frOK
	}

	var walk func(clst uint32, isRoot bool) fileResult
	walk = func(clst uint32, isRoot bool) fileResult {
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
				return frOK
			}
			attr := sdj.dir[dirAttrOff] & amMASK
			if c != mskDDEM && attr != amLFN && c != '.' {
				entClst := fsys.ld_clust(sdj.dir)
				isDir := attr&amDIR != 0
				if entClst != 0 {
					if fr := markChain(entClst); fr != frOK {
						return fr
					}
					if isDir {
						if fr := walk(entClst, false); fr != frOK {
							return fr
						}
					}
				}
			}
			fr = sdj.next(false)
		}
		if fr == frNoFile {
			return frOK
		}
		return fr
	}

	if fsys.fstype == fstypeFAT32 {
		if fr := markChain(fsys.dirclustFAT32()); fr != frOK {
			return report, wrapErr("check", fr)
		}
		if fr := walk(fsys.dirclustFAT32(), true); fr != frOK && fr != frNoFile {
			return report, wrapErr("check", fr)
		}
	} else {
		if fr := walk(0, true); fr != frOK && fr != frNoFile {
			return report, wrapErr("check", fr)
		}
	}

	linked := bitmap.New(n) // lost clusters that another lost cluster links to.
	for clst := uint32(2); clst < fsys.n_fatent; clst++ {
		if allocated.Get(int(clst)) && !visited.Get(int(clst)) {
			if nxt := probe.clusterstat(clst); nxt >= 2 && nxt < fsys.n_fatent {
				linked.Set(int(nxt), true)
			}
		}
	}
	for clst := uint32(2); clst < fsys.n_fatent; clst++ {
		if allocated.Get(int(clst)) && !visited.Get(int(clst)) && !linked.Get(int(clst)) {
			report.LostChains = append(report.LostChains, clst)
		}
	}
	for clst := range crossLinkedSet {
		report.CrossLinked = append(report.CrossLinked, clst)
	}

	fsys.debug("fsck:complete", slog.Int("lost_chains", len(report.LostChains)),
		slog.Int("cross_linked", len(report.CrossLinked)), slog.Uint64("free_clusters", uint64(report.FreeClusters)))
	return report, nil
}

// dirclustFAT32 returns the root directory's first cluster for FAT32
// volumes, where (unlike FAT12/16) the root directory is itself a regular
// cluster chain rooted at dirbase.
func (fsys *FS) dirclustFAT32() uint32 {
	return uint32(fsys.dirbase)
}

// Reclaim walks the volume with Check and frees every lost chain it finds,
// returning the number of clusters reclaimed. Cross-linked clusters are
// reported but never touched automatically, since unlinking one owner's
// reference to a shared cluster without operator input risks silently
// truncating the other owner's data.
func (fsys *FS) Reclaim() (freed int, err error) {
	report, err := fsys.Check()
	if err != nil {
		return 0, err
	}
	probe := objid{fs: fsys}
	for _, start := range report.LostChains {
		n := 0
		for clst := start; clst >= 2 && clst < fsys.n_fatent; {
			n++
			nxt := probe.clusterstat(clst)
			if nxt == maxu32 {
				return freed, ErrCommunication
			}
			clst = nxt
		}
		if fr := probe.remove_chain(start, 0); fr != frOK {
			return freed, wrapErr("reclaim", fr)
		}
		freed += n
	}
	if len(report.LostChains) > 0 {
		if fr := fsys.sync(); fr != frOK {
			return freed, wrapErr("reclaim", fr)
		}
	}
	return freed, nil
}
