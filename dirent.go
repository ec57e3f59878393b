package fat

// accessmode is the internal file-open flag set passed to f_open. It is an
// alias of the public Mode's underlying type so callers can pass a converted
// Mode value straight through without a dedicated conversion function.
type accessmode = uint8

// File access mode and open method flags (FA_*), matching the canonical
// FatFs bit assignments so the numeric values round-trip through the public
// Mode type unchanged.
const (
	faRead         accessmode = 0x01
	faWrite        accessmode = 0x02
	faOpenExisting accessmode = 0x00
	faCreateNew    accessmode = 0x04
	faCreateAlways accessmode = 0x08
	faOpenAlways   accessmode = 0x10
	faOpenAppend   accessmode = 0x30

	// Internal-only flags, never exposed through the public Mode type.
	faSEEKEND  accessmode = 0x20 // set file pointer to end of file on open
	faMODIFIED accessmode = 0x40 // file has been modified
	faDIRTY    accessmode = 0x80 // fat.win (sector buffer) has been written to
)

// Directory entry attribute bits (DIR_Attr / AM_*). Left as untyped
// constants so they assign directly into both byte-valued directory entry
// slices and uint8/fileattr-typed struct fields without a conversion.
const (
	amRDO  = 0x01
	amHID  = 0x02
	amSYS  = 0x04
	amVOL  = 0x08
	amLFN  = 0x0F // amRDO|amHID|amSYS|amVOL, marks an LFN entry
	amDIR  = 0x10
	amARC  = 0x20
	amMASK = 0x3F
)

// Short (8.3) directory entry field byte offsets, 32 bytes per entry.
const (
	dirNameOff       = 0  // short name, 8+3 bytes, space padded
	dirAttrOff       = 11 // attribute
	dirNTresOff      = 12 // lower-case flags, NT reserved byte
	dirCrtTime10Off  = 13 // creation time, 10ms unit
	dirCrtTimeOff    = 14 // creation time
	dirCrtDateOff    = 16 // creation date
	dirLstAccDateOff = 18 // last accessed date
	dirFstClusHIOff  = 20 // higher 16 bits of first cluster
	dirModTimeOff    = 22 // modified time
	dirModDateOff    = 24 // modified date
	dirFstClusLOOff  = 26 // lower 16 bits of first cluster
	dirFileSizeOff   = 28 // file size, bytes
)

// Long file name (LFN) directory entry field byte offsets.
const (
	ldirOrdOff       = 0  // sequence number, ORed with mskLLEF on the last entry
	ldirAttrOff      = 11 // always amLFN
	ldirTypeOff      = 12 // always 0
	ldirChksumOff    = 13 // checksum of the associated short name
	ldirFstClusLO_Off = 26 // always 0
)

// Sentinel values used throughout the FAT walking and directory code.
const (
	maxu16 = 0xFFFF
	maxu32 = 0xFFFFFFFF
)

// Extra per-object open-mode hints, stored in objid.xflag. accessmode's 8
// bits are already fully assigned above by faRead..faDIRTY, so these live
// in a field of their own rather than risk colliding with faMODIFIED or
// faDIRTY.
const (
	xfNoBuffering      uint8 = 0x01
	xfOptimizeForFlash uint8 = 0x02
)
