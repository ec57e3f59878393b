package fat

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Codepage identifies the single-byte OEM character set used to encode a
// volume's short file names and volume label, the same numeric codepages
// FatFs accepts for its FF_CODE_PAGE build option (tables.go's _tblCT*/
// _tblDC* arrays implement the OEM<->Unicode upper-case folding FatFs needs
// internally for 8.3 name comparison). Codepage is for the orthogonal job of
// turning those OEM bytes into a proper Go string for display, and back.
type Codepage uint16

// Supported codepages. Every one of these has a matching table in
// golang.org/x/text/encoding/charmap; codepages FatFs lists but charmap
// does not implement (737, 857, 861, 864, 869) are intentionally absent.
const (
	CodepageUS        Codepage = 437
	CodepageLatin1    Codepage = 850
	CodepageLatin2    Codepage = 852
	CodepageCyrillic  Codepage = 855
	CodepagePortugal  Codepage = 860
	CodepageHebrew    Codepage = 862
	CodepageCanFrench Codepage = 863
	CodepageNordic    Codepage = 865
	CodepageRussian   Codepage = 866
)

var codepageCharmaps = map[Codepage]*charmap.Charmap{
	CodepageUS:        charmap.CodePage437,
	CodepageLatin1:    charmap.CodePage850,
	CodepageLatin2:    charmap.CodePage852,
	CodepageCyrillic:  charmap.CodePage855,
	CodepagePortugal:  charmap.CodePage860,
	CodepageHebrew:    charmap.CodePage862,
	CodepageCanFrench: charmap.CodePage863,
	CodepageNordic:    charmap.CodePage865,
	CodepageRussian:   charmap.CodePage866,
}

// DecodeOEM decodes raw OEM-codepage bytes (as stored in a short file name
// or volume label field) into a UTF-8 string.
func DecodeOEM(b []byte, cp Codepage) (string, error) {
	cm, ok := codepageCharmaps[cp]
	if !ok {
		return "", fmt.Errorf("fat: unsupported codepage %d", cp)
	}
	out, err := cm.NewDecoder().Bytes(bstr(b))
	if err != nil {
		return "", fmt.Errorf("fat: decode codepage %d: %w", cp, err)
	}
	return string(out), nil
}

// EncodeOEM encodes a UTF-8 string into raw OEM-codepage bytes suitable for
// a short file name or volume label field. The result is not padded; callers
// writing it into a fixed-width field (like biosParamBlock.SetVolumeLabel)
// are responsible for space-padding/truncating to the field width.
func EncodeOEM(s string, cp Codepage) ([]byte, error) {
	cm, ok := codepageCharmaps[cp]
	if !ok {
		return nil, fmt.Errorf("fat: unsupported codepage %d", cp)
	}
	out, err := cm.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("fat: encode codepage %d: %w", cp, err)
	}
	return out, nil
}

// Codepage returns the numeric OEM codepage fsys was mounted with.
func (fsys *FS) Codepage() Codepage {
	return Codepage(fsys.ffCodePage)
}

// VolumeLabelString returns the volume label decoded through fsys's mounted
// codepage. Unlike reading the raw bytes off biosParamBlock.VolumeLabel,
// this renders international labels (e.g. a Cyrillic or Hebrew label written
// by a Windows host) as proper UTF-8 instead of mojibake.
func (fsys *FS) VolumeLabelString(raw [11]byte) (string, error) {
	return DecodeOEM(raw[:], Codepage(fsys.ffCodePage))
}
