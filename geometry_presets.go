package fat

import (
	_ "embed"

	"github.com/gocarina/gocsv"
)

//go:embed geometry_presets.csv
var geometryPresetsCSV []byte

// GeometryPreset is a recommended cluster size for a given disk capacity
// range, mirroring the SD Association "simplified specification"
// capacity-to-allocation-unit table that most consumer card formatters
// follow, and Microsoft's equivalent FAT32 guidance in fatgen103.
type GeometryPreset struct {
	MinSizeMiB int    `csv:"min_size_mib"`
	MaxSizeMiB int    `csv:"max_size_mib"`
	ClusterKiB int    `csv:"cluster_kib"`
	Format     string `csv:"format"`
}

// LoadGeometryPresets parses the embedded geometry preset table.
func LoadGeometryPresets() ([]GeometryPreset, error) {
	var presets []GeometryPreset
	if err := gocsv.UnmarshalBytes(geometryPresetsCSV, &presets); err != nil {
		return nil, err
	}
	return presets, nil
}

// RecommendedClusterSize returns the cluster size in bytes recommended for
// a volume of totalBytes, per the embedded preset table. It returns 0, nil
// if no preset matches, in which case the caller should fall back to its
// own heuristic (see defaultClusterSectors in format.go).
func RecommendedClusterSize(totalBytes int64) (int, error) {
	presets, err := LoadGeometryPresets()
	if err != nil {
		return 0, err
	}
	mib := totalBytes / (1024 * 1024)
	for _, p := range presets {
		if mib >= int64(p.MinSizeMiB) && mib <= int64(p.MaxSizeMiB) && p.ClusterKiB > 0 {
			return p.ClusterKiB * 1024, nil
		}
	}
	return 0, nil
}
