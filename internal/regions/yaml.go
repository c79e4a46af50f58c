package regions

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// File is the on-disk layout used for seeding and exports.
type File struct {
	Regions []Region `yaml:"regions"`
}

// Decode reads a YAML region file. Missing network back-references are
// filled in from the owning region.
func Decode(r io.Reader) ([]Region, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	for i := range f.Regions {
		reg := &f.Regions[i]
		if reg.ID == "" {
			return nil, fmt.Errorf("decode regions: entry %d has no id", i)
		}
		if reg.Network.ID == "" {
			return nil, fmt.Errorf("decode regions: region %s has no network id", reg.ID)
		}
		reg.Network.RegionID = reg.ID
		if reg.Network.Radius == 0 {
			reg.Network.Radius = DefaultHotSpotRadius
		}
	}
	return f.Regions, nil
}

// Encode writes regions as a YAML region file.
func Encode(w io.Writer, regions []Region) error {
	if err := yaml.NewEncoder(w).Encode(File{Regions: regions}); err != nil {
		return fmt.Errorf("encode regions: %w", err)
	}
	return nil
}
