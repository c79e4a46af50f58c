package regions

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRegion builds a region with fresh ids and a home network named
// networkName.
func NewRegion(title string, radius, lat, lng float64, networkName string, now time.Time) Region {
	id := uuid.NewString()
	return Region{
		ID:     id,
		Title:  strings.TrimSpace(title),
		Radius: radius,
		Coordinates: Coordinates{
			ID:        uuid.NewString(),
			Latitude:  lat,
			Longitude: lng,
		},
		Network: HotSpot{
			ID:       uuid.NewString(),
			RegionID: id,
			Name:     strings.TrimSpace(networkName),
			Radius:   DefaultHotSpotRadius,
		},
		Created: now.UTC(),
	}
}

// FromInput validates the form and builds a region from it.
func FromInput(in Input, now time.Time) (Region, error) {
	if err := Validate(in); err != nil {
		return Region{}, err
	}
	return NewRegion(in.Title, in.ParseRadius(), in.Latitude, in.Longitude, in.Network, now), nil
}
