package regions

import (
	"time"

	"github.com/lib/pq"
	"github.com/umahmood/haversine"
)

// DefaultHotSpotRadius is assigned to networks created from the region form.
// The value is informational only; occupancy never looks at it.
const DefaultHotSpotRadius = 100

// HotSpot is a named Wi-Fi network. Every region owns exactly one.
type HotSpot struct {
	ID       string         `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	RegionID string         `gorm:"size:64;uniqueIndex;not null" json:"-" yaml:"-"`
	Name     string         `gorm:"not null" json:"name" yaml:"name"`
	Radius   float64        `json:"radius" yaml:"radius"`
	BSSIDs   pq.StringArray `gorm:"type:text" json:"bssids,omitempty" yaml:"bssids,omitempty"` // access point MACs
}

// Equal compares two networks by id, name and radius.
func (h HotSpot) Equal(other HotSpot) bool {
	return h.ID == other.ID && h.Name == other.Name && h.Radius == other.Radius
}

// Coordinates is the centre of a region in WGS84 degrees.
type Coordinates struct {
	ID        string  `gorm:"size:64" json:"id" yaml:"id"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Region is a circular geofence with its home network.
type Region struct {
	ID          string      `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	Title       string      `gorm:"not null" json:"title" yaml:"title"`
	Radius      float64     `gorm:"not null" json:"radius" yaml:"radius"` // metres
	Coordinates Coordinates `gorm:"embedded;embeddedPrefix:center_" json:"coordinates" yaml:"coordinates"`
	Network     HotSpot     `gorm:"foreignKey:RegionID" json:"network" yaml:"network"`
	Created     time.Time   `gorm:"index" json:"created" yaml:"created"`
}

// DistanceTo returns the great-circle distance in metres between the region
// centre and the given point.
func (r Region) DistanceTo(lat, lng float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: r.Coordinates.Latitude, Lon: r.Coordinates.Longitude},
		haversine.Coord{Lat: lat, Lon: lng},
	)
	return km * 1000
}

// Contains reports whether the point lies inside the region's radius.
func (r Region) Contains(lat, lng float64) bool {
	return r.DistanceTo(lat, lng) <= r.Radius
}
