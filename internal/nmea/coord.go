package nmea

import (
	"fmt"
	"math"
)

// Kind selects the axis a coordinate is formatted for.
type Kind int

const (
	Latitude Kind = iota
	Longitude
)

// Position is a fixed point in decimal degrees.
type Position struct {
	Lat float64 `yaml:"lat" json:"lat"` // -90..90, positive = N
	Lon float64 `yaml:"lon" json:"lon"` // -180..180, positive = E
}

// Validate reports whether the position is inside the legal ranges.
func (p Position) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("nmea: latitude %v out of range [-90, 90]", p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("nmea: longitude %v out of range [-180, 180]", p.Lon)
	}
	return nil
}

// FormatCoord converts decimal degrees to NMEA ddmm.mmmm (latitude) or
// dddmm.mmmm (longitude) plus the hemisphere letter.
func FormatCoord(value float64, kind Kind) (string, string) {
	hemi := "N"
	if kind == Longitude {
		hemi = "E"
	}
	if value < 0 {
		hemi = "S"
		if kind == Longitude {
			hemi = "W"
		}
	}

	abs := math.Abs(value)
	deg := math.Floor(abs)
	minutes := (abs - deg) * 60.0

	if kind == Latitude {
		return fmt.Sprintf("%02d%07.4f", int(deg), minutes), hemi
	}
	return fmt.Sprintf("%03d%07.4f", int(deg), minutes), hemi
}
