package gps

import (
	"math"
	"strconv"

	"github.com/shaunagostinho/nmeacast/internal/nmea"
)

// Decoder folds GGA and RMC sentences into a running fix.
type Decoder struct {
	last Data
}

// Apply validates line and merges it into the fix. It returns the
// sentence type ("RMC", "GGA") that was applied, or an error for lines
// that fail framing or checksum. Other types are ignored with "".
func (d *Decoder) Apply(line string) (string, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		return "", err
	}
	parts := s.Fields()
	typ := parts[0]
	if len(typ) > 3 {
		typ = typ[len(typ)-3:]
	}
	switch typ {
	case "RMC":
		d.parseRMC(parts)
	case "GGA":
		d.parseGGA(parts)
	default:
		return "", nil
	}
	return typ, nil
}

// Fix returns a copy of the current fix.
func (d *Decoder) Fix() *Data {
	out := d.last
	return &out
}

func (d *Decoder) parseRMC(parts []string) {
	// GPRMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,x.x,x.x,ddmmyy,x.x,a,m
	if len(parts) < 10 {
		return
	}

	d.last.Timestamp = parts[1]
	d.last.Valid = parts[2] == "A"
	d.last.Date = parts[9]

	if d.last.Valid {
		d.last.Latitude = parseNMEACoord(parts[3], parts[4])
		d.last.Longitude = parseNMEACoord(parts[5], parts[6])

		if spd, err := strconv.ParseFloat(parts[7], 64); err == nil {
			d.last.Speed = spd
		}
		if hdg, err := strconv.ParseFloat(parts[8], 64); err == nil {
			d.last.Heading = hdg
		}
	}
}

func (d *Decoder) parseGGA(parts []string) {
	// GPGGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx
	if len(parts) < 11 {
		return
	}

	d.last.Timestamp = parts[1]
	if fix, err := strconv.Atoi(parts[6]); err == nil {
		d.last.FixQuality = fix
	}
	if d.last.FixQuality > 0 {
		d.last.Latitude = parseNMEACoord(parts[2], parts[3])
		d.last.Longitude = parseNMEACoord(parts[4], parts[5])
	}
	if sats, err := strconv.Atoi(parts[7]); err == nil {
		d.last.Satellites = sats
	}
	if hdop, err := strconv.ParseFloat(parts[8], 64); err == nil {
		d.last.HDOP = hdop
	}
	if alt, err := strconv.ParseFloat(parts[9], 64); err == nil {
		d.last.Altitude = alt
	}
}

// parseNMEACoord converts NMEA ddmm.mmmm format to decimal degrees.
func parseNMEACoord(raw, dir string) float64 {
	if raw == "" || dir == "" {
		return 0
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	deg := math.Floor(val / 100)
	min := val - deg*100
	result := deg + min/60

	if dir == "S" || dir == "W" {
		result = -result
	}
	return result
}
