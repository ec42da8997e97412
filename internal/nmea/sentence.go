// Package nmea encodes the fixed-position GGA and RMC sentences broadcast
// by nmeacast. Everything here is pure: no I/O, no clocks.
package nmea

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Talker prefixes every sentence type we emit.
const Talker = "GP"

var (
	ErrFraming  = errors.New("nmea: bad framing")
	ErrChecksum = errors.New("nmea: checksum mismatch")
)

// Sentence is one framed NMEA 0183 sentence.
type Sentence struct {
	Type     string // talker + type, e.g. "GPGGA"
	Payload  string // text between '$' and '*'
	Checksum string // two uppercase hex digits
}

func newSentence(fields ...string) Sentence {
	payload := strings.Join(fields, ",")
	return Sentence{
		Type:     fields[0],
		Payload:  payload,
		Checksum: Checksum(payload),
	}
}

// String renders the wire form, including the trailing CRLF.
func (s Sentence) String() string {
	return "$" + s.Payload + "*" + s.Checksum + "\r\n"
}

// Bytes is the ASCII wire form.
func (s Sentence) Bytes() []byte {
	return []byte(s.String())
}

// Fields splits the payload on commas; Fields()[0] is the type.
func (s Sentence) Fields() []string {
	return strings.Split(s.Payload, ",")
}

// BuildGGA assembles a fix-data sentence: fix quality 1, 8 satellites,
// HDOP 1.0, altitude and geoid separation 0.0 m, no DGPS.
func BuildGGA(t TimeOfDay, pos Position) Sentence {
	lat, latHemi := FormatCoord(pos.Lat, Latitude)
	lon, lonHemi := FormatCoord(pos.Lon, Longitude)
	return newSentence(
		Talker+"GGA",
		t.String()+".00",
		lat, latHemi,
		lon, lonHemi,
		"1",        // fix quality
		"08",       // satellites
		"1.0",      // HDOP
		"0.0", "M", // altitude
		"0.0", "M", // geoid separation
		"", "", // DGPS age, station id
	)
}

// BuildRMC assembles a recommended-minimum sentence: status A, stationary,
// no magnetic variation, autonomous mode.
func BuildRMC(t TimeOfDay, d Date, pos Position) Sentence {
	lat, latHemi := FormatCoord(pos.Lat, Latitude)
	lon, lonHemi := FormatCoord(pos.Lon, Longitude)
	return newSentence(
		Talker+"RMC",
		t.String()+".00",
		"A",
		lat, latHemi,
		lon, lonHemi,
		"0.0", // speed, knots
		"0.0", // course, degrees
		d.String(),
		"", "", // magnetic variation
		"A",
	)
}

// Parse checks the framing and checksum of a received line. Trailing
// whitespace (CRLF) is ignored.
func Parse(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Sentence{}, fmt.Errorf("%w: missing '$'", ErrFraming)
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 != len(line) {
		return Sentence{}, fmt.Errorf("%w: missing checksum", ErrFraming)
	}
	payload := line[1:star]
	want, err := strconv.ParseUint(line[star+1:], 16, 8)
	if err != nil {
		return Sentence{}, fmt.Errorf("%w: bad checksum digits %q", ErrFraming, line[star+1:])
	}
	if got := checksumByte(payload); got != byte(want) {
		return Sentence{}, fmt.Errorf("%w: got %02X want %02X", ErrChecksum, got, byte(want))
	}
	typ := payload
	if i := strings.IndexByte(payload, ','); i >= 0 {
		typ = payload[:i]
	}
	return Sentence{Type: typ, Payload: payload, Checksum: strings.ToUpper(line[star+1:])}, nil
}
