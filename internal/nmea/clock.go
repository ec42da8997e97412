package nmea

import (
	"fmt"
	"strconv"
)

const secondsPerDay = 24 * 3600

// TimeOfDay is a UTC wall-clock time at whole-second resolution.
type TimeOfDay struct {
	Hours   int
	Minutes int
	Seconds int
}

// ParseTimeOfDay parses the HHMMSS form used in configuration.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 6 {
		return TimeOfDay{}, fmt.Errorf("nmea: time %q must be HHMMSS", s)
	}
	if !allDigits(s) {
		return TimeOfDay{}, fmt.Errorf("nmea: time %q must be HHMMSS", s)
	}
	var parts [3]int
	for i := range parts {
		parts[i], _ = strconv.Atoi(s[i*2 : i*2+2])
	}
	t := TimeOfDay{Hours: parts[0], Minutes: parts[1], Seconds: parts[2]}
	if t.Hours > 23 || t.Minutes > 59 || t.Seconds > 59 {
		return TimeOfDay{}, fmt.Errorf("nmea: time %q out of range", s)
	}
	return t, nil
}

// String renders HHMMSS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d%02d%02d", t.Hours, t.Minutes, t.Seconds)
}

// Tick advances start by elapsed whole seconds, wrapping at 24 hours.
func Tick(start TimeOfDay, elapsed int64) TimeOfDay {
	total := int64(start.Hours)*3600 + int64(start.Minutes)*60 + int64(start.Seconds) + elapsed
	total %= secondsPerDay
	if total < 0 {
		total += secondsPerDay
	}
	return TimeOfDay{
		Hours:   int(total / 3600),
		Minutes: int((total % 3600) / 60),
		Seconds: int(total % 60),
	}
}

// Date is a fixed calendar date. It is never advanced, even across a
// time-of-day rollover.
type Date struct {
	Day   string
	Month string
	Year  string // two-digit suffix
}

// ParseDate parses the DDMMYY form used in configuration.
func ParseDate(s string) (Date, error) {
	if len(s) != 6 {
		return Date{}, fmt.Errorf("nmea: date %q must be DDMMYY", s)
	}
	if !allDigits(s) {
		return Date{}, fmt.Errorf("nmea: date %q must be DDMMYY", s)
	}
	d := Date{Day: s[0:2], Month: s[2:4], Year: s[4:6]}
	day, _ := strconv.Atoi(d.Day)
	month, _ := strconv.Atoi(d.Month)
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return Date{}, fmt.Errorf("nmea: date %q out of range", s)
	}
	return d, nil
}

// String renders DDMMYY.
func (d Date) String() string {
	return d.Day + d.Month + d.Year
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
