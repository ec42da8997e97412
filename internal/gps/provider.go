package gps

// Provider is the interface for fix sources read back from the wire.
type Provider interface {
	Name() string
	Connect() error
	Close() error
	// Read returns the latest decoded fix. May block briefly.
	Read() (*Data, error)
}

// Data holds a single fix as a receiver would see it.
type Data struct {
	Valid      bool    `json:"valid"`      // RMC status A
	Latitude   float64 `json:"latitude"`   // Decimal degrees
	Longitude  float64 `json:"longitude"`  // Decimal degrees
	Speed      float64 `json:"speed"`      // Knots
	Heading    float64 `json:"heading"`    // Degrees true
	Altitude   float64 `json:"altitude"`   // Meters
	Satellites int     `json:"satellites"` // Sats in use
	FixQuality int     `json:"fixQuality"` // 0=none, 1=GPS, 2=DGPS
	HDOP       float64 `json:"hdop"`       // Horizontal dilution
	Timestamp  string  `json:"timestamp"`  // UTC hhmmss.ss
	Date       string  `json:"date"`       // ddmmyy
}
