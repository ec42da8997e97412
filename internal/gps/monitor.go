package gps

import (
	"bufio"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

var openPort = serial.Open

// Monitor listens on a serial port (for example the RO side of a second
// RS-485 transceiver on the same bus) and decodes what is on the wire.
type Monitor struct {
	portPath string
	baudRate int
	port     serial.Port
	scanner  *bufio.Scanner
	mu       sync.Mutex
	dec      Decoder
	rejected int
}

// MonitorConfig holds configuration for the bus monitor.
type MonitorConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewMonitor creates a bus monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 4800 // NMEA 0183 default
	}
	return &Monitor{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
	}
}

func (m *Monitor) Name() string { return "NMEA bus monitor" }

func (m *Monitor) Connect() error {
	mode := &serial.Mode{
		BaudRate: m.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(m.portPath, mode)
	if err != nil {
		return fmt.Errorf("monitor: failed to open %s: %w", m.portPath, err)
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("monitor: set read timeout on %s: %w", m.portPath, err)
	}

	m.mu.Lock()
	m.port = port
	m.scanner = bufio.NewScanner(port)
	m.mu.Unlock()
	log.Printf("[monitor] listening on %s at %d baud", m.portPath, m.baudRate)
	return nil
}

func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port != nil {
		return m.port.Close()
	}
	return nil
}

// Read reads sentences until it has seen both RMC and GGA, or timeout.
func (m *Monitor) Read() (*Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scanner == nil {
		return m.dec.Fix(), fmt.Errorf("monitor: not connected")
	}

	gotRMC := false
	gotGGA := false
	for i := 0; i < 20 && !(gotRMC && gotGGA); i++ {
		if !m.scanner.Scan() {
			// A silent bus times out as (0, nil) reads, and after enough of
			// them the scanner gives up with io.ErrNoProgress for good.
			if m.scanner.Err() != nil {
				m.scanner = bufio.NewScanner(m.port)
			}
			break
		}
		line := strings.TrimSpace(m.scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		typ, err := m.dec.Apply(line)
		if err != nil {
			m.rejected++
			log.Printf("[monitor] rejected %q: %v", line, err)
			continue
		}
		switch typ {
		case "RMC":
			gotRMC = true
		case "GGA":
			gotGGA = true
		}
	}

	return m.dec.Fix(), nil
}

// Rejected is the number of lines that failed framing or checksum.
func (m *Monitor) Rejected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected
}
