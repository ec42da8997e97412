package transport

import (
	"fmt"
	"log"
	"sync"

	"go.bug.st/serial"
)

// SerialConfig holds configuration for the serial output.
type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// serialPort is the part of serial.Port we use.
type serialPort interface {
	Write(p []byte) (int, error)
	Drain() error
	SetRTS(rts bool) error
	Close() error
}

var openPort = func(path string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(path, mode)
}

// SerialSink writes sentences to a UART, normally the DI side of an
// RS-485 transceiver.
type SerialSink struct {
	portPath string
	baudRate int

	mu   sync.Mutex
	port serialPort
}

// NewSerial creates a serial sink. Connect must be called before writing.
func NewSerial(cfg SerialConfig) *SerialSink {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 4800 // NMEA 0183 default
	}
	return &SerialSink{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
	}
}

func (s *SerialSink) Name() string { return "serial " + s.portPath }

func (s *SerialSink) Connect() error {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(s.portPath, mode)
	if err != nil {
		return fmt.Errorf("serial: failed to open %s: %w", s.portPath, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	log.Printf("[serial] opened %s at %d baud", s.portPath, s.baudRate)
	return nil
}

func (s *SerialSink) current() (serialPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil, fmt.Errorf("serial: %s: %w", s.portPath, ErrClosed)
	}
	return s.port, nil
}

func (s *SerialSink) Write(p []byte) (int, error) {
	port, err := s.current()
	if err != nil {
		return 0, err
	}
	return port.Write(p)
}

// Drain blocks until the OS has shifted out every queued byte.
func (s *SerialSink) Drain() error {
	port, err := s.current()
	if err != nil {
		return err
	}
	return port.Drain()
}

func (s *SerialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// RTSEnable uses the port's RTS line as DE/RE, as USB RS-485 adapters
// without auto-direction expect.
func RTSEnable(s *SerialSink, activeLow bool) TransmitEnable {
	return &levelEnable{
		set: func(v bool) error {
			port, err := s.current()
			if err != nil {
				return err
			}
			return port.SetRTS(v)
		},
		activeLow: activeLow,
	}
}
