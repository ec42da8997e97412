package gps

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/shaunagostinho/nmeacast/internal/nmea"
)

// fakePort reads as a port with a read timeout: (0, nil) while idle.
type fakePort struct {
	serial.Port
	mu         sync.Mutex
	data       []byte
	timeoutErr error
	closed     bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *fakePort) SetReadTimeout(time.Duration) error { return f.timeoutErr }
func (f *fakePort) Close() error                       { f.closed = true; return nil }

func (f *fakePort) feed(b []byte) {
	f.mu.Lock()
	f.data = append(f.data, b...)
	f.mu.Unlock()
}

func withPort(t *testing.T, p *fakePort) {
	t.Helper()
	prev := openPort
	openPort = func(string, *serial.Mode) (serial.Port, error) { return p, nil }
	t.Cleanup(func() { openPort = prev })
}

func TestMonitor_RecoversAfterSilentBus(t *testing.T) {
	port := &fakePort{}
	withPort(t, port)

	m := NewMonitor(MonitorConfig{PortPath: "/dev/ttyFAKE"})
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if m.Name() == "" {
		t.Fatalf("empty Name()")
	}

	// Nothing on the wire: the scanner runs out of progress.
	if fix, err := m.Read(); err != nil || fix.Valid {
		t.Fatalf("Read() on silent bus=%+v,%v", fix, err)
	}

	pos := nmea.Position{Lat: 48.972657, Lon: -123.610603}
	tod := nmea.TimeOfDay{Hours: 12}
	date := nmea.Date{Day: "19", Month: "02", Year: "26"}
	port.feed(nmea.BuildGGA(tod, pos).Bytes())
	port.feed(nmea.BuildRMC(tod, date, pos).Bytes())

	fix, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !fix.Valid || fix.Satellites != 8 || fix.Date != "190226" {
		t.Fatalf("fix=%+v", fix)
	}
}

func TestMonitor_ConnectReadTimeoutError(t *testing.T) {
	port := &fakePort{timeoutErr: errors.New("not a tty")}
	withPort(t, port)

	m := NewMonitor(MonitorConfig{PortPath: "/dev/ttyFAKE"})
	if err := m.Connect(); err == nil {
		t.Fatalf("expected error")
	}
	if !port.closed {
		t.Fatalf("port left open")
	}
	if _, err := m.Read(); err == nil {
		t.Fatalf("Read() after failed Connect expected error")
	}
}

var _ Provider = (*Monitor)(nil)
