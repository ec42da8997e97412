// Package broadcast runs the transmit cycle: read the clock, build GGA and
// RMC for the fixed position, and push both through one transmit-enable
// bracket.
package broadcast

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/shaunagostinho/nmeacast/internal/nmea"
	"github.com/shaunagostinho/nmeacast/internal/transport"
)

// Clock is a monotonic seconds source. Values never decrease.
type Clock interface {
	MonotonicSeconds() float64
}

// SystemClock measures from a start instant using Go's monotonic reading.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

func (c *SystemClock) MonotonicSeconds() float64 {
	return time.Since(c.start).Seconds()
}

// Fix is the static configuration of the advertised fix.
type Fix struct {
	Position nmea.Position
	Date     nmea.Date
	Start    nmea.TimeOfDay
}

// Cycle is what one transmit cycle produced.
type Cycle struct {
	Seq     uint64
	Elapsed int64
	Time    nmea.TimeOfDay
	GGA     nmea.Sentence
	RMC     nmea.Sentence
	Err     error
	At      time.Time
}

// Observer is notified after every cycle. It must not block.
type Observer interface {
	Observe(c Cycle)
}

// Stats is a snapshot of the driver counters.
type Stats struct {
	Cycles      uint64    `json:"cycles"`
	WriteErrors uint64    `json:"writeErrors"`
	LastError   string    `json:"lastError,omitempty"`
	LastCycle   time.Time `json:"lastCycle"`
	LastUTC     string    `json:"lastUtc"`
}

// Broadcaster owns the sink and the transmit-enable line. It is the only
// writer; cycles never overlap.
type Broadcaster struct {
	fix      Fix
	clock    Clock
	sink     transport.Sink
	enable   transport.TransmitEnable
	guard    time.Duration
	interval time.Duration

	obsMu     sync.RWMutex
	observers []Observer

	mu    sync.Mutex
	stats Stats
	seq   uint64
	start float64
	began bool
}

// MaxUpdateHz is the fastest supported cycle rate.
const MaxUpdateHz = 1000

// Config wires a Broadcaster.
type Config struct {
	Fix      Fix
	Clock    Clock
	Sink     transport.Sink
	Enable   transport.TransmitEnable // optional
	Guard    time.Duration
	UpdateHz float64
}

// New creates a Broadcaster. A nil clock uses the system clock.
func New(cfg Config) *Broadcaster {
	if cfg.Clock == nil {
		cfg.Clock = NewSystemClock()
	}
	if !(cfg.UpdateHz > 0) {
		cfg.UpdateHz = 1
	}
	if cfg.UpdateHz > MaxUpdateHz {
		cfg.UpdateHz = MaxUpdateHz
	}
	if cfg.Guard < transport.MinGuard {
		cfg.Guard = transport.MinGuard
	}
	return &Broadcaster{
		fix:      cfg.Fix,
		clock:    cfg.Clock,
		sink:     cfg.Sink,
		enable:   cfg.Enable,
		guard:    cfg.Guard,
		interval: time.Duration(float64(time.Second) / cfg.UpdateHz),
	}
}

// AddObserver registers o for every following cycle.
func (b *Broadcaster) AddObserver(o Observer) {
	b.obsMu.Lock()
	b.observers = append(b.observers, o)
	b.obsMu.Unlock()
}

// Interval is the time between cycle starts.
func (b *Broadcaster) Interval() time.Duration { return b.interval }

// Run transmits one cycle immediately, then one per interval, until ctx is
// done.
func (b *Broadcaster) Run(ctx context.Context) error {
	log.Printf("[broadcast] %s %s at %.4f,%.4f every %v",
		b.fix.Date, b.fix.Start, b.fix.Position.Lat, b.fix.Position.Lon, b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.Step()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[broadcast] stopped after %d cycles", b.Stats().Cycles)
			return ctx.Err()
		case <-ticker.C:
			b.Step()
		}
	}
}

// Step runs exactly one cycle. Write failures are logged and counted; the
// caller keeps cycling.
func (b *Broadcaster) Step() Cycle {
	now := b.clock.MonotonicSeconds()

	b.mu.Lock()
	if !b.began {
		b.start = now
		b.began = true
	}
	elapsed := int64(math.Floor(now - b.start))
	if elapsed < 0 {
		elapsed = 0
	}
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	tod := nmea.Tick(b.fix.Start, elapsed)
	c := Cycle{
		Seq:     seq,
		Elapsed: elapsed,
		Time:    tod,
		GGA:     nmea.BuildGGA(tod, b.fix.Position),
		RMC:     nmea.BuildRMC(tod, b.fix.Date, b.fix.Position),
	}
	c.Err = transport.Transmit(b.sink, b.enable, b.guard, c.GGA.Bytes(), c.RMC.Bytes())
	c.At = time.Now()

	b.mu.Lock()
	b.stats.Cycles++
	b.stats.LastCycle = c.At
	b.stats.LastUTC = tod.String()
	if c.Err != nil {
		b.stats.WriteErrors++
		b.stats.LastError = c.Err.Error()
	}
	b.mu.Unlock()

	if c.Err != nil {
		log.Printf("[broadcast] cycle %d at %s: %v", seq, tod, c.Err)
	}

	b.obsMu.RLock()
	for _, o := range b.observers {
		o.Observe(c)
	}
	b.obsMu.RUnlock()
	return c
}

// Stats returns a copy of the counters.
func (b *Broadcaster) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
