package transport

import (
	"fmt"
	"time"
)

// MinGuard is the turnaround time half-duplex line drivers need between
// switching direction and the first/last byte.
const MinGuard = 2 * time.Millisecond

// TransmitEnable drives the DE/RE line of an RS-485 transceiver.
type TransmitEnable interface {
	Set(active bool) error
	Close() error
}

var sleep = time.Sleep

// Transmit writes every frame to sink inside one transmit-enable bracket:
// assert, guard, write all, drain, guard, deassert. The line is released
// even when a write fails. A nil enable writes without a bracket.
func Transmit(sink Sink, en TransmitEnable, guard time.Duration, frames ...[]byte) (err error) {
	if en != nil {
		if err := en.Set(true); err != nil {
			return fmt.Errorf("transport: assert transmit-enable: %w", err)
		}
		defer func() {
			sleep(guard)
			if rerr := en.Set(false); rerr != nil && err == nil {
				err = fmt.Errorf("transport: release transmit-enable: %w", rerr)
			}
		}()
		sleep(guard)
	}

	for _, f := range frames {
		if _, err := sink.Write(f); err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
	}
	if d, ok := sink.(Drainer); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("transport: drain: %w", err)
		}
	}
	return nil
}

// levelEnable inverts the logical level for active-low wiring.
type levelEnable struct {
	set       func(bool) error
	close     func() error
	activeLow bool
}

func (l *levelEnable) Set(active bool) error {
	return l.set(active != l.activeLow)
}

func (l *levelEnable) Close() error {
	// Leave the bus in receive mode.
	_ = l.Set(false)
	if l.close == nil {
		return nil
	}
	return l.close()
}
