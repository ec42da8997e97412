// Package transport moves encoded sentences onto the wire: serial ports,
// UDP, MQTT or a plain writer, plus the RS-485 direction line that has to
// be held around each burst.
package transport

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrClosed = errors.New("transport: sink closed")

// Sink accepts encoded sentences. Each Write carries exactly one sentence.
type Sink interface {
	io.Writer
	io.Closer
}

// Drainer is implemented by sinks that buffer in hardware and can wait for
// the last byte to leave the line.
type Drainer interface {
	Drain() error
}

// Multi fans each write out to every sink. All sinks are tried; the
// first error is returned.
type Multi []Sink

func (m Multi) Write(p []byte) (int, error) {
	var first error
	for _, s := range m {
		if _, err := s.Write(p); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return 0, first
	}
	return len(p), nil
}

func (m Multi) Drain() error {
	var first error
	for _, s := range m {
		if d, ok := s.(Drainer); ok {
			if err := d.Drain(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (m Multi) Close() error {
	var errs []string
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("transport: close: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WriterSink adapts an io.Writer, e.g. os.Stdout for a dry run.
type WriterSink struct {
	W io.Writer
}

func (w WriterSink) Write(p []byte) (int, error) { return w.W.Write(p) }
func (w WriterSink) Close() error                { return nil }
