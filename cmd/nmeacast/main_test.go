package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaunagostinho/nmeacast/internal/gps"
	"github.com/shaunagostinho/nmeacast/internal/server"
	"github.com/shaunagostinho/nmeacast/internal/transport"
)

type fakeConn struct {
	calls int
	err   error
}

func (f *fakeConn) Name() string   { return "test" }
func (f *fakeConn) Connect() error { f.calls++; return f.err }
func (f *fakeConn) Close() error   { return nil }

func TestConnectWithRetry_ConnectsFirstTime(t *testing.T) {
	c := &fakeConn{}
	if err := connectWithRetry(context.Background(), c, 3); err != nil {
		t.Fatalf("connectWithRetry() error: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("calls=%d want 1", c.calls)
	}
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	c := &fakeConn{err: errors.New("no such device")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := connectWithRetry(ctx, c, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if c.calls != 0 {
		t.Fatalf("calls=%d want 0", c.calls)
	}
}

func TestOpenSinks_DryRun(t *testing.T) {
	sinks, port, err := openSinks(context.Background(), server.DefaultConfig(), true)
	if err != nil {
		t.Fatalf("openSinks() error: %v", err)
	}
	if port != nil || len(sinks) != 1 {
		t.Fatalf("port=%v sinks=%d", port, len(sinks))
	}
	if _, ok := sinks[0].(transport.WriterSink); !ok {
		t.Fatalf("sink=%T want WriterSink", sinks[0])
	}
}

func TestOpenSinks_NothingEnabled(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.Serial.Enabled = false
	if _, _, err := openSinks(context.Background(), cfg, false); err == nil {
		t.Fatalf("expected error with no outputs")
	}
}

type fakeProvider struct {
	reads atomic.Int32
}

func (f *fakeProvider) Name() string   { return "fake bus" }
func (f *fakeProvider) Connect() error { return nil }
func (f *fakeProvider) Close() error   { return nil }
func (f *fakeProvider) Read() (*gps.Data, error) {
	f.reads.Add(1)
	return &gps.Data{Valid: true}, nil
}

func TestRunMonitor_ReadsEachInterval(t *testing.T) {
	p := &fakeProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runMonitor(ctx, p, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for p.reads.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("reads=%d want >= 2", p.reads.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runMonitor did not return after cancel")
	}
}
