package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaunagostinho/nmeacast/internal/broadcast"
	"github.com/shaunagostinho/nmeacast/internal/gps"
	"github.com/shaunagostinho/nmeacast/internal/logger"
	"github.com/shaunagostinho/nmeacast/internal/server"
	"github.com/shaunagostinho/nmeacast/internal/transport"
	"github.com/shaunagostinho/nmeacast/web"
)

func main() {
	configPath := flag.String("config", "/etc/nmeacast/config.yaml", "Path to config file")
	portPath := flag.String("port", "", "Override serial port (e.g. /dev/ttyUSB0)")
	listenAddr := flag.String("listen", "", "Enable the live view on this address (e.g. :8080)")
	dryRun := flag.Bool("dry-run", false, "Write sentences to stdout instead of the configured outputs")
	once := flag.Bool("once", false, "Transmit a single cycle and exit")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] nmeacast starting")

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	if *portPath != "" {
		cfg.Serial.PortPath = *portPath
		cfg.Serial.Enabled = true
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
		cfg.Server.Enabled = true
	}
	if *dryRun {
		cfg.Serial.Enabled = false
		cfg.Serial.Direction.Mode = transport.DirectionNone
		cfg.UDP.Enabled = false
		cfg.MQTT.Enabled = false
	}

	// Configuration errors are fatal before anything is transmitted.
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[main] invalid configuration: %v", err)
	}
	fix, err := cfg.BroadcastFix()
	if err != nil {
		log.Fatalf("[main] invalid configuration: %v", err)
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	sinks, port, err := openSinks(ctx, cfg, *dryRun)
	if err != nil {
		log.Printf("[main] %v", err)
		return
	}
	defer sinks.Close()

	enable, err := transport.OpenDirection(cfg.Serial.Direction, port)
	if err != nil {
		log.Fatalf("[main] direction control: %v", err)
	}
	if enable != nil {
		defer enable.Close()
		log.Printf("[main] DE/RE via %s, guard %v", cfg.Serial.Direction.Mode, cfg.Serial.Direction.Guard())
	}

	b := broadcast.New(broadcast.Config{
		Fix:      fix,
		Sink:     sinks,
		Enable:   enable,
		Guard:    cfg.Serial.Direction.Guard(),
		UpdateHz: cfg.Fix.UpdateHz,
	})

	if *once {
		if c := b.Step(); c.Err != nil {
			log.Fatalf("[main] %v", c.Err)
		}
		return
	}

	if cfg.Logging.Enabled {
		csvLog := logger.New(cfg.Logging)
		defer csvLog.Close()
		b.AddObserver(csvLog)
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg, b, web.FS)
		b.AddObserver(srv)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[main] server exited: %v", err)
			}
		}()
	}

	if cfg.Monitor.Enabled {
		mon := gps.NewMonitor(gps.MonitorConfig{
			PortPath: cfg.Monitor.PortPath,
			BaudRate: cfg.Monitor.BaudRate,
		})
		defer mon.Close()
		go runMonitor(ctx, mon, b.Interval())
	}

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[main] broadcaster exited: %v", err)
	}
}

// openSinks assembles every enabled output. The serial port, when
// enabled, is also returned for RTS direction control.
func openSinks(ctx context.Context, cfg *server.Config, dryRun bool) (transport.Multi, *transport.SerialSink, error) {
	if dryRun {
		return transport.Multi{transport.WriterSink{W: os.Stdout}}, nil, nil
	}

	var (
		sinks transport.Multi
		port  *transport.SerialSink
	)
	if cfg.Serial.Enabled {
		port = transport.NewSerial(transport.SerialConfig{
			PortPath: cfg.Serial.PortPath,
			BaudRate: cfg.Serial.BaudRate,
		})
		// Nothing useful happens until the bus is reachable.
		if err := connectWithRetry(ctx, port, 10); err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, port)
	}
	if cfg.UDP.Enabled {
		u, err := transport.NewUDP(cfg.UDP.Dest)
		if err != nil {
			sinks.Close()
			return nil, nil, err
		}
		log.Printf("[main] mirroring to udp %s", cfg.UDP.Dest)
		sinks = append(sinks, u)
	}
	if cfg.MQTT.Enabled {
		m, err := transport.NewMQTT(cfg.MQTT.MQTTConfig)
		if err != nil {
			log.Printf("[main] mqtt disabled: %v", err)
		} else {
			sinks = append(sinks, m)
		}
	}
	if len(sinks) == 0 {
		sinks.Close()
		return nil, nil, errors.New("no outputs enabled")
	}
	return sinks, port, nil
}

// runMonitor logs what a receiver on the bus decodes, once per cycle.
func runMonitor(ctx context.Context, p gps.Provider, every time.Duration) {
	if err := connectWithRetry(ctx, p, 10); err != nil {
		return
	}
	rc, _ := p.(interface{ Rejected() int })
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fix, err := p.Read()
			if err != nil {
				log.Printf("[monitor] %v", err)
				continue
			}
			rejected := 0
			if rc != nil {
				rejected = rc.Rejected()
			}
			log.Printf("[monitor] %s valid=%v %.6f,%.6f q=%d sats=%d rejected=%d",
				fix.Timestamp, fix.Valid, fix.Latitude, fix.Longitude,
				fix.FixQuality, fix.Satellites, rejected)
		}
	}
}

// connectable is satisfied by the serial sink and the bus monitor.
type connectable interface {
	Name() string
	Connect() error
	Close() error
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval until ctx is done.
func connectWithRetry(ctx context.Context, c connectable, maxAttempts int) error {
	name := c.Name()
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.Connect()
		if err == nil {
			log.Printf("[%s] connected successfully (attempt %d)", name, attempt+1)
			return nil
		}

		attempt++
		if attempt <= maxAttempts {
			log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
				name, attempt, maxAttempts, err, delay)
		} else {
			log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
				name, attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
