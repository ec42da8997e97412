package logger

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shaunagostinho/nmeacast/internal/broadcast"
	"github.com/shaunagostinho/nmeacast/internal/gps"
	"github.com/shaunagostinho/nmeacast/internal/nmea"
)

// Logger records every transmitted sentence to CSV files with automatic
// rotation.
type Logger struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	enabled  bool
	now      func() time.Time

	file   *os.File
	writer *csv.Writer
	lastTs time.Time
	rows   int
}

// Config holds logger configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"` // 0 = every cycle
}

const (
	maxRowsPerFile = 100_000 // two rows per cycle, ~14 hrs at 1 Hz
)

var csvHeader = []string{
	"timestamp", "cycle", "elapsed_s", "utc", "type", "checksum",
	"sentence", "decoded_lat", "decoded_lon", "write_error",
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	if cfg.Path == "" {
		cfg.Path = "/var/log/nmeacast"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 0 {
		interval = 0
	}
	return &Logger{
		dir:      cfg.Path,
		interval: interval,
		enabled:  cfg.Enabled,
		now:      time.Now,
	}
}

// Observe writes both sentences of a cycle if the minimum interval has
// elapsed.
func (l *Logger) Observe(c broadcast.Cycle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	now := l.now()
	if l.interval > 0 && now.Sub(l.lastTs) < l.interval {
		return
	}
	l.lastTs = now

	if l.writer == nil || l.rows >= maxRowsPerFile {
		if err := l.rotateFile(now); err != nil {
			log.Printf("[logger] rotate failed: %v", err)
			return
		}
	}

	for _, s := range []nmea.Sentence{c.GGA, c.RMC} {
		if err := l.writer.Write(buildRow(now, c, s)); err != nil {
			log.Printf("[logger] write failed: %v", err)
			return
		}
		l.rows++
	}
	l.writer.Flush()
}

// Close flushes and closes the current log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
	return nil
}

func (l *Logger) rotateFile(now time.Time) error {
	l.closeFile()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	filename := fmt.Sprintf("nmeacast_%s.csv", now.Format("2006-01-02_150405.000"))
	path := filepath.Join(l.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.rows = 0

	if err := l.writer.Write(csvHeader); err != nil {
		return err
	}
	l.writer.Flush()

	log.Printf("[logger] opened %s", path)
	return nil
}

func (l *Logger) closeFile() {
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func buildRow(ts time.Time, c broadcast.Cycle, s nmea.Sentence) []string {
	row := make([]string, len(csvHeader))

	row[0] = ts.Format(time.RFC3339Nano)
	row[1] = strconv.FormatUint(c.Seq, 10)
	row[2] = strconv.FormatInt(c.Elapsed, 10)
	row[3] = c.Time.String()
	row[4] = s.Type
	row[5] = s.Checksum
	row[6] = "$" + s.Payload + "*" + s.Checksum

	var dec gps.Decoder
	if _, err := dec.Apply(s.String()); err == nil {
		fix := dec.Fix()
		row[7] = fmt.Sprintf("%.6f", fix.Latitude)
		row[8] = fmt.Sprintf("%.6f", fix.Longitude)
	}
	if c.Err != nil {
		row[9] = c.Err.Error()
	}

	return row
}
