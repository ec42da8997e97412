package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/nmeacast/internal/broadcast"
	"github.com/shaunagostinho/nmeacast/internal/logger"
	"github.com/shaunagostinho/nmeacast/internal/nmea"
	"github.com/shaunagostinho/nmeacast/internal/transport"
)

// Config holds all broadcaster configuration. It is loaded once at
// startup and never changed afterwards.
type Config struct {
	// Advertised fix
	Position nmea.Position `yaml:"position" json:"position"`
	Fix      FixConfig     `yaml:"fix" json:"fix"`

	// Outputs
	Serial SerialConfig `yaml:"serial" json:"serial"`
	UDP    UDPConfig    `yaml:"udp" json:"udp"`
	MQTT   MQTTConfig   `yaml:"mqtt" json:"mqtt"`

	// Bus monitor (second transceiver, receive side)
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Logging
	Logging logger.Config `yaml:"logging" json:"logging"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path the config came from
}

type FixConfig struct {
	Date      string  `yaml:"date" json:"date"`            // DDMMYY, held constant
	StartTime string  `yaml:"start_time" json:"startTime"` // HHMMSS, ticks from here
	UpdateHz  float64 `yaml:"update_hz" json:"updateHz"`
}

type SerialConfig struct {
	Enabled   bool                      `yaml:"enabled" json:"enabled"`
	PortPath  string                    `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyUSB0
	BaudRate  int                       `yaml:"baud_rate" json:"baudRate"`
	Direction transport.DirectionConfig `yaml:"direction" json:"direction"`
}

type UDPConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dest    string `yaml:"dest" json:"dest"` // host:port, 10110 is the usual NMEA port
}

type MQTTConfig struct {
	Enabled              bool `yaml:"enabled" json:"enabled"`
	transport.MQTTConfig `yaml:",inline"`
}

type MonitorConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

type ServerConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// Bit times per byte on an 8N1 line.
const bitsPerByte = 10

// cycleBytes is the longest GGA+RMC pair we can emit (southern/western
// hemisphere makes no difference to the length).
var cycleBytes = len(nmea.BuildGGA(nmea.TimeOfDay{}, nmea.Position{}).String()) +
	len(nmea.BuildRMC(nmea.TimeOfDay{}, nmea.Date{Day: "01", Month: "01", Year: "00"}, nmea.Position{}).String())

var supportedBauds = map[int]bool{
	4800: true, 9600: true, 19200: true, 38400: true, 57600: true, 115200: true,
}

// DefaultConfig returns a config with sensible defaults: the Mowgli Island
// dock at 4800 baud, 1 Hz.
func DefaultConfig() *Config {
	return &Config{
		Position: nmea.Position{
			Lat: 48.972657,
			Lon: -123.610603,
		},
		Fix: FixConfig{
			Date:      "190226",
			StartTime: "120000",
			UpdateHz:  1.0,
		},
		Serial: SerialConfig{
			Enabled:  true,
			PortPath: "/dev/ttyUSB0",
			BaudRate: 4800,
			Direction: transport.DirectionConfig{
				Mode:    transport.DirectionNone,
				GuardMs: 2,
			},
		},
		UDP: UDPConfig{
			Enabled: false,
			Dest:    "255.255.255.255:10110",
		},
		MQTT: MQTTConfig{
			Enabled: false,
			MQTTConfig: transport.MQTTConfig{
				Broker:   "tcp://localhost:1883",
				ClientID: "nmeacast",
				Topic:    "nmeacast",
			},
		},
		Monitor: MonitorConfig{
			Enabled:  false,
			PortPath: "/dev/ttyUSB1",
			BaudRate: 4800,
		},
		Logging: logger.Config{
			Enabled:    false,
			Path:       "/var/log/nmeacast",
			IntervalMs: 0,
		},
		Server: ServerConfig{
			Enabled:    false,
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. A missing file falls back to defaults;
// a file that does not parse is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("[config] no config at %s, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: NMEA_LAT, NMEA_LON, NMEA_DATE, NMEA_TIME, UPDATE_HZ,
// SERIAL_PORT, SERIAL_BAUD, SERIAL_DIRECTION, DE_RE_GPIO, UDP_DEST,
// MQTT_BROKER, MQTT_TOPIC, MONITOR_PORT, LISTEN_ADDR, LOG_ENABLED,
// LOG_PATH, LOG_INTERVAL_MS. Setting UDP_DEST, MQTT_BROKER, MONITOR_PORT
// or LISTEN_ADDR also enables that section.
func (c *Config) applyEnvOverrides() error {
	float := func(key string, dst *float64) error {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("config: %s=%q: %w", key, v, err)
			}
			*dst = n
		}
		return nil
	}
	integer := func(key string, dst *int) error {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s=%q: %w", key, v, err)
			}
			*dst = n
		}
		return nil
	}

	if err := float("NMEA_LAT", &c.Position.Lat); err != nil {
		return err
	}
	if err := float("NMEA_LON", &c.Position.Lon); err != nil {
		return err
	}
	if v := os.Getenv("NMEA_DATE"); v != "" {
		c.Fix.Date = v
	}
	if v := os.Getenv("NMEA_TIME"); v != "" {
		c.Fix.StartTime = v
	}
	if err := float("UPDATE_HZ", &c.Fix.UpdateHz); err != nil {
		return err
	}
	if v := os.Getenv("SERIAL_PORT"); v != "" {
		c.Serial.PortPath = v
	}
	if err := integer("SERIAL_BAUD", &c.Serial.BaudRate); err != nil {
		return err
	}
	if v := os.Getenv("SERIAL_DIRECTION"); v != "" {
		c.Serial.Direction.Mode = v
	}
	if v := os.Getenv("DE_RE_GPIO"); v != "" {
		if err := integer("DE_RE_GPIO", &c.Serial.Direction.GPIOPin); err != nil {
			return err
		}
		c.Serial.Direction.Mode = transport.DirectionGPIO
	}
	if v := os.Getenv("UDP_DEST"); v != "" {
		c.UDP.Dest = v
		c.UDP.Enabled = true
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
		c.MQTT.Enabled = true
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" {
		c.MQTT.Topic = v
	}
	if v := os.Getenv("MONITOR_PORT"); v != "" {
		c.Monitor.PortPath = v
		c.Monitor.Enabled = true
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
		c.Server.Enabled = true
	}
	// Logging
	if v := os.Getenv("LOG_ENABLED"); v != "" {
		c.Logging.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	return integer("LOG_INTERVAL_MS", &c.Logging.IntervalMs)
}

// Validate checks everything that would make the broadcaster emit an
// invalid fix or fail to keep its cadence. Errors are fatal at startup.
func (c *Config) Validate() error {
	if err := c.Position.Validate(); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	if _, err := nmea.ParseDate(c.Fix.Date); err != nil {
		return fmt.Errorf("fix.date: %w", err)
	}
	if _, err := nmea.ParseTimeOfDay(c.Fix.StartTime); err != nil {
		return fmt.Errorf("fix.start_time: %w", err)
	}
	if !(c.Fix.UpdateHz > 0) {
		return fmt.Errorf("fix.update_hz must be > 0, got %v", c.Fix.UpdateHz)
	}
	if c.Fix.UpdateHz > broadcast.MaxUpdateHz {
		return fmt.Errorf("fix.update_hz must be <= %d, got %v", broadcast.MaxUpdateHz, c.Fix.UpdateHz)
	}

	if c.Serial.Enabled {
		if c.Serial.PortPath == "" {
			return fmt.Errorf("serial.port_path is required")
		}
		if !supportedBauds[c.Serial.BaudRate] {
			return fmt.Errorf("serial.baud_rate %d not supported", c.Serial.BaudRate)
		}
		// Both sentences plus the guards have to fit inside one cycle.
		airtime := float64(cycleBytes*bitsPerByte)/float64(c.Serial.BaudRate) +
			2*c.Serial.Direction.Guard().Seconds()
		if airtime >= 1/c.Fix.UpdateHz {
			return fmt.Errorf("fix.update_hz %v too fast for %d baud (cycle needs %.0f ms)",
				c.Fix.UpdateHz, c.Serial.BaudRate, airtime*1000)
		}
	}
	d := c.Serial.Direction
	switch d.Mode {
	case "", transport.DirectionNone:
	case transport.DirectionRTS:
		if !c.Serial.Enabled {
			return fmt.Errorf("serial.direction.mode rts requires serial.enabled")
		}
	case transport.DirectionGPIO:
		if d.GPIOPin < 0 {
			return fmt.Errorf("serial.direction.gpio_pin must be >= 0, got %d", d.GPIOPin)
		}
	default:
		return fmt.Errorf("serial.direction.mode %q must be none, rts or gpio", d.Mode)
	}
	if d.GuardMs < 0 {
		return fmt.Errorf("serial.direction.guard_ms must be >= 0, got %d", d.GuardMs)
	}

	if c.UDP.Enabled && c.UDP.Dest == "" {
		return fmt.Errorf("udp.dest is required when udp.enabled")
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		return fmt.Errorf("mqtt.broker and mqtt.topic are required when mqtt.enabled")
	}
	if c.Monitor.Enabled && c.Monitor.PortPath == "" {
		return fmt.Errorf("monitor.port_path is required when monitor.enabled")
	}
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required when server.enabled")
	}
	return nil
}

// BroadcastFix converts the validated fix section for the broadcaster.
func (c *Config) BroadcastFix() (broadcast.Fix, error) {
	date, err := nmea.ParseDate(c.Fix.Date)
	if err != nil {
		return broadcast.Fix{}, err
	}
	start, err := nmea.ParseTimeOfDay(c.Fix.StartTime)
	if err != nil {
		return broadcast.Fix{}, err
	}
	return broadcast.Fix{Position: c.Position, Date: date, Start: start}, nil
}

// Path is the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}
