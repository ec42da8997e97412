package server

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaunagostinho/nmeacast/internal/nmea"
	"github.com/shaunagostinho/nmeacast/internal/transport"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	fix, err := cfg.BroadcastFix()
	if err != nil {
		t.Fatalf("BroadcastFix() error: %v", err)
	}
	if fix.Start != (nmea.TimeOfDay{Hours: 12}) || fix.Date.String() != "190226" {
		t.Fatalf("fix=%+v", fix)
	}
	if cfg.Serial.BaudRate != 4800 || cfg.Fix.UpdateHz != 1 {
		t.Fatalf("serial=%+v hz=%v", cfg.Serial, cfg.Fix.UpdateHz)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Position != DefaultConfig().Position {
		t.Fatalf("position=%+v", cfg.Position)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeTempConfig(t, `
position:
  lat: -33.8568
  lon: 151.2153
fix:
  date: "010125"
  start_time: "235950"
  update_hz: 2
serial:
  port_path: /dev/ttyAMA0
  baud_rate: 9600
  direction:
    mode: gpio
    gpio_pin: 5
    guard_ms: 3
udp:
  enabled: true
  dest: 192.168.1.255:10110
mqtt:
  enabled: true
  broker: tcp://broker:1883
  topic: bench/nmea
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Position.Lat != -33.8568 || cfg.Position.Lon != 151.2153 {
		t.Fatalf("position=%+v", cfg.Position)
	}
	if cfg.Serial.Direction.Mode != transport.DirectionGPIO || cfg.Serial.Direction.GPIOPin != 5 {
		t.Fatalf("direction=%+v", cfg.Serial.Direction)
	}
	if !cfg.Serial.Enabled {
		t.Fatalf("serial.enabled default should survive a partial file")
	}
	if cfg.MQTT.Topic != "bench/nmea" || cfg.MQTT.ClientID != "nmeacast" {
		t.Fatalf("mqtt=%+v", cfg.MQTT)
	}
	if cfg.Path() != path {
		t.Fatalf("path=%q want %q", cfg.Path(), path)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeTempConfig(t, "position: [this is not a map\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("NMEA_LAT", "10.5")
	t.Setenv("NMEA_LON", "-20.25")
	t.Setenv("NMEA_TIME", "060000")
	t.Setenv("SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("SERIAL_BAUD", "38400")
	t.Setenv("DE_RE_GPIO", "17")
	t.Setenv("UDP_DEST", "127.0.0.1:10110")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Position.Lat != 10.5 || cfg.Position.Lon != -20.25 || cfg.Fix.StartTime != "060000" {
		t.Fatalf("fix overrides not applied: %+v %+v", cfg.Position, cfg.Fix)
	}
	if cfg.Serial.PortPath != "/dev/ttyS1" || cfg.Serial.BaudRate != 38400 {
		t.Fatalf("serial=%+v", cfg.Serial)
	}
	if cfg.Serial.Direction.Mode != transport.DirectionGPIO || cfg.Serial.Direction.GPIOPin != 17 {
		t.Fatalf("direction=%+v", cfg.Serial.Direction)
	}
	if !cfg.UDP.Enabled || !cfg.Server.Enabled || cfg.Server.ListenAddr != ":9090" {
		t.Fatalf("udp=%+v server=%+v", cfg.UDP, cfg.Server)
	}
}

func TestLoadConfig_EnvEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("# bench\nNMEA_DATE='311299'\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	t.Setenv("NMEA_DATE", "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Fix.Date != "311299" {
		t.Fatalf("date=%q want 311299", cfg.Fix.Date)
	}
}

func TestLoadConfig_BadEnvValue(t *testing.T) {
	t.Setenv("NMEA_LAT", "north")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err == nil || !strings.Contains(err.Error(), "NMEA_LAT") {
		t.Fatalf("err=%v want NMEA_LAT error", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"LatTooBig", func(c *Config) { c.Position.Lat = 90.1 }, "position:"},
		{"LonTooSmall", func(c *Config) { c.Position.Lon = -180.1 }, "position:"},
		{"BadDate", func(c *Config) { c.Fix.Date = "19-02-26" }, "fix.date"},
		{"BadMonth", func(c *Config) { c.Fix.Date = "191326" }, "fix.date"},
		{"BadTime", func(c *Config) { c.Fix.StartTime = "12:00" }, "fix.start_time"},
		{"HourOutOfRange", func(c *Config) { c.Fix.StartTime = "250000" }, "fix.start_time"},
		{"ZeroHz", func(c *Config) { c.Fix.UpdateHz = 0 }, "fix.update_hz must be > 0"},
		{"NaNHz", func(c *Config) { c.Fix.UpdateHz = math.NaN() }, "fix.update_hz must be > 0"},
		{"HugeHzNoSerial", func(c *Config) { c.Serial.Enabled = false; c.Fix.UpdateHz = 2e9 }, "fix.update_hz must be <= 1000"},
		{"InfHzNoSerial", func(c *Config) { c.Serial.Enabled = false; c.Fix.UpdateHz = math.Inf(1) }, "fix.update_hz must be <= 1000"},
		{"TooFastForBaud", func(c *Config) { c.Fix.UpdateHz = 4 }, "too fast for 4800 baud"},
		{"OddBaud", func(c *Config) { c.Serial.BaudRate = 1234 }, "not supported"},
		{"NoPort", func(c *Config) { c.Serial.PortPath = "" }, "serial.port_path is required"},
		{"BadMode", func(c *Config) { c.Serial.Direction.Mode = "auto" }, "must be none, rts or gpio"},
		{"RTSWithoutSerial", func(c *Config) {
			c.Serial.Enabled = false
			c.Serial.Direction.Mode = transport.DirectionRTS
		}, "requires serial.enabled"},
		{"NegativeGuard", func(c *Config) { c.Serial.Direction.GuardMs = -1 }, "guard_ms"},
		{"UDPNoDest", func(c *Config) { c.UDP.Enabled = true; c.UDP.Dest = "" }, "udp.dest"},
		{"MQTTNoTopic", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Topic = "" }, "mqtt.broker and mqtt.topic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want containing %q", err, tc.want)
			}
		})
	}
}

func TestValidate_FastRateAtHighBaud(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial.BaudRate = 115200
	cfg.Fix.UpdateHz = 10
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}
