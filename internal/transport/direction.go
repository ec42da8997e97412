package transport

import (
	"fmt"
	"time"
)

// Direction modes.
const (
	DirectionNone = "none" // auto-direction adapter or DE/RE tied high
	DirectionRTS  = "rts"
	DirectionGPIO = "gpio"
)

// DirectionConfig selects how DE/RE is driven.
type DirectionConfig struct {
	Mode      string `yaml:"mode" json:"mode"`
	GPIOPin   int    `yaml:"gpio_pin" json:"gpioPin"`
	ActiveLow bool   `yaml:"active_low" json:"activeLow"`
	GuardMs   int    `yaml:"guard_ms" json:"guardMs"`
}

// Guard returns the turnaround guard, never less than MinGuard.
func (c DirectionConfig) Guard() time.Duration {
	g := time.Duration(c.GuardMs) * time.Millisecond
	if g < MinGuard {
		return MinGuard
	}
	return g
}

var openGPIOFn = openGPIO

// OpenDirection builds the transmit-enable for cfg. A nil result with a
// nil error means no direction control.
func OpenDirection(cfg DirectionConfig, port *SerialSink) (TransmitEnable, error) {
	switch cfg.Mode {
	case "", DirectionNone:
		return nil, nil
	case DirectionRTS:
		if port == nil {
			return nil, fmt.Errorf("transport: rts direction control needs a serial port")
		}
		return RTSEnable(port, cfg.ActiveLow), nil
	case DirectionGPIO:
		return openGPIOFn(cfg.GPIOPin, cfg.ActiveLow)
	default:
		return nil, fmt.Errorf("transport: unknown direction mode %q", cfg.Mode)
	}
}
