//go:build linux

package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIO requests the given BCM GPIO as an output through the GPIO
// character device, starting low (receive).
func openGPIO(pin int, activeLow bool) (TransmitEnable, error) {
	if pin < 0 {
		return nil, fmt.Errorf("gpio: invalid pin %d", pin)
	}

	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	initial := 0
	if activeLow {
		initial = 1
	}
	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(initial), gpiocdev.WithConsumer("nmeacast-de-re"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &levelEnable{
			set: func(v bool) error {
				if v {
					return line.SetValue(1)
				}
				return line.SetValue(0)
			},
			close: func() error {
				err := line.Close()
				_ = chip.Close()
				return err
			},
			activeLow: activeLow,
		}, nil
	}

	return nil, fmt.Errorf("gpio: line %q not found (or busy)", lineName)
}
