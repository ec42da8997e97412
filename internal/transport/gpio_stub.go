//go:build !linux

package transport

import "fmt"

func openGPIO(pin int, activeLow bool) (TransmitEnable, error) {
	return nil, fmt.Errorf("gpio: unsupported on this platform")
}
