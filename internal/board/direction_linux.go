//go:build linux

package board

import (
	"go.uber.org/multierr"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIODirectionPin drives the RS-485 transceiver's DE/RE line from a
// Raspberry Pi GPIO pin via go-rpio. Both DE and RE are tied to the same
// line on OSSM-style driver boards, so a single pin set/clear is enough to
// flip between transmit and receive around each motor write.
type RPIODirectionPin struct {
	pin rpio.Pin
}

// NewRPIODirectionPin opens the rpio memory map and configures pin as an
// output, defaulting to receive (low).
func NewRPIODirectionPin(pin int) (*RPIODirectionPin, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return &RPIODirectionPin{pin: p}, nil
}

// SetTransmit drives the line high for transmit, low for receive. It always
// returns nil.
func (d *RPIODirectionPin) SetTransmit(enabled bool) error {
	if enabled {
		d.pin.High()
	} else {
		d.pin.Low()
	}
	return nil
}

// Close releases the rpio memory map.
func (d *RPIODirectionPin) Close() error {
	return multierr.Combine(rpio.Close())
}
