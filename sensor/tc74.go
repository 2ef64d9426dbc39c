// Package sensor holds drivers for I2C sensors that run on any twowire.Bus,
// the on-chip master as well as the USB bridge.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/busctx"
)

const TC74Address = 0x4D

const (
	tc74TempRegister   = 0x00
	tc74ConfigRegister = 0x01
	tc74DataReady      = 0x40
)

var ErrNotReady = errors.New("no conversion available yet")

// Thermometer reads a temperature in degrees Celsius.
type Thermometer interface {
	Temperature(ctx context.Context) (float32, error)
}

// TC74 is a Microchip TC74 digital temperature sensor.
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/21462D.pdf
type TC74 struct {
	bus      twowire.Bus
	address  byte
	lastTemp float32
	valid    bool
}

type TC74Opt func(*TC74)

func WithAddress(address byte) TC74Opt {
	return func(s *TC74) {
		s.address = address
	}
}

func NewTC74(bus twowire.Bus, opts ...TC74Opt) *TC74 {
	s := &TC74{bus: bus, address: TC74Address}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config reads the configuration register.
func (s *TC74) Config(ctx context.Context) (byte, error) {
	return s.register(ctx, tc74ConfigRegister)
}

// Temperature returns the latest conversion. While the sensor reports no new
// data the previous reading is returned.
func (s *TC74) Temperature(ctx context.Context) (float32, error) {
	ctx = busctx.WithTarget(ctx, "tc74")
	config, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}
	if config&tc74DataReady == 0 {
		if !s.valid {
			return 0, fmt.Errorf("tc74: %w", ErrNotReady)
		}
		return s.lastTemp, nil
	}
	raw, err := s.register(ctx, tc74TempRegister)
	if err != nil {
		return 0, err
	}
	s.lastTemp = float32(int8(raw))
	s.valid = true
	return s.lastTemp, nil
}

func (s *TC74) register(ctx context.Context, reg byte) (byte, error) {
	if err := s.bus.WriteToAddr(ctx, s.address, []byte{reg}); err != nil {
		return 0, fmt.Errorf("tc74: could not select register 0x%02x: %w", reg, err)
	}
	resp := make([]byte, 1)
	if err := s.bus.ReadFromAddr(ctx, s.address, resp); err != nil {
		return 0, fmt.Errorf("tc74: could not read register 0x%02x: %w", reg, err)
	}
	return resp[0], nil
}
