package sensor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/busctx"
)

const HIH6021Address = 0x27

var hihDivider = float32(1<<14 - 2)

var ErrStaleData = errors.New("stale data")
var ErrCommandMode = errors.New("device in command mode")

// HIH6021 is a Honeywell HumidIcon humidity and temperature sensor. A
// measurement is requested with a quick write.
type HIH6021 struct {
	bus   twowire.Bus
	sleep func(time.Duration)
}

func NewHIH6021(bus twowire.Bus) *HIH6021 {
	return &HIH6021{bus: bus, sleep: time.Sleep}
}

func (s *HIH6021) Temperature(ctx context.Context) (float32, error) {
	t, _, err := s.Measure(ctx)
	return t, err
}

// Measure returns the temperature in °C and relative humidity in %.
func (s *HIH6021) Measure(ctx context.Context) (float32, float32, error) {
	ctx = busctx.WithTarget(ctx, "hih6021")
	if err := s.bus.WriteToAddr(ctx, HIH6021Address, nil); err != nil {
		return 0, 0, fmt.Errorf("hih6021: measurement request failed: %w", err)
	}
	// measurement cycle takes typically 36.65ms
	s.sleep(50 * time.Millisecond)
	resp := make([]byte, 4)
	if err := s.bus.ReadFromAddr(ctx, HIH6021Address, resp); err != nil {
		return 0, 0, fmt.Errorf("hih6021: could not fetch measurement: %w", err)
	}
	if resp[0]&0x80 != 0 {
		return 0, 0, fmt.Errorf("hih6021: %w", ErrCommandMode)
	}
	// data already fetched or conversion not finished
	if resp[0]&0x40 != 0 {
		return 0, 0, fmt.Errorf("hih6021: %w", ErrStaleData)
	}
	return hihTemperature(resp[2:4]), hihHumidity(resp[0:2]), nil
}

func hihHumidity(resp []byte) float32 {
	hum := float32(binary.BigEndian.Uint16(resp)) / hihDivider * 100
	if hum > 100.00 {
		return 100.00
	}
	return hum
}

func hihTemperature(resp []byte) float32 {
	shift := resp[0] & 0x03
	shift <<= 6
	lsb := (resp[1] >> 2) | shift
	msb := resp[0] >> 2
	return float32(binary.BigEndian.Uint16([]byte{msb, lsb}))/hihDivider*165 - 40
}
