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

const SHTC3Address = 0x70

// commands are sent big endian
const (
	shtc3CmdWake  uint16 = 0x3517
	shtc3CmdSleep uint16 = 0xB098
	// normal power, no clock stretching, temperature first
	shtc3CmdMeasure uint16 = 0x7866
)

var ErrChecksum = errors.New("checksum mismatch")

// SHTC3 is a Sensirion SHTC3 temperature and humidity sensor.
type SHTC3 struct {
	bus   twowire.Bus
	sleep func(time.Duration)
}

func NewSHTC3(bus twowire.Bus) *SHTC3 {
	return &SHTC3{bus: bus, sleep: time.Sleep}
}

func (s *SHTC3) Temperature(ctx context.Context) (float32, error) {
	t, _, err := s.Measure(ctx)
	return t, err
}

// Measure wakes the sensor, runs one conversion and puts it back to sleep.
// It returns the temperature in °C and relative humidity in %.
func (s *SHTC3) Measure(ctx context.Context) (float32, float32, error) {
	ctx = busctx.WithTarget(ctx, "shtc3")
	if err := s.command(ctx, shtc3CmdWake); err != nil {
		return 0, 0, fmt.Errorf("shtc3: wake failed: %w", err)
	}
	// wake up takes up to 240us
	s.sleep(time.Millisecond)
	if err := s.command(ctx, shtc3CmdMeasure); err != nil {
		return 0, 0, fmt.Errorf("shtc3: measure command failed: %w", err)
	}
	// typical conversion is 12.1ms in normal mode
	s.sleep(15 * time.Millisecond)

	// T[0:2], CRC, RH[3:5], CRC
	buf := make([]byte, 6)
	if err := s.bus.ReadFromAddr(ctx, SHTC3Address, buf); err != nil {
		return 0, 0, fmt.Errorf("shtc3: read failed: %w", err)
	}
	if crc8(buf[0:2]) != buf[2] {
		return 0, 0, fmt.Errorf("shtc3: temperature: %w", ErrChecksum)
	}
	if crc8(buf[3:5]) != buf[5] {
		return 0, 0, fmt.Errorf("shtc3: humidity: %w", ErrChecksum)
	}
	rawT := binary.BigEndian.Uint16(buf[0:2])
	rawRH := binary.BigEndian.Uint16(buf[3:5])
	temp := -45 + 175*float32(rawT)/65535
	hum := 100 * float32(rawRH) / 65535

	if err := s.command(ctx, shtc3CmdSleep); err != nil {
		return temp, hum, fmt.Errorf("shtc3: sleep failed: %w", err)
	}
	return temp, hum, nil
}

func (s *SHTC3) command(ctx context.Context, cmd uint16) error {
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], cmd)
	return s.bus.WriteToAddr(ctx, SHTC3Address, out[:])
}

// Sensirion CRC-8: polynomial 0x31, init 0xFF
func crc8(data []byte) byte {
	var crc byte = 0xFF
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
