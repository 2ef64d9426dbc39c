package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	timing, err := cfg.Timing()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x24), timing.Freq)
	assert.Equal(t, uint16(0xB4), timing.CCR)
	assert.Equal(t, uint16(0x25), timing.TRISE)
	assert.Equal(t, 255, cfg.Bus.SinkCapacity)
}

func TestDecode(t *testing.T) {
	in := `
bus:
  backend: periph
  device: "1"
  speed_hz: 50000
relay:
  interval: 250ms
sim:
  targets:
    - kind: memory
      address: 0x50
      response: "01 02 0a"
`
	cfg, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, BackendPeriph, cfg.Bus.Backend)
	assert.Equal(t, "1", cfg.Bus.Device)
	assert.Equal(t, uint32(50_000), cfg.Bus.SpeedHz)
	assert.Equal(t, uint32(36_000_000), cfg.Bus.ClockHz, "unset fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.Interval)
	assert.Equal(t, 115200, cfg.Relay.Baud)
	require.Len(t, cfg.Sim.Targets, 1)
	assert.Equal(t, uint8(0x50), cfg.Sim.Targets[0].Address)
	assert.Equal(t, Hex{0x01, 0x02, 0x0A}, cfg.Sim.Targets[0].Response)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown backend", "bus:\n  backend: spi\n"},
		{"periph without device", "bus:\n  backend: periph\n"},
		{"fast mode", "bus:\n  speed_hz: 400000\n"},
		{"odd clock", "bus:\n  clock_hz: 36500000\n"},
		{"zero poll limit", "bus:\n  poll_limit: 0\n"},
		{"zero sink", "bus:\n  sink_capacity: 0\n"},
		{"zero interval", "relay:\n  interval: 0s\n"},
		{"duplicate target", "sim:\n  targets:\n    - {kind: memory, address: 0x10}\n    - {kind: tmp102, address: 0x10}\n"},
		{"unknown target", "sim:\n  targets:\n    - {kind: eeprom, address: 0x10}\n"},
		{"address out of range", "sim:\n  targets:\n    - {kind: memory, address: 0x90}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(strings.NewReader("bus:\n  colour: blue\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Decode(strings.NewReader("sim:\n  targets:\n    - {kind: memory, address: 0x10, response: zz}\n"))
	assert.Error(t, err)
}

func TestDecode_Empty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "twowire.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  name: I2C2\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "I2C2", cfg.Bus.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Write(&buf))
	assert.Contains(t, buf.String(), `response: de ad be ef`)
	assert.Contains(t, buf.String(), "interval: 100ms")

	cfg, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseHex(t *testing.T) {
	b, err := ParseHex("0xde 0xad")
	require.NoError(t, err)
	assert.Equal(t, Hex{0xDE, 0xAD}, b)
	assert.Equal(t, "de ad", b.String())

	_, err = ParseHex("abc")
	assert.Error(t, err)
}
