package sensor

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/master"
	"github.com/mklimuk/twowire/sim"
)

func newBus(t *testing.T, targets ...sim.Target) *master.Master {
	t.Helper()
	opts := make([]sim.Opt, 0, len(targets))
	for _, tg := range targets {
		opts = append(opts, sim.WithTarget(tg))
	}
	c := sim.New(opts...)
	m := master.New(c, master.WithMasker(c), master.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, m.Init())
	return m
}

func noSleep(time.Duration) {}

func TestTC74_Temperature(t *testing.T) {
	mem := sim.NewMemory(TC74Address, 0x40, 0x19)
	s := NewTC74(newBus(t, mem))

	temp, err := s.Temperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(25), temp)
	assert.Equal(t, [][]byte{{tc74ConfigRegister}, {tc74TempRegister}}, mem.Writes())

	// no new conversion: last reading is kept
	mem.Queue(0x00)
	temp, err = s.Temperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(25), temp)

	mem.Queue(0x40, 0xF6)
	temp, err = s.Temperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(-10), temp)
}

func TestTC74_NotReady(t *testing.T) {
	s := NewTC74(newBus(t, sim.NewMemory(0x48, 0x00)), WithAddress(0x48))
	_, err := s.Temperature(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestTC74_Absent(t *testing.T) {
	s := NewTC74(newBus(t))
	_, err := s.Temperature(context.Background())
	assert.ErrorIs(t, err, twowire.ErrNoSuchDevice)
}

func TestCRC8(t *testing.T) {
	// example from the Sensirion datasheet
	assert.Equal(t, byte(0x92), crc8([]byte{0xBE, 0xEF}))
}

func shtc3Frame(rawT, rawRH uint16) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:2], rawT)
	buf[2] = crc8(buf[0:2])
	binary.BigEndian.PutUint16(buf[3:5], rawRH)
	buf[5] = crc8(buf[3:5])
	return buf
}

func TestSHTC3_Measure(t *testing.T) {
	mem := sim.NewMemory(SHTC3Address, shtc3Frame(0x6666, 0x8000)...)
	s := NewSHTC3(newBus(t, mem))
	s.sleep = noSleep

	temp, hum, err := s.Measure(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 25.0, temp, 0.01)
	assert.InDelta(t, 50.0, hum, 0.01)
	assert.Equal(t, [][]byte{{0x35, 0x17}, {0x78, 0x66}, {0xB0, 0x98}}, mem.Writes())
	assert.Equal(t, 6, mem.Served())
}

func TestSHTC3_Checksum(t *testing.T) {
	frame := shtc3Frame(0x6666, 0x8000)
	frame[5] ^= 0xFF
	s := NewSHTC3(newBus(t, sim.NewMemory(SHTC3Address, frame...)))
	s.sleep = noSleep

	_, err := s.Temperature(context.Background())
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestHIH6021_Measure(t *testing.T) {
	mem := sim.NewMemory(HIH6021Address, 0x17, 0x8B, 0x65, 0xB8)
	s := NewHIH6021(newBus(t, mem))
	s.sleep = noSleep

	temp, hum, err := s.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(25.568916), temp)
	assert.Equal(t, float32(36.79038), hum)
	writes := mem.Writes()
	require.Len(t, writes, 1)
	assert.Empty(t, writes[0], "measurement is requested with a quick write")
}

func TestHIH6021_Status(t *testing.T) {
	s := NewHIH6021(newBus(t, sim.NewMemory(HIH6021Address, 0x57, 0x8B, 0x65, 0xB8, 0x97, 0x8B, 0x65, 0xB8)))
	s.sleep = noSleep

	_, _, err := s.Measure(context.Background())
	assert.ErrorIs(t, err, ErrStaleData)
	_, _, err = s.Measure(context.Background())
	assert.ErrorIs(t, err, ErrCommandMode)
}

func TestHIH6021_Convert(t *testing.T) {
	tests := []struct {
		name string
		hum  []byte
		temp []byte
		h, t float32
	}{
		{"zero", []byte{0x00, 0x00}, []byte{0x00, 0x00}, 0.0, -40.0},
		{"max", []byte{0x3F, 0xFF}, []byte{0xFF, 0xFC}, 100.0, 125.01007},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.h, hihHumidity(test.hum))
			assert.Equal(t, test.t, hihTemperature(test.temp))
		})
	}
}

var (
	_ Thermometer = &TC74{}
	_ Thermometer = &SHTC3{}
	_ Thermometer = &HIH6021{}
)
