package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/cmd/twowire/console"
	"github.com/mklimuk/twowire/config"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	console.SetOutput(&out, io.Discard)
	t.Cleanup(func() {
		console.SetOutput(io.Discard, io.Discard)
	})
	return &out
}

func simSession(t *testing.T) *session {
	t.Helper()
	settings = config.Default()
	s, err := openSession(settings)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestParseAddress(t *testing.T) {
	a, err := parseAddress("0x48")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x48), a)

	a, err = parseAddress("80")
	require.NoError(t, err)
	assert.Equal(t, uint8(80), a)

	_, err = parseAddress("0x80")
	assert.ErrorIs(t, err, twowire.ErrInvalidAddress)
	_, err = parseAddress("sensor")
	assert.Error(t, err)
}

func TestExecLine(t *testing.T) {
	s := simSession(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, execLine(ctx, s, "read 0x78 4", &out))
	assert.Contains(t, out.String(), "de ad be ef")

	out.Reset()
	require.NoError(t, execLine(ctx, s, "temp", &out))
	assert.Equal(t, "21.50°C\n", out.String())

	out.Reset()
	require.NoError(t, execLine(ctx, s, "scan", &out))
	assert.Contains(t, out.String(), "0x48 0x78")

	out.Reset()
	require.NoError(t, execLine(ctx, s, "write 0x78 01 02", &out))
	assert.Equal(t, "2 bytes written\n", out.String())

	out.Reset()
	require.NoError(t, execLine(ctx, s, "trace", &out))
	assert.Contains(t, out.String(), "stop")
	assert.Empty(t, s.trace(), "trace is reset after printing")

	assert.NoError(t, execLine(ctx, s, "   ", &out))
	assert.ErrorIs(t, execLine(ctx, s, "exit", &out), errExit)
	assert.Error(t, execLine(ctx, s, "read 0x78", &out))
	assert.Error(t, execLine(ctx, s, "blink", &out))
	assert.ErrorIs(t, execLine(ctx, s, "read 0x10 1", &out), twowire.ErrNoSuchDevice)
}

func TestExecLine_Sensor(t *testing.T) {
	s := simSession(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, s.respond(0x4D, []byte{0x40, 0x19}))
	require.NoError(t, execLine(ctx, s, "sensor tc74", &out))
	assert.Equal(t, "25.00°C\n", out.String())

	assert.Error(t, execLine(ctx, s, "sensor", &out))
	assert.Error(t, execLine(ctx, s, "sensor bme280", &out))
	assert.ErrorIs(t, execLine(ctx, s, "sensor shtc3", &out), twowire.ErrNoSuchDevice)
}

func TestSessionRespond(t *testing.T) {
	s := simSession(t)
	require.NoError(t, s.respond(0x30, []byte{0x01}))
	require.NoError(t, s.respond(0x78, []byte{0x02}))
	assert.Error(t, s.respond(0x48, []byte{0x03}), "the TMP102 is not scripted")
}

func TestApp_Read(t *testing.T) {
	out := captureOutput(t)
	code := run([]string{"twowire", "read", "--addr", "0x30", "--count", "2", "--respond", "cafe"})
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "ca fe")
}

func TestApp_ReadTrace(t *testing.T) {
	out := captureOutput(t)
	code := run([]string{"twowire", "read", "--addr", "0x78", "--count", "3", "--trace"})
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "[masked]")
	assert.Contains(t, out.String(), "de ad be")
}

func TestApp_Config(t *testing.T) {
	out := captureOutput(t)
	code := run([]string{"twowire", "--bus", "sim", "config"})
	assert.Equal(t, 0, code)

	cfg, err := config.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestFormatScan(t *testing.T) {
	assert.Equal(t, "no devices found", formatScan(nil))
	assert.Contains(t, formatScan([]uint8{0x08, 0x50}), "0x08 0x50")
}
