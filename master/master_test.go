package master

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/busctx"
	"github.com/mklimuk/twowire/regs"
	"github.com/mklimuk/twowire/sim"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newMaster(t *testing.T, opts ...sim.Opt) (*Master, *sim.Controller) {
	t.Helper()
	c := sim.New(opts...)
	m := New(c, WithMasker(c), WithPollLimit(64), WithLogger(quiet))
	require.NoError(t, m.Init())
	c.ResetTrace()
	return m, c
}

func TestMaster_Init(t *testing.T) {
	c := sim.New()
	m := New(c, WithMasker(c), WithLogger(quiet))
	require.NoError(t, m.Init())

	assert.Equal(t, uint16(0x24), c.Load(regs.CR2)&regs.CR2_FREQ)
	assert.Equal(t, uint16(0xB4), c.Load(regs.CCR))
	assert.Equal(t, uint16(0x25), c.Load(regs.TRISE))
	assert.True(t, regs.IsSet(c, regs.CR1, regs.CR1_PE))
	assert.True(t, regs.IsSet(c, regs.CR1, regs.CR1_ACK))
	assert.Equal(t, "I2C1", m.String())
}

func TestMaster_InitInvalidTiming(t *testing.T) {
	c := sim.New()
	m := New(c, WithMasker(c), WithLogger(quiet), WithTiming(regs.Timing{}))
	assert.ErrorIs(t, m.Init(), regs.ErrInvalidTiming)
}

func TestMaster_SetSpeed(t *testing.T) {
	m, c := newMaster(t)
	require.NoError(t, m.SetSpeed(50*physic.KiloHertz))
	assert.Equal(t, uint16(360), c.Load(regs.CCR))
	assert.Equal(t, uint32(50_000), m.Timing().SpeedHz())
	assert.True(t, regs.IsSet(c, regs.CR1, regs.CR1_PE))
	assert.True(t, regs.IsSet(c, regs.CR1, regs.CR1_ACK))

	assert.ErrorIs(t, m.SetSpeed(400*physic.KiloHertz), regs.ErrInvalidTiming)
	assert.Equal(t, uint16(360), c.Load(regs.CCR), "failed change keeps the old timing")
}

func TestMaster_SetSpeedConcurrent(t *testing.T) {
	m, c := newMaster(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.SetSpeed(50 * physic.KiloHertz); err != nil {
				assert.ErrorIs(t, err, twowire.ErrBusBusy)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint16(360), c.Load(regs.CCR))
	assert.Equal(t, uint32(50_000), m.Timing().SpeedHz())
}

func TestMaster_Busy(t *testing.T) {
	m, c := newMaster(t, sim.WithTarget(sim.NewMemory(0x78, 1)))
	m.mx.Lock()
	defer m.mx.Unlock()

	assert.ErrorIs(t, m.Read(context.Background(), 0x78, 1, newBuffer(4)), twowire.ErrBusBusy)
	assert.ErrorIs(t, m.Write(context.Background(), 0x78, []byte{1}), twowire.ErrBusBusy)
	assert.ErrorIs(t, m.Init(), twowire.ErrBusBusy)
	assert.Empty(t, c.Events(), "a busy bus is not touched")
}

func TestMaster_VerboseTrace(t *testing.T) {
	var out bytes.Buffer
	c := sim.New(sim.WithTarget(sim.NewMemory(0x78, 0xAB)))
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := New(c, WithMasker(c), WithLogger(logger), WithName("sim"))
	require.NoError(t, m.Init())

	require.NoError(t, m.Read(context.Background(), 0x78, 1, newBuffer(1)))
	assert.NotContains(t, out.String(), "msg=load")

	out.Reset()
	c.Attach(sim.NewMemory(0x79, 0xCD))
	ctx := busctx.WithTarget(busctx.SetVerbose(context.Background(), true), "eeprom")
	require.NoError(t, m.Read(ctx, 0x79, 1, newBuffer(1)))
	assert.Contains(t, out.String(), "msg=load")
	assert.Contains(t, out.String(), "reg=SR1")
	assert.Contains(t, out.String(), "target=eeprom")
	assert.Contains(t, out.String(), "bus=sim")
	assert.Contains(t, out.String(), "data=cd")
}

func TestMaster_Release(t *testing.T) {
	m, c := newMaster(t)
	regs.Set(c, regs.CR1, regs.CR1_POS)
	regs.Clear(c, regs.CR1, regs.CR1_ACK)

	require.NoError(t, m.Release(context.Background()))
	assert.False(t, regs.IsSet(c, regs.CR1, regs.CR1_POS))
	assert.True(t, regs.IsSet(c, regs.CR1, regs.CR1_ACK))
}
