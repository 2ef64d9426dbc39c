package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/twowire/regs"
)

func enabled(opts ...Opt) *Controller {
	c := New(opts...)
	c.Store(regs.CR1, regs.CR1_PE|regs.CR1_ACK)
	return c
}

func TestController_StartAndAddress(t *testing.T) {
	mem := NewMemory(0x78)
	c := enabled(WithTarget(mem))

	regs.Set(c, regs.CR1, regs.CR1_START)
	assert.False(t, regs.IsSet(c, regs.CR1, regs.CR1_START), "start bit is cleared once generated")
	assert.True(t, regs.IsSet(c, regs.SR2, regs.SR2_MSL))
	require.True(t, regs.IsSet(c, regs.SR1, regs.SR1_SB))

	c.Store(regs.DR, 0x78<<1|1)
	assert.False(t, c.Load(regs.SR1)&regs.SR1_SB != 0)
	// the SR1 read above let the address phase complete
	assert.True(t, regs.IsSet(c, regs.SR1, regs.SR1_ADDR))

	c.Load(regs.SR1)
	c.Load(regs.SR2)
	assert.False(t, regs.IsSet(c, regs.SR1, regs.SR1_ADDR), "SR1 then SR2 read clears ADDR")
	assert.Empty(t, c.Violations())
}

func TestController_AddressNack(t *testing.T) {
	c := enabled()
	regs.Set(c, regs.CR1, regs.CR1_START)
	c.Load(regs.SR1)
	c.Store(regs.DR, 0x10<<1)
	sr1 := c.Load(regs.SR1)
	assert.NotZero(t, sr1&regs.SR1_AF)
	assert.Zero(t, sr1&regs.SR1_ADDR)

	c.Store(regs.SR1, sr1&^regs.SR1_AF)
	assert.Zero(t, c.Load(regs.SR1)&regs.SR1_AF)

	regs.Set(c, regs.CR1, regs.CR1_STOP)
	assert.False(t, regs.IsSet(c, regs.SR2, regs.SR2_MSL))
	assert.Equal(t, []EventKind{EvStart, EvAddress, EvStop}, kinds(c.BusEvents()))
}

func TestController_AddressWrittenTooEarly(t *testing.T) {
	c := enabled(WithTarget(NewMemory(0x78)))
	regs.Set(c, regs.CR1, regs.CR1_START)
	// no SR1 read before writing DR
	c.Store(regs.DR, 0x78<<1)
	assert.NotEmpty(t, c.Violations())
}

func TestController_StuckStart(t *testing.T) {
	c := enabled(WithStuckStart())
	regs.Set(c, regs.CR1, regs.CR1_START)
	assert.True(t, regs.IsSet(c, regs.CR1, regs.CR1_START))
	assert.False(t, regs.IsSet(c, regs.SR2, regs.SR2_MSL))
}

func TestController_HungAddress(t *testing.T) {
	c := enabled(WithTarget(NewMemory(0x78)), WithHungAddress(0x78))
	regs.Set(c, regs.CR1, regs.CR1_START)
	c.Load(regs.SR1)
	c.Store(regs.DR, 0x78<<1)
	for i := 0; i < 10; i++ {
		assert.Zero(t, c.Load(regs.SR1)&(regs.SR1_ADDR|regs.SR1_AF))
	}
}

func TestController_EmptyDataRegisterRead(t *testing.T) {
	c := enabled()
	c.Load(regs.DR)
	assert.Equal(t, []string{"data register read while empty"}, c.Violations())
}

func TestController_MaskTracking(t *testing.T) {
	c := New()
	s := c.Disable()
	assert.True(t, c.Masked())
	c.Load(regs.CR1)
	c.Restore(s)
	assert.False(t, c.Masked())
	ev := c.Events()
	require.Len(t, ev, 3)
	assert.True(t, ev[1].Masked)
	assert.False(t, ev[2].Masked)

	c.Restore(s)
	assert.NotEmpty(t, c.Violations())
}

func TestTMP102_Registers(t *testing.T) {
	tmp := NewTMP102(TMP102Address)
	tmp.SetTemperature(25)
	assert.Equal(t, uint16(0x1900), tmp.Register(0))

	require.True(t, tmp.Begin(false))
	tmp.Write(0x01)
	tmp.End()
	require.True(t, tmp.Begin(true))
	assert.Equal(t, byte(0x60), tmp.Read())
	assert.Equal(t, byte(0xA0), tmp.Read())
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestController_Attach(t *testing.T) {
	c := New()
	_, ok := c.Target(0x50)
	assert.False(t, ok)

	mem := NewMemory(0x50)
	c.Attach(mem)
	got, ok := c.Target(0x50)
	require.True(t, ok)
	assert.Same(t, mem, got)
}
