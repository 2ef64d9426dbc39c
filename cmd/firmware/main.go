//go:build tinygo && stm32f103

// Command firmware reads a device on I2C1 once a second and relays the
// bytes over the board's serial port.
package main

import (
	"context"
	"machine"
	"time"

	"github.com/mklimuk/twowire/irq"
	"github.com/mklimuk/twowire/master"
	"github.com/mklimuk/twowire/regs"
	"github.com/mklimuk/twowire/relay"
	"github.com/mklimuk/twowire/sink"
)

const (
	deviceAddress = 0x78
	readCount     = 4
)

func main() {
	// clock gating and pin muxing come from the machine package; the
	// sequencer owns the controller registers from here on
	_ = machine.I2C0.Configure(machine.I2CConfig{Frequency: 100 * machine.KHz})

	m := master.New(regs.I2C1(), master.WithMasker(irq.Global()))
	if err := m.Init(); err != nil {
		println("i2c init failed:", err.Error())
		return
	}
	q := sink.NewQueue(sink.DefaultCapacity)
	r := relay.New(q, machine.Serial)
	println("waiting")

	ctx := context.Background()
	for {
		if err := m.Read(ctx, deviceAddress, readCount, q); err != nil {
			println("read failed:", err.Error())
		}
		if err := r.Flush(); err != nil {
			println("relay failed:", err.Error())
		}
		time.Sleep(time.Second)
	}
}
