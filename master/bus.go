package master

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"tinygo.org/x/drivers"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/sink"
)

var _ twowire.Bus = &Master{}
var _ i2c.Bus = &Master{}
var _ drivers.I2C = &Master{}

func (m *Master) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Read(ctx, address, len(buffer), sink.NewSlice(buffer))
}

func (m *Master) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Write(ctx, address, buffer)
}

// Release puts the controller back to idle: stop if the bus is still owned,
// POS off, acknowledge on.
func (m *Master) Release(ctx context.Context) error {
	if !m.mx.TryLock() {
		return twowire.ErrBusBusy
	}
	defer m.mx.Unlock()
	m.begin(ctx)
	defer m.end()
	m.abort()
	return nil
}

// Tx runs a write transaction when w is not empty, then a read transaction
// when r is not empty. There is no repeated start between the two. With both
// empty it probes the address with a quick write.
func (m *Master) Tx(addr uint16, w, r []byte) error {
	if addr > maxAddress {
		return fmt.Errorf("tx to %#x: %w", addr, twowire.ErrInvalidAddress)
	}
	ctx := context.Background()
	if len(w) > 0 || len(r) == 0 {
		if err := m.Write(ctx, uint8(addr), w); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	return m.ReadFromAddr(ctx, uint8(addr), r)
}

// Scan probes every non-reserved 7-bit address with a quick write and
// returns the ones that acknowledged.
func (m *Master) Scan(ctx context.Context) ([]uint8, error) {
	var found []uint8
	for addr := uint8(0x08); addr < 0x78; addr++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		err := m.Write(ctx, addr, nil)
		if err == nil {
			found = append(found, addr)
			continue
		}
		if !isAbsent(err) {
			return found, err
		}
	}
	return found, nil
}
