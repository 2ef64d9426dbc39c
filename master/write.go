package master

import (
	"context"
	"fmt"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/busctx"
)

// Write sends data to the device at address in one transaction. An empty
// data slice produces a quick write: start, address, stop, which is how
// devices are probed.
func (m *Master) Write(ctx context.Context, address uint8, data []byte) error {
	if address > maxAddress {
		return fmt.Errorf("write to 0x%02x: %w", address, twowire.ErrInvalidAddress)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.mx.TryLock() {
		return twowire.ErrBusBusy
	}
	defer m.mx.Unlock()
	m.begin(ctx)
	defer m.end()

	sent, err := m.write(address, data)
	if err != nil {
		m.abort()
		m.log.Debug("write failed", "addr", fmt.Sprintf("0x%02x", address), "sent", sent, "error", err)
		return fmt.Errorf("write %d bytes to 0x%02x: %w", len(data), address, err)
	}
	if busctx.IsVerbose(ctx) {
		m.log.Debug("write complete", "addr", fmt.Sprintf("0x%02x", address), "data", fmt.Sprintf("% x", data))
	}
	return nil
}

func (m *Master) write(address uint8, data []byte) (int, error) {
	if err := m.GenerateStart(); err != nil {
		return 0, err
	}
	if err := m.SendAddress(address, DirWrite); err != nil {
		return 0, err
	}
	if err := m.clearAddress(); err != nil {
		return 0, err
	}
	for i, b := range data {
		if err := m.WriteByte(b); err != nil {
			return i, fmt.Errorf("byte %d: %w", i, err)
		}
	}
	return len(data), m.GenerateStop()
}
