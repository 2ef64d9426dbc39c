package master

import (
	"fmt"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/regs"
)

// The primitives below do not take the transaction lock; Read, Write and Tx do.

// GenerateStart requests a start condition and waits until the controller
// has sent it and switched to master mode.
func (m *Master) GenerateStart() error {
	regs.Set(m.bus, regs.CR1, regs.CR1_START)
	return m.poll("start condition", func() bool {
		return m.bus.Load(regs.CR1)&regs.CR1_START == 0 &&
			m.bus.Load(regs.SR2)&regs.SR2_MSL != 0
	})
}

// SendAddress puts the 7-bit address and the direction bit on the bus and
// waits for the address phase to complete. A NACK on the address is reported
// as twowire.ErrNoSuchDevice.
func (m *Master) SendAddress(address uint8, dir Direction) error {
	if address > maxAddress {
		return fmt.Errorf("address 0x%02x: %w", address, twowire.ErrInvalidAddress)
	}
	if err := m.waitStatus(regs.SR1_SB, "start bit"); err != nil {
		return err
	}
	m.bus.Store(regs.DR, uint16(address<<1|uint8(dir)))
	err := m.waitStatus(regs.SR1_ADDR, "address phase")
	if err != nil && m.lastNACK {
		return fmt.Errorf("address 0x%02x (%s): %w", address, dir, twowire.ErrNoSuchDevice)
	}
	return err
}

// WriteByte sends one data byte and waits until it has left the shift register.
func (m *Master) WriteByte(b byte) error {
	m.bus.Store(regs.DR, uint16(b))
	return m.waitStatus(regs.SR1_BTF, "byte transfer")
}

// GenerateStop requests a stop condition and waits until it was sent.
func (m *Master) GenerateStop() error {
	regs.Set(m.bus, regs.CR1, regs.CR1_STOP)
	return m.waitStopSent()
}

// clearAddress runs the SR1-then-SR2 read that releases the clock after the
// address phase.
func (m *Master) clearAddress() error {
	sr1 := m.bus.Load(regs.SR1)
	if sr1&regs.SR1_ADDR == 0 {
		return fmt.Errorf("address flag not set (SR1 %s): %w", regs.Flags(regs.SR1, sr1), twowire.ErrProtocolViolation)
	}
	_ = m.bus.Load(regs.SR2)
	return nil
}

func (m *Master) waitStopSent() error {
	return m.poll("stop condition", func() bool {
		return m.bus.Load(regs.CR1)&regs.CR1_STOP == 0
	})
}

// waitStatus polls SR1 until one of flags is set. An acknowledge failure
// seen on the way is cleared and ends the wait with twowire.ErrNACK.
func (m *Master) waitStatus(flags uint16, what string) error {
	m.lastNACK = false
	for i := 0; i < m.config.PollLimit; i++ {
		sr1 := m.bus.Load(regs.SR1)
		if sr1&regs.SR1_AF != 0 {
			m.bus.Store(regs.SR1, sr1&^regs.SR1_AF)
			m.lastNACK = true
			return fmt.Errorf("waiting for %s: %w", what, twowire.ErrNACK)
		}
		if sr1&(regs.SR1_BERR|regs.SR1_ARLO) != 0 {
			m.bus.Store(regs.SR1, sr1&^(regs.SR1_BERR|regs.SR1_ARLO))
			return fmt.Errorf("waiting for %s (SR1 %s): %w", what, regs.Flags(regs.SR1, sr1), twowire.ErrProtocolViolation)
		}
		if sr1&flags != 0 {
			return nil
		}
	}
	return fmt.Errorf("waiting for %s after %d polls: %w", what, m.config.PollLimit, twowire.ErrBusTimeout)
}

func (m *Master) poll(what string, done func() bool) error {
	for i := 0; i < m.config.PollLimit; i++ {
		if done() {
			return nil
		}
	}
	return fmt.Errorf("waiting for %s after %d polls: %w", what, m.config.PollLimit, twowire.ErrBusTimeout)
}

// abort brings the controller back to idle after a failed transaction: stop
// if the bus is still owned, POS off, acknowledge on.
func (m *Master) abort() {
	regs.Clear(m.bus, regs.CR1, regs.CR1_START|regs.CR1_POS)
	if m.bus.Load(regs.SR2)&regs.SR2_MSL != 0 {
		if err := m.GenerateStop(); err != nil {
			m.log.Warn("stop not confirmed while aborting transaction", "error", err)
		}
	}
	regs.Set(m.bus, regs.CR1, regs.CR1_ACK)
}
