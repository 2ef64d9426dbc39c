package master

import (
	"context"
	"fmt"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/busctx"
	"github.com/mklimuk/twowire/irq"
	"github.com/mklimuk/twowire/regs"
)

// readProtocol is one of the three receive sequences. The controller needs a
// different ordering of ACK, POS and STOP depending on how many bytes are
// left, so the sequence is picked from the request size up front.
type readProtocol interface {
	perform(m *Master, rx *receiver) error
	String() string
}

func selectReadProtocol(n int) readProtocol {
	switch n {
	case 1:
		return singleByte{}
	case 2:
		return doubleByte{}
	default:
		return bulkRead{n: n}
	}
}

// receiver moves bytes from the data register to the sink. A sink error does
// not stop the sequence: the bus transaction has to complete either way.
type receiver struct {
	dst  twowire.ByteSink
	n    int
	err  error
	data []byte // only kept when tracing
}

func (r *receiver) take(m *Master) {
	b := byte(m.bus.Load(regs.DR))
	r.n++
	if r.data != nil {
		r.data = append(r.data, b)
	}
	if err := r.dst.Push(b); err != nil && r.err == nil {
		r.err = err
	}
}

type singleByte struct{}

func (singleByte) String() string { return "single-byte" }

func (singleByte) perform(m *Master, rx *receiver) error {
	regs.Clear(m.bus, regs.CR1, regs.CR1_ACK)
	err := irq.Critical(m.config.Masker, func() error {
		if err := m.clearAddress(); err != nil {
			return err
		}
		regs.Set(m.bus, regs.CR1, regs.CR1_STOP)
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.waitStatus(regs.SR1_RXNE, "data byte"); err != nil {
		return err
	}
	rx.take(m)
	if err := m.waitStopSent(); err != nil {
		return err
	}
	regs.Set(m.bus, regs.CR1, regs.CR1_ACK)
	return nil
}

type doubleByte struct{}

func (doubleByte) String() string { return "double-byte" }

func (doubleByte) perform(m *Master, rx *receiver) error {
	// with POS the ACK bit applies to the byte after the one being received,
	// so clearing it right after ADDR NACKs the second byte
	regs.Set(m.bus, regs.CR1, regs.CR1_POS)
	err := irq.Critical(m.config.Masker, func() error {
		if err := m.clearAddress(); err != nil {
			return err
		}
		regs.Clear(m.bus, regs.CR1, regs.CR1_ACK)
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.waitStatus(regs.SR1_BTF, "both bytes"); err != nil {
		return err
	}
	irq.Do(m.config.Masker, func() {
		regs.Set(m.bus, regs.CR1, regs.CR1_STOP)
		rx.take(m)
	})
	rx.take(m)
	if err := m.waitStopSent(); err != nil {
		return err
	}
	regs.Clear(m.bus, regs.CR1, regs.CR1_POS)
	regs.Set(m.bus, regs.CR1, regs.CR1_ACK)
	return nil
}

type bulkRead struct {
	n int
}

func (b bulkRead) String() string { return fmt.Sprintf("bulk(%d)", b.n) }

// steady is the number of bytes read before the three byte tail.
func (b bulkRead) steady() int {
	return b.n - 3
}

func (b bulkRead) perform(m *Master, rx *receiver) error {
	if err := m.clearAddress(); err != nil {
		return err
	}
	for i := 0; i < b.steady(); i++ {
		if err := m.waitStatus(regs.SR1_BTF, "data byte"); err != nil {
			return err
		}
		rx.take(m)
	}
	// N-2 in DR, N-1 in the shift register, clock stretched
	if err := m.waitStatus(regs.SR1_BTF, "tail bytes"); err != nil {
		return err
	}
	regs.Clear(m.bus, regs.CR1, regs.CR1_ACK)
	irq.Do(m.config.Masker, func() {
		rx.take(m)
		regs.Set(m.bus, regs.CR1, regs.CR1_STOP)
		rx.take(m)
	})
	if err := m.waitStatus(regs.SR1_RXNE, "last byte"); err != nil {
		return err
	}
	rx.take(m)
	if err := m.waitStopSent(); err != nil {
		return err
	}
	regs.Set(m.bus, regs.CR1, regs.CR1_ACK)
	return nil
}

// Read receives exactly n bytes from the device at address into dst. The
// request is validated before the controller is touched. On return the
// controller is idle with acknowledge enabled, whatever the outcome.
func (m *Master) Read(ctx context.Context, address uint8, n int, dst twowire.ByteSink) error {
	if address > maxAddress {
		return fmt.Errorf("read from 0x%02x: %w", address, twowire.ErrInvalidAddress)
	}
	if n < 1 {
		return fmt.Errorf("read %d bytes: %w", n, twowire.ErrInvalidLength)
	}
	if space := dst.Space(); n > space {
		return fmt.Errorf("read %d bytes into a sink with room for %d: %w", n, space, twowire.ErrOverflowRequest)
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

	proto := selectReadProtocol(n)
	log := m.log.With("addr", fmt.Sprintf("0x%02x", address), "protocol", proto.String())
	if target := busctx.Target(ctx); target != "" {
		log = log.With("target", target)
	}
	rx := &receiver{dst: dst}
	if busctx.IsVerbose(ctx) {
		rx.data = make([]byte, 0, n)
	}

	err := m.GenerateStart()
	if err == nil {
		err = m.SendAddress(address, DirRead)
	}
	if err == nil {
		err = proto.perform(m, rx)
	}
	if err == nil {
		err = m.checkDrained()
	}
	if err != nil {
		m.abort()
		log.Debug("read failed", "received", rx.n, "error", err)
		return fmt.Errorf("read %d bytes from 0x%02x: %w", n, address, err)
	}
	log.Debug("read complete", "count", rx.n, "data", fmt.Sprintf("% x", rx.data))
	if rx.err != nil {
		return fmt.Errorf("read from 0x%02x: sink rejected data: %w", address, rx.err)
	}
	return nil
}

// checkDrained fails when a byte is still waiting in the data register after
// the stop, which means the controller received more than was asked for.
func (m *Master) checkDrained() error {
	sr1 := m.bus.Load(regs.SR1)
	if sr1&regs.SR1_RXNE != 0 {
		return fmt.Errorf("data register not empty after stop (SR1 %s): %w", regs.Flags(regs.SR1, sr1), twowire.ErrProtocolViolation)
	}
	return nil
}
