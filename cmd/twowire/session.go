package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	periphi2c "periph.io/x/conn/v3/i2c"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/adapter"
	"github.com/mklimuk/twowire/config"
	"github.com/mklimuk/twowire/i2c"
	"github.com/mklimuk/twowire/master"
	"github.com/mklimuk/twowire/sim"
)

// Bus is what the commands need from a backend: addressed transactions and
// the raw transfer used by device drivers.
type Bus interface {
	twowire.Bus
	Tx(addr uint16, w, r []byte) error
}

type session struct {
	bus    Bus
	master *master.Master
	sim    *sim.Controller
	close  func() error
}

func openSession(cfg config.Config) (*session, error) {
	switch cfg.Bus.Backend {
	case config.BackendSim:
		timing, err := cfg.Timing()
		if err != nil {
			return nil, err
		}
		c := newSimController(cfg.Sim)
		m := master.New(c,
			master.WithName(cfg.Bus.Name),
			master.WithPollLimit(cfg.Bus.PollLimit),
			master.WithTiming(timing),
			master.WithMasker(c),
		)
		if err := m.Init(); err != nil {
			return nil, fmt.Errorf("could not init %s: %w", cfg.Bus.Name, err)
		}
		c.ResetTrace()
		return &session{bus: m, master: m, sim: c, close: func() error { return nil }}, nil
	case config.BackendPeriph:
		b, err := i2c.NewGenericBus(cfg.Bus.Device)
		if err != nil {
			return nil, err
		}
		return &session{bus: b, close: b.Close}, nil
	case config.BackendMCP2221:
		a := adapter.NewMCP2221()
		return &session{bus: a, close: func() error { return nil }}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Bus.Backend)
}

func newSimController(s config.Sim) *sim.Controller {
	opts := make([]sim.Opt, 0, len(s.Targets))
	for _, t := range s.Targets {
		switch t.Kind {
		case config.TargetTMP102:
			dev := sim.NewTMP102(t.Address)
			dev.SetTemperature(t.Temperature)
			opts = append(opts, sim.WithTarget(dev))
		case config.TargetMemory:
			opts = append(opts, sim.WithTarget(sim.NewMemory(t.Address, t.Response...)))
		}
	}
	return sim.New(opts...)
}

func (s *session) Close() error {
	return s.close()
}

// respond scripts the simulated device at addr to answer with data.
func (s *session) respond(addr uint8, data []byte) error {
	if s.sim == nil {
		return errors.New("scripted responses need the sim backend")
	}
	t, ok := s.sim.Target(addr)
	if !ok {
		s.sim.Attach(sim.NewMemory(addr, data...))
		return nil
	}
	mem, ok := t.(*sim.Memory)
	if !ok {
		return fmt.Errorf("device at 0x%02x does not take scripted responses", addr)
	}
	mem.Queue(data...)
	return nil
}

// read receives n bytes into dst, through the sequencer when the backend is
// the register-level master.
func (s *session) read(ctx context.Context, addr uint8, n int, dst twowire.ByteSink) error {
	if s.master != nil {
		return s.master.Read(ctx, addr, n, dst)
	}
	if n > dst.Space() {
		return twowire.ErrOverflowRequest
	}
	buf := make([]byte, n)
	if err := s.bus.ReadFromAddr(ctx, addr, buf); err != nil {
		return err
	}
	for _, b := range buf {
		if err := dst.Push(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) scan(ctx context.Context) ([]uint8, error) {
	if s.master != nil {
		return s.master.Scan(ctx)
	}
	var found []uint8
	probe := make([]byte, 1)
	for addr := uint8(0x08); addr < 0x78; addr++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if err := s.bus.ReadFromAddr(ctx, addr, probe); err != nil {
			slog.Debug("no answer", "addr", fmt.Sprintf("0x%02x", addr), "error", err)
			continue
		}
		found = append(found, addr)
	}
	return found, nil
}

func (s *session) trace() []sim.Event {
	if s.sim == nil {
		return nil
	}
	return s.sim.Events()
}

func parseAddress(v string) (uint8, error) {
	var a periphi2c.Addr
	if err := a.Set(v); err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", v, err)
	}
	if a > 0x7F {
		return 0, fmt.Errorf("address %s: %w", a, twowire.ErrInvalidAddress)
	}
	return uint8(a), nil
}
