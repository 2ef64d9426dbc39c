// Package master drives an STM32F1-class I2C controller in master mode.
//
// A Master is the handle of one controller. It runs one transaction at a
// time and never queues: a second caller gets twowire.ErrBusBusy. Every wait
// on the hardware is a bounded poll, so a dead bus ends in
// twowire.ErrBusTimeout instead of a hang.
package master

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/irq"
	"github.com/mklimuk/twowire/regs"
)

// DefaultPollLimit bounds every status wait. At 100 kHz a byte takes ~90 µs;
// the bound leaves a wide margin on a 72 MHz core.
const DefaultPollLimit = 100_000

const maxAddress = 0x7F

type Direction uint8

const (
	DirWrite Direction = 0
	DirRead  Direction = 1
)

func (d Direction) String() string {
	if d == DirRead {
		return "read"
	}
	return "write"
}

type Opts struct {
	Name      string
	PollLimit int
	Timing    regs.Timing
	Masker    irq.Masker
	Logger    *slog.Logger
}

type Opt func(*Opts)

func WithName(name string) Opt {
	return func(o *Opts) {
		o.Name = name
	}
}

// WithPollLimit sets how many status reads a wait may take before it gives up.
func WithPollLimit(n int) Opt {
	return func(o *Opts) {
		o.PollLimit = n
	}
}

func WithTiming(t regs.Timing) Opt {
	return func(o *Opts) {
		o.Timing = t
	}
}

// WithMasker replaces the platform interrupt mask used around the errata windows.
func WithMasker(m irq.Masker) Opt {
	return func(o *Opts) {
		o.Masker = m
	}
}

func WithLogger(l *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = l
	}
}

type Master struct {
	mx     sync.Mutex
	regs   regs.File
	bus    regs.File // regs, or a tracing wrapper for the current transaction
	config Opts
	log    *slog.Logger

	// set when the last status wait ended on an acknowledge failure
	lastNACK bool
}

func New(file regs.File, opts ...Opt) *Master {
	config := Opts{
		Name:      "I2C1",
		PollLimit: DefaultPollLimit,
		Timing:    regs.DefaultTiming(),
		Masker:    irq.Global(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.PollLimit < 1 {
		config.PollLimit = DefaultPollLimit
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Master{
		regs:   file,
		bus:    file,
		config: config,
		log:    logger.With("bus", config.Name),
	}
}

// Init programs the bus timing and enables the controller with acknowledge
// on, which is the idle state every transaction expects and restores.
func (m *Master) Init() error {
	if !m.mx.TryLock() {
		return twowire.ErrBusBusy
	}
	defer m.mx.Unlock()
	if err := m.program(m.config.Timing); err != nil {
		return err
	}
	m.log.Debug("controller enabled", "speed", m.config.Timing.SpeedHz(), "ccr", m.config.Timing.CCR)
	return nil
}

func (m *Master) program(t regs.Timing) error {
	if t.CCR < 4 || t.Freq == 0 {
		return fmt.Errorf("%w: %+v", regs.ErrInvalidTiming, t)
	}
	regs.Clear(m.regs, regs.CR1, regs.CR1_PE)
	t.Program(m.regs)
	regs.Set(m.regs, regs.CR1, regs.CR1_PE)
	// ACK is held clear by hardware while PE is off
	regs.Set(m.regs, regs.CR1, regs.CR1_ACK)
	m.config.Timing = t
	return nil
}

func (m *Master) String() string {
	return m.config.Name
}

// SetSpeed reprograms the clock control registers. Only standard mode is
// supported.
func (m *Master) SetSpeed(f physic.Frequency) error {
	if !m.mx.TryLock() {
		return twowire.ErrBusBusy
	}
	defer m.mx.Unlock()
	t, err := regs.StandardMode(uint32(m.config.Timing.Freq)*1_000_000, uint32(f/physic.Hertz))
	if err != nil {
		return fmt.Errorf("could not set speed %s: %w", f, err)
	}
	return m.program(t)
}

// Timing returns the timing currently programmed.
func (m *Master) Timing() regs.Timing {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.config.Timing
}

// IsTimeout reports whether err came from a status poll running out.
func IsTimeout(err error) bool {
	return errors.Is(err, twowire.ErrBusTimeout)
}

func isAbsent(err error) bool {
	return errors.Is(err, twowire.ErrNoSuchDevice)
}
