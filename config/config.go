// Package config holds the settings of the twowire tool, read from a YAML file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/twowire/regs"
	"github.com/mklimuk/twowire/sink"
)

const (
	BackendSim     = "sim"
	BackendPeriph  = "periph"
	BackendMCP2221 = "mcp2221"

	TargetMemory = "memory"
	TargetTMP102 = "tmp102"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Bus   Bus   `yaml:"bus"`
	Relay Relay `yaml:"relay"`
	Sim   Sim   `yaml:"sim"`
}

type Bus struct {
	Backend string `yaml:"backend"`
	// Device is the host bus name used by the periph backend, e.g. "1" or "/dev/i2c-1".
	Device       string `yaml:"device,omitempty"`
	Name         string `yaml:"name"`
	ClockHz      uint32 `yaml:"clock_hz"`
	SpeedHz      uint32 `yaml:"speed_hz"`
	PollLimit    int    `yaml:"poll_limit"`
	SinkCapacity int    `yaml:"sink_capacity"`
}

type Relay struct {
	Port     string        `yaml:"port,omitempty"`
	Baud     int           `yaml:"baud"`
	Interval time.Duration `yaml:"interval"`
}

type Sim struct {
	Targets []Target `yaml:"targets"`
}

type Target struct {
	Kind        string  `yaml:"kind"`
	Address     uint8   `yaml:"address"`
	Response    Hex     `yaml:"response,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// Hex is a byte string written as hex digits, optionally space separated.
type Hex []byte

func ParseHex(s string) (Hex, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("could not parse hex %q: %w", s, err)
	}
	return b, nil
}

func (h Hex) String() string {
	return fmt.Sprintf("% x", []byte(h))
}

func (h *Hex) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: hex bytes must be a string", value.Line)
	}
	b, err := ParseHex(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*h = b
	return nil
}

func (h Hex) MarshalYAML() (interface{}, error) {
	return h.String(), nil
}

func Default() Config {
	return Config{
		Bus: Bus{
			Backend:      BackendSim,
			Name:         "I2C1",
			ClockHz:      regs.DefaultPeripheralClockHz,
			SpeedHz:      regs.StandardModeMaxHz,
			PollLimit:    100_000,
			SinkCapacity: sink.DefaultCapacity,
		},
		Relay: Relay{
			Baud:     115200,
			Interval: 100 * time.Millisecond,
		},
		Sim: Sim{
			Targets: []Target{
				{Kind: TargetTMP102, Address: 0x48, Temperature: 21.5},
				{Kind: TargetMemory, Address: 0x78, Response: Hex{0xDE, 0xAD, 0xBE, 0xEF}},
			},
		},
	}
}

// Load reads the file at path over the defaults. A missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("could not open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("could not decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	return enc.Close()
}

func (c Config) Validate() error {
	switch c.Bus.Backend {
	case BackendSim, BackendMCP2221:
	case BackendPeriph:
		if c.Bus.Device == "" {
			return fmt.Errorf("%w: periph backend needs a device", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Bus.Backend)
	}
	if _, err := c.Timing(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Bus.PollLimit < 1 {
		return fmt.Errorf("%w: poll limit must be positive", ErrInvalidConfig)
	}
	if c.Bus.SinkCapacity < 1 {
		return fmt.Errorf("%w: sink capacity must be positive", ErrInvalidConfig)
	}
	if c.Relay.Baud < 1 {
		return fmt.Errorf("%w: relay baud rate must be positive", ErrInvalidConfig)
	}
	if c.Relay.Interval <= 0 {
		return fmt.Errorf("%w: relay interval must be positive", ErrInvalidConfig)
	}
	seen := make(map[uint8]bool)
	for _, t := range c.Sim.Targets {
		if t.Address > 0x7F {
			return fmt.Errorf("%w: target address %#x out of range", ErrInvalidConfig, t.Address)
		}
		if seen[t.Address] {
			return fmt.Errorf("%w: two targets at 0x%02x", ErrInvalidConfig, t.Address)
		}
		seen[t.Address] = true
		switch t.Kind {
		case TargetMemory, TargetTMP102:
		default:
			return fmt.Errorf("%w: unknown target kind %q", ErrInvalidConfig, t.Kind)
		}
	}
	return nil
}

// Timing derives the controller timing from the clock and speed settings.
func (c Config) Timing() (regs.Timing, error) {
	return regs.StandardMode(c.Bus.ClockHz, c.Bus.SpeedHz)
}
