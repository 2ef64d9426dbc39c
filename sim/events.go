package sim

import (
	"fmt"

	"github.com/mklimuk/twowire/regs"
)

type EventKind int

const (
	EvLoad EventKind = iota
	EvStore
	EvMask
	EvUnmask
	EvStart
	EvAddress
	EvByteIn
	EvByteOut
	EvStop
)

var kindNames = map[EventKind]string{
	EvLoad:    "load",
	EvStore:   "store",
	EvMask:    "mask",
	EvUnmask:  "unmask",
	EvStart:   "start",
	EvAddress: "address",
	EvByteIn:  "byte-in",
	EvByteOut: "byte-out",
	EvStop:    "stop",
}

func (k EventKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one entry of the controller trace. Register accesses carry Reg
// and Value; bus events carry the byte in Value and the acknowledge bit.
type Event struct {
	Kind   EventKind
	Reg    regs.Register
	Value  uint16
	Ack    bool
	Masked bool
}

// IsBus reports whether the event happened on the wires rather than in a register.
func (e Event) IsBus() bool {
	switch e.Kind {
	case EvStart, EvAddress, EvByteIn, EvByteOut, EvStop:
		return true
	}
	return false
}

func (e Event) String() string {
	var s string
	switch e.Kind {
	case EvLoad, EvStore:
		s = fmt.Sprintf("%-6s %-5s %s", e.Kind, e.Reg, regs.Flags(e.Reg, e.Value))
	case EvAddress, EvByteIn, EvByteOut:
		ack := "NACK"
		if e.Ack {
			ack = "ACK"
		}
		s = fmt.Sprintf("%-6s 0x%02x %s", e.Kind, e.Value, ack)
	default:
		s = e.Kind.String()
	}
	if e.Masked {
		s += " [masked]"
	}
	return s
}

// Events returns a copy of the trace.
func (c *Controller) Events() []Event {
	c.mx.Lock()
	defer c.mx.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// BusEvents returns the part of the trace that happened on the wires.
func (c *Controller) BusEvents() []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.IsBus() {
			out = append(out, e)
		}
	}
	return out
}

// Violations lists bus misuse observed so far.
func (c *Controller) Violations() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]string(nil), c.violations...)
}

// Masked reports whether a critical section is currently open.
func (c *Controller) Masked() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.masked > 0
}

// ResetTrace drops recorded events and violations, keeping register state.
func (c *Controller) ResetTrace() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.events = nil
	c.violations = nil
}
