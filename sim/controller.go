// Package sim simulates the I2C controller and the devices hanging off the
// bus, so the sequencers can run (and be checked) without silicon.
//
// Bus time only advances when SR1 is read: the CPU is busy-polling while the
// hardware clocks bits, so every SR1 load lets the bus make one step (finish
// an address phase or one byte). Register accesses done back to back without
// an SR1 poll in between, like the ones inside a masked window, therefore
// happen "instantly" from the bus point of view.
package sim

import (
	"fmt"
	"sync"

	"github.com/mklimuk/twowire/irq"
	"github.com/mklimuk/twowire/regs"
)

type phase int

const (
	phaseIdle phase = iota
	phaseStart
	phaseAddress
	phaseAddressed
	phaseReceive
	phaseTransmit
	phaseNacked
)

const clearOnWriteZero = regs.SR1_AF | regs.SR1_BERR | regs.SR1_ARLO

// Target is a device on the simulated bus.
type Target interface {
	Addr() uint8
	// Begin is called on the address phase; returning false NACKs the address.
	Begin(read bool) bool
	// Write delivers a byte from the master and reports whether the target ACKs it.
	Write(b byte) bool
	// Read supplies the next byte to the master.
	Read() byte
	// End is called when the master generates the stop condition.
	End()
}

type Opt func(*Controller)

// WithTarget attaches a device to the bus.
func WithTarget(t Target) Opt {
	return func(c *Controller) {
		c.targets[t.Addr()] = t
	}
}

// WithStuckStart makes the controller ignore start requests, as it does when
// the bus lines are held low.
func WithStuckStart() Opt {
	return func(c *Controller) {
		c.stuckStart = true
	}
}

// WithHungAddress makes the address phase towards addr never complete.
func WithHungAddress(addr uint8) Opt {
	return func(c *Controller) {
		c.hung[addr] = true
	}
}

// Controller implements regs.File and irq.Masker over a simulated bus and
// records every access in order.
type Controller struct {
	mx sync.Mutex

	cr1, cr2, oar1, oar2, ccr, trise uint16
	sr1, sr2                         uint16

	dr        byte
	shift     byte
	shiftFull bool
	txByte    byte
	txPending bool
	addrByte  byte

	sr1Read     bool
	stopPending bool
	linkAck     bool
	posAck      bool
	reading     bool
	phase       phase
	target      Target

	targets    map[uint8]Target
	hung       map[uint8]bool
	stuckStart bool

	masked     int
	events     []Event
	violations []string
}

var _ regs.File = &Controller{}
var _ irq.Masker = &Controller{}

func New(opts ...Opt) *Controller {
	c := &Controller{
		targets: make(map[uint8]Target),
		hung:    make(map[uint8]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach adds a device after construction.
func (c *Controller) Attach(t Target) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.targets[t.Addr()] = t
}

// Target returns the device attached at addr.
func (c *Controller) Target(addr uint8) (Target, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()
	t, ok := c.targets[addr]
	return t, ok
}

func (c *Controller) Load(r regs.Register) uint16 {
	c.mx.Lock()
	defer c.mx.Unlock()
	var v uint16
	switch r {
	case regs.CR1:
		v = c.cr1
	case regs.CR2:
		v = c.cr2
	case regs.OAR1:
		v = c.oar1
	case regs.OAR2:
		v = c.oar2
	case regs.CCR:
		v = c.ccr
	case regs.TRISE:
		v = c.trise
	case regs.SR1:
		c.step()
		c.sr1Read = true
		v = c.sr1
	case regs.SR2:
		v = c.sr2
		if c.sr1Read && c.sr1&regs.SR1_ADDR != 0 {
			c.clearAddr()
		}
		c.sr1Read = false
	case regs.DR:
		v = uint16(c.readDR())
	}
	c.record(Event{Kind: EvLoad, Reg: r, Value: v})
	return v
}

func (c *Controller) Store(r regs.Register, v uint16) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.record(Event{Kind: EvStore, Reg: r, Value: v})
	switch r {
	case regs.CR1:
		c.storeCR1(v)
	case regs.CR2:
		c.cr2 = v
	case regs.OAR1:
		c.oar1 = v
	case regs.OAR2:
		c.oar2 = v
	case regs.CCR:
		c.ccr = v
	case regs.TRISE:
		c.trise = v
	case regs.SR1:
		c.sr1 &= v | ^clearOnWriteZero
	case regs.SR2:
		// read only
	case regs.DR:
		c.writeDR(byte(v))
	}
}

func (c *Controller) Disable() irq.State {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.masked++
	c.record(Event{Kind: EvMask})
	return irq.State(0)
}

func (c *Controller) Restore(irq.State) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.masked == 0 {
		c.violate("interrupts restored without being masked")
	} else {
		c.masked--
	}
	c.record(Event{Kind: EvUnmask})
}

func (c *Controller) storeCR1(v uint16) {
	old := c.cr1
	c.cr1 = v
	if v&regs.CR1_PE == 0 {
		// ACK, START and STOP are hardware-cleared while the peripheral is off
		c.cr1 &^= regs.CR1_ACK | regs.CR1_START | regs.CR1_STOP
		return
	}
	if v&regs.CR1_START != 0 {
		c.generateStart()
	}
	if v&regs.CR1_STOP != 0 && old&regs.CR1_STOP == 0 {
		c.requestStop()
	}
}

func (c *Controller) generateStart() {
	if c.stuckStart {
		return
	}
	c.cr1 &^= regs.CR1_START
	c.sr1 &^= regs.SR1_ADDR | regs.SR1_BTF | regs.SR1_TXE | regs.SR1_AF
	c.sr1 |= regs.SR1_SB
	c.sr2 |= regs.SR2_MSL | regs.SR2_BUSY
	c.sr2 &^= regs.SR2_TRA
	c.stopPending = false
	c.txPending = false
	c.phase = phaseStart
	c.record(Event{Kind: EvStart})
}

func (c *Controller) requestStop() {
	switch {
	case c.phase == phaseReceive && c.linkAck && !c.shiftFull:
		// a byte is on the wire; stop goes out once it is in
		c.stopPending = true
	case c.phase == phaseTransmit && c.txPending:
		c.stopPending = true
	default:
		c.generateStop()
	}
}

func (c *Controller) generateStop() {
	c.cr1 &^= regs.CR1_STOP
	c.stopPending = false
	if c.sr2&regs.SR2_MSL == 0 {
		return
	}
	if c.phase == phaseReceive && c.linkAck {
		c.violate("last received byte was acknowledged before stop")
	}
	c.sr2 &^= regs.SR2_MSL | regs.SR2_BUSY | regs.SR2_TRA
	c.sr1 &^= regs.SR1_TXE | regs.SR1_SB | regs.SR1_ADDR
	if c.target != nil {
		c.target.End()
		c.target = nil
	}
	c.phase = phaseIdle
	c.record(Event{Kind: EvStop})
}

func (c *Controller) step() {
	switch c.phase {
	case phaseAddress:
		c.addressPhase()
	case phaseReceive:
		c.receive()
	case phaseTransmit:
		c.transmit()
	}
}

func (c *Controller) addressPhase() {
	addr := c.addrByte >> 1
	read := c.addrByte&0x01 == 1
	if c.hung[addr] {
		return
	}
	t, ok := c.targets[addr]
	ack := ok && t.Begin(read)
	c.record(Event{Kind: EvAddress, Value: uint16(c.addrByte), Ack: ack})
	if !ack {
		c.sr1 |= regs.SR1_AF
		c.phase = phaseNacked
		return
	}
	c.target = t
	c.reading = read
	c.sr1 |= regs.SR1_ADDR
	if !read {
		c.sr2 |= regs.SR2_TRA
	}
	c.phase = phaseAddressed
}

func (c *Controller) clearAddr() {
	c.sr1 &^= regs.SR1_ADDR
	if c.reading {
		c.phase = phaseReceive
		c.linkAck = true
		c.posAck = c.cr1&regs.CR1_ACK != 0
		return
	}
	c.phase = phaseTransmit
	c.sr1 |= regs.SR1_TXE
}

func (c *Controller) receive() {
	if c.shiftFull || !c.linkAck {
		return
	}
	b := c.target.Read()
	ackBit := c.cr1&regs.CR1_ACK != 0
	ack := ackBit
	if c.cr1&regs.CR1_POS != 0 {
		// POS moves the ACK decision one byte ahead
		ack = c.posAck
	}
	c.posAck = ackBit
	c.linkAck = ack
	c.record(Event{Kind: EvByteIn, Value: uint16(b), Ack: ack})
	if c.sr1&regs.SR1_RXNE == 0 {
		c.dr = b
		c.sr1 |= regs.SR1_RXNE
	} else {
		c.shift = b
		c.shiftFull = true
		c.sr1 |= regs.SR1_BTF
	}
	if c.stopPending {
		c.generateStop()
	}
}

func (c *Controller) transmit() {
	if !c.txPending {
		return
	}
	c.txPending = false
	ack := c.target.Write(c.txByte)
	c.record(Event{Kind: EvByteOut, Value: uint16(c.txByte), Ack: ack})
	if !ack {
		c.sr1 |= regs.SR1_AF
		c.phase = phaseNacked
		return
	}
	c.sr1 |= regs.SR1_TXE | regs.SR1_BTF
	if c.stopPending {
		c.generateStop()
	}
}

func (c *Controller) readDR() byte {
	if c.sr1&regs.SR1_RXNE == 0 {
		c.violate("data register read while empty")
		return c.dr
	}
	v := c.dr
	if c.shiftFull {
		c.dr = c.shift
		c.shiftFull = false
		c.sr1 &^= regs.SR1_BTF
	} else {
		c.sr1 &^= regs.SR1_RXNE | regs.SR1_BTF
	}
	return v
}

func (c *Controller) writeDR(b byte) {
	switch c.phase {
	case phaseStart:
		if c.sr1&regs.SR1_SB == 0 || !c.sr1Read {
			c.violate("address written before start condition was acknowledged")
			return
		}
		c.sr1 &^= regs.SR1_SB
		c.addrByte = b
		c.phase = phaseAddress
	case phaseTransmit:
		c.txByte = b
		c.txPending = true
		c.sr1 &^= regs.SR1_TXE | regs.SR1_BTF
	default:
		c.violate(fmt.Sprintf("data register written outside transmit phase (0x%02x)", b))
	}
}

func (c *Controller) violate(msg string) {
	c.violations = append(c.violations, msg)
}

func (c *Controller) record(e Event) {
	e.Masked = c.masked > 0
	c.events = append(c.events, e)
}
