// Package regs describes the register file of an STM32F1-class I2C
// controller: register identifiers, bit fields and standard-mode timing.
//
// The sequencers never touch memory directly; they go through File, which is
// backed by memory-mapped registers on the target (see mmio_tinygo.go) and by
// the simulator everywhere else.
package regs

import (
	"fmt"
	"strings"
)

type Register int

const (
	CR1 Register = iota
	CR2
	OAR1
	OAR2
	DR
	SR1
	SR2
	CCR
	TRISE
)

var registerNames = map[Register]string{
	CR1:   "CR1",
	CR2:   "CR2",
	OAR1:  "OAR1",
	OAR2:  "OAR2",
	DR:    "DR",
	SR1:   "SR1",
	SR2:   "SR2",
	CCR:   "CCR",
	TRISE: "TRISE",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REG(%d)", int(r))
}

// Offset returns the byte offset of the register from the peripheral base.
func (r Register) Offset() uintptr {
	return uintptr(r) * 4
}

// CR1 fields
const (
	CR1_PE    uint16 = 0x0001
	CR1_START uint16 = 0x0100
	CR1_STOP  uint16 = 0x0200
	CR1_ACK   uint16 = 0x0400
	CR1_POS   uint16 = 0x0800
	CR1_SWRST uint16 = 0x8000
)

// CR2 fields
const (
	CR2_FREQ uint16 = 0x003F
)

// SR1 fields
const (
	SR1_SB   uint16 = 0x0001 // start condition latched
	SR1_ADDR uint16 = 0x0002 // address phase complete
	SR1_BTF  uint16 = 0x0004 // byte transfer finished
	SR1_RXNE uint16 = 0x0040 // receive buffer not empty
	SR1_TXE  uint16 = 0x0080
	SR1_BERR uint16 = 0x0100
	SR1_ARLO uint16 = 0x0200
	SR1_AF   uint16 = 0x0400 // acknowledge failure
)

// SR2 fields
const (
	SR2_MSL  uint16 = 0x0001
	SR2_BUSY uint16 = 0x0002
	SR2_TRA  uint16 = 0x0004
)

// File gives access to the controller registers. Loads of SR1, SR2 and DR
// have side effects on real silicon, so implementations must not cache.
type File interface {
	Load(r Register) uint16
	Store(r Register, value uint16)
}

// Set ORs mask into register r.
func Set(f File, r Register, mask uint16) {
	f.Store(r, f.Load(r)|mask)
}

// Clear removes mask from register r.
func Clear(f File, r Register, mask uint16) {
	f.Store(r, f.Load(r)&^mask)
}

// IsSet reports whether any bit of mask is set in register r.
func IsSet(f File, r Register, mask uint16) bool {
	return f.Load(r)&mask != 0
}

type field struct {
	mask uint16
	name string
}

var fieldNames = map[Register][]field{
	CR1: {{CR1_PE, "PE"}, {CR1_START, "START"}, {CR1_STOP, "STOP"}, {CR1_ACK, "ACK"}, {CR1_POS, "POS"}, {CR1_SWRST, "SWRST"}},
	SR1: {{SR1_SB, "SB"}, {SR1_ADDR, "ADDR"}, {SR1_BTF, "BTF"}, {SR1_RXNE, "RXNE"}, {SR1_TXE, "TXE"}, {SR1_BERR, "BERR"}, {SR1_ARLO, "ARLO"}, {SR1_AF, "AF"}},
	SR2: {{SR2_MSL, "MSL"}, {SR2_BUSY, "BUSY"}, {SR2_TRA, "TRA"}},
}

// Flags renders the set bits of a control or status value for logs.
// Registers without named fields are rendered as hex.
func Flags(r Register, value uint16) string {
	fields, ok := fieldNames[r]
	if !ok {
		return fmt.Sprintf("%#x", value)
	}
	var parts []string
	for _, f := range fields {
		if value&f.mask != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}
