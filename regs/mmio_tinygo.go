//go:build tinygo && stm32f103

package regs

import (
	"runtime/volatile"
	"unsafe"
)

const i2c1Base uintptr = 0x4000_5400

type mmio struct {
	base uintptr
}

// I2C1 returns the register file of the first controller (PB8/PB9 when remapped).
func I2C1() File {
	return mmio{base: i2c1Base}
}

func (m mmio) reg(r Register) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(m.base + r.Offset()))
}

func (m mmio) Load(r Register) uint16 {
	return uint16(m.reg(r).Get())
}

func (m mmio) Store(r Register, value uint16) {
	m.reg(r).Set(uint32(value))
}
