package sim

import (
	"encoding/binary"
	"sync"
)

const TMP102Address = 0x48

const (
	tmp102RegTemperature = iota
	tmp102RegConfiguration
	tmp102RegLimitLow
	tmp102RegLimitHigh
)

// TMP102 models the TI temperature sensor: a pointer register selects one of
// four 16-bit big-endian registers.
type TMP102 struct {
	mx      sync.Mutex
	address uint8
	pointer byte
	regs    [4]uint16
	index   int
	first   bool
}

func NewTMP102(address uint8) *TMP102 {
	t := &TMP102{address: address}
	// power-on values from the datasheet
	t.regs[tmp102RegConfiguration] = 0x60A0
	t.regs[tmp102RegLimitLow] = 0x4B00
	t.regs[tmp102RegLimitHigh] = 0x5000
	return t
}

// SetTemperature stores a reading in 12-bit, 0.0625 °C resolution.
func (t *TMP102) SetTemperature(celsius float64) {
	t.mx.Lock()
	defer t.mx.Unlock()
	raw := int16(celsius / 0.0625)
	t.regs[tmp102RegTemperature] = uint16(raw << 4)
}

// Register returns the raw content of register reg.
func (t *TMP102) Register(reg byte) uint16 {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.regs[reg&0x03]
}

func (t *TMP102) Addr() uint8 {
	return t.address
}

func (t *TMP102) Begin(read bool) bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.index = 0
	t.first = !read
	return true
}

func (t *TMP102) Write(b byte) bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.first {
		t.pointer = b & 0x03
		t.first = false
		return true
	}
	if t.pointer == tmp102RegTemperature {
		// read only, the device still acknowledges
		return true
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], t.regs[t.pointer])
	buf[t.index%2] = b
	t.regs[t.pointer] = binary.BigEndian.Uint16(buf[:])
	t.index++
	return true
}

func (t *TMP102) Read() byte {
	t.mx.Lock()
	defer t.mx.Unlock()
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], t.regs[t.pointer])
	b := buf[t.index%2]
	t.index++
	return b
}

func (t *TMP102) End() {}
