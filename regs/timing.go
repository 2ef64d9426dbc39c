package regs

import (
	"errors"
	"fmt"
)

const (
	StandardModeMaxHz = 100_000
	// DefaultPeripheralClockHz is the APB1 clock the controller sees on a 72 MHz F103.
	DefaultPeripheralClockHz = 36_000_000

	minFreqMHz = 2
	maxFreqMHz = 36
	minCCR     = 4
	maxCCR     = 0x0FFF
)

var ErrInvalidTiming = errors.New("invalid bus timing")

// Timing holds the values programmed into CR2, CCR and TRISE.
type Timing struct {
	Freq  uint16 `yaml:"freq"`
	CCR   uint16 `yaml:"ccr"`
	TRISE uint16 `yaml:"trise"`
}

// StandardMode derives the timing for a standard-mode (Sm) bus running at
// speedHz from the peripheral clock. With the default 36 MHz clock and
// 100 kHz this yields CR2=0x24, CCR=0xB4, TRISE=0x25.
func StandardMode(pclkHz, speedHz uint32) (Timing, error) {
	if speedHz == 0 || speedHz > StandardModeMaxHz {
		return Timing{}, fmt.Errorf("%w: speed %d Hz outside standard mode", ErrInvalidTiming, speedHz)
	}
	if pclkHz%1_000_000 != 0 {
		return Timing{}, fmt.Errorf("%w: peripheral clock %d Hz is not a whole number of MHz", ErrInvalidTiming, pclkHz)
	}
	mhz := pclkHz / 1_000_000
	if mhz < minFreqMHz || mhz > maxFreqMHz {
		return Timing{}, fmt.Errorf("%w: peripheral clock %d MHz outside %d..%d", ErrInvalidTiming, mhz, minFreqMHz, maxFreqMHz)
	}
	ccr := pclkHz / (2 * speedHz)
	if ccr < minCCR {
		return Timing{}, fmt.Errorf("%w: clock %d MHz too slow for %d Hz", ErrInvalidTiming, mhz, speedHz)
	}
	if ccr > maxCCR {
		return Timing{}, fmt.Errorf("%w: speed %d Hz too slow for clock %d MHz", ErrInvalidTiming, speedHz, mhz)
	}
	// Sm allows 1000 ns rise time: TRISE = 1000ns / Tpclk + 1
	return Timing{
		Freq:  uint16(mhz),
		CCR:   uint16(ccr),
		TRISE: uint16(mhz + 1),
	}, nil
}

// DefaultTiming is the 100 kHz configuration on a 36 MHz peripheral clock.
func DefaultTiming() Timing {
	t, _ := StandardMode(DefaultPeripheralClockHz, StandardModeMaxHz)
	return t
}

// SpeedHz returns the SCL frequency the timing produces.
func (t Timing) SpeedHz() uint32 {
	if t.CCR == 0 {
		return 0
	}
	return uint32(t.Freq) * 1_000_000 / (2 * uint32(t.CCR))
}

// Program writes the timing into the controller. The peripheral must be
// disabled (PE clear) while CCR and TRISE change.
func (t Timing) Program(f File) {
	f.Store(CR2, (f.Load(CR2)&^CR2_FREQ)|(t.Freq&CR2_FREQ))
	f.Store(CCR, t.CCR)
	f.Store(TRISE, t.TRISE)
}
