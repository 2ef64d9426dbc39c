//go:build tinygo

package irq

import "runtime/interrupt"

type State = interrupt.State

type globalMasker struct{}

// Global returns the masker backed by the core's global interrupt mask.
func Global() Masker {
	return globalMasker{}
}

// Disable disables interrupts and returns the previous state
func (globalMasker) Disable() State {
	return interrupt.Disable()
}

// Restore restores the interrupt state
func (globalMasker) Restore(state State) {
	interrupt.Restore(state)
}
