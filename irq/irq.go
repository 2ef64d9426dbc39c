// Package irq provides the exclusive-access scope used around the register
// pairs that the controller errata require to run without interruption.
package irq

// Masker suspends asynchronous interrupt handling. Disable returns the
// previous state, which must be handed back to Restore.
type Masker interface {
	Disable() State
	Restore(state State)
}

// Critical runs fn with interrupts masked and restores them on every exit
// path, including a panic in fn. Keep fn to the register accesses that need
// the protection: anything wider delays unrelated interrupt consumers.
func Critical(m Masker, fn func() error) error {
	state := m.Disable()
	defer m.Restore(state)
	return fn()
}

// Do is Critical for sections that cannot fail.
func Do(m Masker, fn func()) {
	state := m.Disable()
	defer m.Restore(state)
	fn()
}
