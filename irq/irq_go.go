//go:build !tinygo

package irq

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// Without a global interrupt mask, critical sections of all handles
// serialize on one lock instead.
type lockMasker struct {
	mx sync.Mutex
}

var global = &lockMasker{}

// Global returns the platform masker.
func Global() Masker {
	return global
}

func (l *lockMasker) Disable() State {
	l.mx.Lock()
	return 0
}

func (l *lockMasker) Restore(State) {
	l.mx.Unlock()
}
