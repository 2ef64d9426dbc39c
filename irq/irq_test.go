package irq

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingMasker struct {
	disabled int
	restored int
}

func (c *countingMasker) Disable() State {
	c.disabled++
	return State(c.disabled)
}

func (c *countingMasker) Restore(state State) {
	c.restored++
}

func TestCritical_RestoresOnError(t *testing.T) {
	m := &countingMasker{}
	errBoom := errors.New("boom")
	err := Critical(m, func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, m.disabled)
	assert.Equal(t, 1, m.restored)
}

func TestCritical_RestoresOnPanic(t *testing.T) {
	m := &countingMasker{}
	assert.Panics(t, func() {
		_ = Critical(m, func() error { panic("boom") })
	})
	assert.Equal(t, 1, m.restored)
}

func TestGlobal_SerializesSections(t *testing.T) {
	var (
		wg     sync.WaitGroup
		inside int
		maxIn  int
		mx     sync.Mutex
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Critical(Global(), func() error {
				mx.Lock()
				inside++
				if inside > maxIn {
					maxIn = inside
				}
				mx.Unlock()
				mx.Lock()
				inside--
				mx.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxIn)
}

func TestDo(t *testing.T) {
	m := &countingMasker{}
	var ran bool
	Do(m, func() { ran = true })
	assert.True(t, ran)
	assert.Equal(t, 1, m.disabled)
	assert.Equal(t, 1, m.restored)

	assert.Panics(t, func() { Do(m, func() { panic("boom") }) })
	assert.Equal(t, 2, m.restored)
}
