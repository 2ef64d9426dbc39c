package sink

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	for _, b := range []byte{0x01, 0x02, 0x03} {
		require.NoError(t, q.Push(b))
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, q.Space())
	b, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, byte(0x01), b)

	out := make([]byte, 8)
	n := q.Drain(out)
	assert.Equal(t, []byte{0x02, 0x03}, out[:n])
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 4, q.Space())
}

func TestQueue_RejectsWhenFull(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Push(0xAA))
	require.NoError(t, q.Push(0xBB))
	assert.ErrorIs(t, q.Push(0xCC), ErrFull)

	out := make([]byte, 2)
	assert.Equal(t, 2, q.Drain(out))
	assert.Equal(t, []byte{0xAA, 0xBB}, out, "full queue must not overwrite the oldest byte")
}

func TestQueue_DefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, DefaultCapacity, q.Cap())
	assert.Equal(t, DefaultCapacity, q.Space())
}

func TestQueue_SingleProducerSingleConsumer(t *testing.T) {
	const total = 10_000
	q := NewQueue(16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if q.Push(byte(i)) != nil {
				runtime.Gosched()
				continue
			}
			i++
		}
	}()
	received := make([]byte, 0, total)
	buf := make([]byte, 7)
	for len(received) < total {
		n := q.Drain(buf)
		if n == 0 {
			runtime.Gosched()
			continue
		}
		received = append(received, buf[:n]...)
	}
	wg.Wait()
	for i, b := range received {
		if byte(i) != b {
			t.Fatalf("byte %d out of order: got %#x", i, b)
		}
	}
}

func TestSlice(t *testing.T) {
	buf := make([]byte, 2)
	s := NewSlice(buf)
	assert.Equal(t, 2, s.Space())
	require.NoError(t, s.Push(0x10))
	require.NoError(t, s.Push(0x20))
	assert.ErrorIs(t, s.Push(0x30), ErrFull)
	assert.Equal(t, []byte{0x10, 0x20}, s.Bytes())
	assert.Equal(t, 0, s.Space())
}
