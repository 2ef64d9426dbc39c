package sim

import (
	"sync"
)

// Idle is what a released bus reads as.
const Idle byte = 0xFF

// Memory is a scripted device: reads are served from a queue of response
// bytes, writes are recorded per transaction.
type Memory struct {
	mx       sync.Mutex
	address  uint8
	response []byte
	served   int
	writes   [][]byte
	current  []byte
	writing  bool
	// Refuse makes the device NACK its address.
	Refuse bool
	// NackAfter makes the device NACK the n-th data byte written in a
	// transaction (1-based); zero accepts everything.
	NackAfter int
}

func NewMemory(address uint8, response ...byte) *Memory {
	return &Memory{address: address, response: append([]byte(nil), response...)}
}

func (m *Memory) Addr() uint8 {
	return m.address
}

// Queue appends bytes to the read stream.
func (m *Memory) Queue(b ...byte) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.response = append(m.response, b...)
}

// Pending returns the number of queued bytes not read yet.
func (m *Memory) Pending() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return len(m.response)
}

// Served returns how many bytes the master clocked out of the device.
func (m *Memory) Served() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.served
}

// Writes returns the data of every completed write transaction.
func (m *Memory) Writes() [][]byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

func (m *Memory) Begin(read bool) bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.Refuse {
		return false
	}
	m.writing = !read
	m.current = []byte{}
	return true
}

func (m *Memory) Write(b byte) bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.current = append(m.current, b)
	return m.NackAfter == 0 || len(m.current) < m.NackAfter
}

func (m *Memory) Read() byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.served++
	if len(m.response) == 0 {
		return Idle
	}
	b := m.response[0]
	m.response = m.response[1:]
	return b
}

func (m *Memory) End() {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.writing {
		m.writes = append(m.writes, m.current)
	}
	m.writing = false
	m.current = nil
}
