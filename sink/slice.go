package sink

// Slice fills a caller-owned buffer front to back.
type Slice struct {
	buf []byte
	n   int
}

func NewSlice(buf []byte) *Slice {
	return &Slice{buf: buf}
}

func (s *Slice) Push(b byte) error {
	if s.n >= len(s.buf) {
		return ErrFull
	}
	s.buf[s.n] = b
	s.n++
	return nil
}

func (s *Slice) Space() int {
	return len(s.buf) - s.n
}

// Bytes returns the filled part of the buffer.
func (s *Slice) Bytes() []byte {
	return s.buf[:s.n]
}
