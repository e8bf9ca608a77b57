package connection

import "sync"

// SequenceCounter numbers outbound voice packets. Every stream sending on
// one connection shares the counter, so values never repeat or go back.
type SequenceCounter struct {
	mu   sync.Mutex
	next uint64
}

// Next returns the number for the next packet and advances the counter.
func (s *SequenceCounter) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advance()
}

// Stamp hands send the next number and holds the counter until send
// returns, so packets reach the socket in number order. The number is
// consumed even if send fails.
func (s *SequenceCounter) Stamp(send func(seq uint64) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return send(s.advance())
}

// Peek returns the number Next will hand out.
func (s *SequenceCounter) Peek() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *SequenceCounter) advance() uint64 {
	v := s.next
	s.next++
	return v
}
