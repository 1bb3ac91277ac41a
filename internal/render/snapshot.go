package render

import (
	"sync"
	"time"
)

// Snapshot holds the most recent encoded frame for HTTP readers.
type Snapshot struct {
	mu   sync.RWMutex
	data []byte
	seq  uint64
	at   time.Time
}

// Store replaces the held image. data is retained; callers must not reuse it.
func (s *Snapshot) Store(data []byte, seq uint64, at time.Time) {
	s.mu.Lock()
	s.data = data
	s.seq = seq
	s.at = at
	s.mu.Unlock()
}

// Load returns the held image, or false when nothing has been stored.
func (s *Snapshot) Load() (data []byte, seq uint64, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, 0, time.Time{}, false
	}
	return s.data, s.seq, s.at, true
}
