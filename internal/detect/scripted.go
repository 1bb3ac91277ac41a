package detect

import (
	"sync"

	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// Scripted replays a fixed sequence of per-frame detections. After the last
// step it repeats the final step, or restarts when Loop is set.
type Scripted struct {
	mu    sync.Mutex
	steps [][]perception.Detection
	next  int
	Loop  bool
}

// NewScripted returns a detector that yields steps[i] on the i-th call.
func NewScripted(steps ...[]perception.Detection) *Scripted {
	return &Scripted{steps: steps}
}

// Detect implements Detector.
func (s *Scripted) Detect(capture.Frame) ([]perception.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return nil, nil
	}
	i := s.next
	if i >= len(s.steps) {
		if s.Loop {
			i = 0
		} else {
			i = len(s.steps) - 1
		}
	}
	s.next = i + 1
	out := make([]perception.Detection, len(s.steps[i]))
	copy(out, s.steps[i])
	return out, nil
}

// Close implements Detector.
func (s *Scripted) Close() error { return nil }
