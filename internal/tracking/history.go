package tracking

import (
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// Sample is one observation of an identity.
type Sample struct {
	CenterX  float64
	CenterY  float64
	Box      perception.BoundingBox
	Distance perception.Distance
	Time     time.Time
}

// History is a fixed-capacity ring of samples. The oldest sample is evicted
// on overflow.
type History struct {
	buf   []Sample
	start int
	n     int
}

// NewHistory returns an empty History holding at most capacity samples.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Sample, capacity)}
}

// Push appends s, evicting the oldest sample when full.
func (h *History) Push(s Sample) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of samples held.
func (h *History) Len() int { return h.n }

// Cap returns the fixed capacity.
func (h *History) Cap() int { return len(h.buf) }

// Last returns up to k most recent samples, oldest first.
func (h *History) Last(k int) []Sample {
	if k > h.n {
		k = h.n
	}
	if k <= 0 {
		return nil
	}
	out := make([]Sample, k)
	first := h.n - k
	for i := 0; i < k; i++ {
		out[i] = h.buf[(h.start+first+i)%len(h.buf)]
	}
	return out
}

// Samples returns all samples, oldest first.
func (h *History) Samples() []Sample { return h.Last(h.n) }
