package render

import (
	"sync"
	"time"
)

// FPSMeter reports the frame rate measured over the last full second.
type FPSMeter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	fps         float64
}

// Tick records a frame at t and returns the current rate.
func (m *FPSMeter) Tick(t time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.windowStart.IsZero() {
		m.windowStart = t
	}
	m.count++
	if elapsed := t.Sub(m.windowStart); elapsed >= time.Second {
		m.fps = float64(m.count) / elapsed.Seconds()
		m.count = 0
		m.windowStart = t
	}
	return m.fps
}

// FPS returns the last measured rate.
func (m *FPSMeter) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}
