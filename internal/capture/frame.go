// Package capture acquires video frames on a producer goroutine and hands
// the most recent one to the consumer through a single-slot mailbox.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrSourceClosed is returned by a Reader once it has no more frames.
	ErrSourceClosed = errors.New("capture: source closed")
	// ErrAlreadyRunning is returned by Start on a running Producer.
	ErrAlreadyRunning = errors.New("capture: producer already running")
)

// Frame is one BGR image, 3 bytes per pixel, row-major.
type Frame struct {
	Seq    uint64
	Time   time.Time
	Width  int
	Height int
	Data   []byte
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Data) < f.Width*f.Height*3
}

// Reader is a blocking frame reader such as a camera device or a video file.
// Read returns ErrSourceClosed when the source is exhausted.
type Reader interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Mailbox is a single-slot, latest-wins frame buffer. Put never blocks on
// the consumer and overwrites any frame that has not been taken yet.
type Mailbox struct {
	mu      sync.Mutex
	slot    Frame
	full    bool
	dropped uint64
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Put stores f, replacing any unconsumed frame. It reports whether a frame
// was dropped.
func (m *Mailbox) Put(f Frame) (dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		dropped = true
		m.dropped++
	}
	m.slot = f
	m.full = true
	return dropped
}

// Take removes and returns the stored frame, if any.
func (m *Mailbox) Take() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return Frame{}, false
	}
	f := m.slot
	m.slot = Frame{}
	m.full = false
	return f, true
}

// Clear discards any stored frame.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot = Frame{}
	m.full = false
}

// Dropped returns the number of frames overwritten before being taken.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
