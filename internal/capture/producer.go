package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

// Producer reads frames from a Reader on its own goroutine and publishes
// the latest one to a Mailbox. It never waits for the consumer.
type Producer struct {
	reader Reader
	box    *Mailbox
	clock  timeutil.Clock

	mu      sync.Mutex
	running bool
	active  bool
	err     error
	cancel  context.CancelFunc
	doneCh  chan struct{}

	fps fpsMeter
}

// NewProducer creates a Producer for r. A nil clock uses the real clock.
func NewProducer(r Reader, clock timeutil.Clock) *Producer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Producer{reader: r, box: NewMailbox(), clock: clock}
}

// Start launches the capture goroutine.
func (p *Producer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.active = true
	p.err = nil
	p.cancel = cancel
	p.doneCh = make(chan struct{})
	p.box.Clear()
	p.fps.reset(p.clock.Now())

	go p.run(ctx, p.doneCh)
	diagf("producer started")
	return nil
}

func (p *Producer) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		f, err := p.reader.Read(ctx)
		if err != nil {
			p.mu.Lock()
			p.active = false
			if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrSourceClosed) {
				p.err = err
				opsf("frame source failed: %v", err)
			} else if errors.Is(err, ErrSourceClosed) {
				diagf("frame source exhausted")
			}
			p.mu.Unlock()
			return
		}
		if p.box.Put(f) {
			tracef("frame %d overwrote an unconsumed frame", f.Seq)
		}
		if fps, ok := p.fps.tick(p.clock.Now()); ok {
			tracef("capture fps=%.1f", fps)
		}
		if ctx.Err() != nil {
			p.mu.Lock()
			p.active = false
			p.mu.Unlock()
			return
		}
	}
}

// Stop cancels the capture goroutine, waits for it to exit and releases the
// reader. It is safe to call multiple times.
func (p *Producer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	done := p.doneCh
	p.mu.Unlock()

	<-done

	p.mu.Lock()
	p.running = false
	p.active = false
	p.mu.Unlock()
	p.box.Clear()

	diagf("producer stopped, %d frames dropped", p.box.Dropped())
	return p.reader.Close()
}

// Latest returns the most recent unconsumed frame.
func (p *Producer) Latest() (Frame, bool) {
	return p.box.Take()
}

// Active reports whether the source is still delivering frames.
func (p *Producer) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Err returns the error that ended capture, if any. Exhausting a
// non-looping file is not an error.
func (p *Producer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// FPS returns the capture rate measured over the last full second.
func (p *Producer) FPS() float64 {
	return p.fps.value()
}

// Dropped returns the number of frames overwritten before the consumer took
// them.
func (p *Producer) Dropped() uint64 {
	return p.box.Dropped()
}

// fpsMeter counts frames and publishes a rate once per second.
type fpsMeter struct {
	mu    sync.Mutex
	start time.Time
	count int
	fps   float64
}

func (m *fpsMeter) reset(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = now
	m.count = 0
	m.fps = 0
}

func (m *fpsMeter) tick(now time.Time) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	elapsed := now.Sub(m.start)
	if elapsed < time.Second {
		return m.fps, false
	}
	m.fps = float64(m.count) / elapsed.Seconds()
	m.count = 0
	m.start = now
	return m.fps, true
}

func (m *fpsMeter) value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}
