package capture

import (
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

// RetryDelay is the pause after a transient read failure.
const RetryDelay = 10 * time.Millisecond

// Pacer spaces successive reads at least Interval apart. A zero interval
// disables pacing, which is what live devices use.
type Pacer struct {
	Interval time.Duration
	clock    timeutil.Clock
	last     time.Time
}

// NewPacer returns a Pacer for the given frame rate. fps <= 0 disables
// pacing.
func NewPacer(fps float64, clock timeutil.Clock) *Pacer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var interval time.Duration
	if fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}
	return &Pacer{Interval: interval, clock: clock}
}

// Wait sleeps until Interval has passed since the previous Wait.
func (p *Pacer) Wait() {
	if p.Interval <= 0 {
		return
	}
	if !p.last.IsZero() {
		if elapsed := p.clock.Since(p.last); elapsed < p.Interval {
			p.clock.Sleep(p.Interval - elapsed)
		}
	}
	p.last = p.clock.Now()
}

// Reset forgets the previous read, so the next Wait does not sleep.
func (p *Pacer) Reset() {
	p.last = time.Time{}
}
