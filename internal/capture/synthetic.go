package capture

import (
	"context"

	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

// SyntheticConfig describes a generated frame stream.
type SyntheticConfig struct {
	Width  int
	Height int
	FPS    float64 // paced like a file; 0 disables pacing
	Frames int     // frames before ErrSourceClosed; 0 means unlimited
	Loop   bool    // restart the sequence instead of closing
	Fill   byte    // grey level of every pixel
}

// Synthetic generates uniform frames without any capture hardware. It
// backs dev mode and tests.
type Synthetic struct {
	cfg    SyntheticConfig
	clock  timeutil.Clock
	pacer  *Pacer
	seq    uint64
	pos    int
	closed bool
}

// NewSynthetic creates a Synthetic reader. A nil clock uses the real clock.
func NewSynthetic(cfg SyntheticConfig, clock timeutil.Clock) *Synthetic {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	return &Synthetic{cfg: cfg, clock: clock, pacer: NewPacer(cfg.FPS, clock)}
}

// Read implements Reader.
func (s *Synthetic) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.closed {
		return Frame{}, ErrSourceClosed
	}
	if s.cfg.Frames > 0 && s.pos >= s.cfg.Frames {
		if !s.cfg.Loop {
			return Frame{}, ErrSourceClosed
		}
		s.pos = 0
		s.pacer.Reset()
		diagf("synthetic source looped after %d frames", s.cfg.Frames)
	}
	s.pacer.Wait()

	data := make([]byte, s.cfg.Width*s.cfg.Height*3)
	if s.cfg.Fill != 0 {
		for i := range data {
			data[i] = s.cfg.Fill
		}
	}
	s.seq++
	s.pos++
	return Frame{
		Seq:    s.seq,
		Time:   s.clock.Now(),
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		Data:   data,
	}, nil
}

// Close implements Reader.
func (s *Synthetic) Close() error {
	s.closed = true
	return nil
}
