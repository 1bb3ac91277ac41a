package audio

import "sync"

// Player plays the alert sound in a loop while the driver is being warned.
type Player interface {
	// PlayLoop starts looping playback. Calling it while playing is a no-op.
	PlayLoop() error
	// Stop silences playback.
	Stop() error
	// SetVolume sets the gain, clamped to [0, 1].
	SetVolume(v float64)
	Playing() bool
	Close() error
}

// Nop is a silent Player that records its state. It stands in for an audio
// device in dev mode and tests.
type Nop struct {
	mu      sync.Mutex
	playing bool
	volume  float64
	starts  int
}

// NewNop returns a stopped Nop player at DefaultVolume.
func NewNop() *Nop { return &Nop{volume: DefaultVolume} }

// PlayLoop implements Player.
func (n *Nop) PlayLoop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.playing {
		n.playing = true
		n.starts++
	}
	return nil
}

// Stop implements Player.
func (n *Nop) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playing = false
	return nil
}

// SetVolume implements Player.
func (n *Nop) SetVolume(v float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volume = ClampVolume(v)
}

// Volume returns the last volume set.
func (n *Nop) Volume() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volume
}

// Playing implements Player.
func (n *Nop) Playing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playing
}

// Starts returns how many times playback actually started.
func (n *Nop) Starts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.starts
}

// Close implements Player.
func (n *Nop) Close() error { return n.Stop() }
