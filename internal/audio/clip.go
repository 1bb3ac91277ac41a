// Package audio loads the alert sound and drives looping playback.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultVolume is the playback gain applied when none is configured.
const DefaultVolume = 0.7

// Clip is a decoded 16-bit PCM sound.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16 // interleaved
}

// LoadWAVFile decodes a WAV file from disk.
func LoadWAVFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alert sound: %w", err)
	}
	defer f.Close()
	return LoadWAV(f)
}

// LoadWAV decodes a 16, 24 or 32-bit WAV stream into 16-bit samples.
func LoadWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}
	if dec.NumChans != 1 && dec.NumChans != 2 {
		return nil, fmt.Errorf("unsupported number of channels: %d", dec.NumChans)
	}
	shift := 0
	switch dec.BitDepth {
	case 16:
	case 24:
		shift = 8
	case 32:
		shift = 16
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}
	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s >> shift)
	}
	return &Clip{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    samples,
	}, nil
}

// Beep synthesises an 880 Hz tone followed by an equal gap. It is used when
// no sound file is configured.
func Beep(sampleRate int) *Clip {
	const (
		toneHz   = 880.0
		onFrac   = 0.5
		duration = 0.5 // seconds
	)
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		if float64(i) > float64(n)*onFrac {
			break
		}
		v := math.Sin(2 * math.Pi * toneHz * float64(i) / float64(sampleRate))
		samples[i] = int16(v * math.MaxInt16 * 0.8)
	}
	return &Clip{SampleRate: sampleRate, Channels: 1, Samples: samples}
}

// WriteWAV encodes the clip as a 16-bit WAV stream.
func (c *Clip) WriteWAV(w io.WriteSeeker) error {
	enc := wav.NewEncoder(w, c.SampleRate, 16, c.Channels, 1)
	data := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: c.SampleRate, NumChannels: c.Channels},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Looper fills output buffers from a clip, wrapping at the end. It is
// silent while stopped.
type Looper struct {
	mu      sync.Mutex
	clip    *Clip
	pos     int
	playing bool
	volume  float64
}

// NewLooper creates a stopped Looper at DefaultVolume.
func NewLooper(clip *Clip) *Looper {
	return &Looper{clip: clip, volume: DefaultVolume}
}

// Start begins playback from the start of the clip. It is a no-op while
// already playing.
func (l *Looper) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.playing {
		return
	}
	l.playing = true
	l.pos = 0
}

// Stop silences output.
func (l *Looper) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.playing = false
}

// Playing reports whether the loop is active.
func (l *Looper) Playing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playing
}

// SetVolume sets the gain, clamped to [0, 1].
func (l *Looper) SetVolume(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.volume = ClampVolume(v)
}

// Volume returns the current gain.
func (l *Looper) Volume() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.volume
}

// Fill writes little-endian S16 samples into out, looping the clip.
func (l *Looper) Fill(out []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.playing || l.clip == nil || len(l.clip.Samples) == 0 {
		clear(out)
		return
	}
	samples := l.clip.Samples
	for i := 0; i+1 < len(out); i += 2 {
		s := int16(float64(samples[l.pos]) * l.volume)
		binary.LittleEndian.PutUint16(out[i:], uint16(s))
		l.pos = (l.pos + 1) % len(samples)
	}
}
