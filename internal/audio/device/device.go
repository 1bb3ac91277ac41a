// Package device plays the alert sound on the default output device through
// miniaudio.
package device

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/linh0526/canh-bao-va-cham/internal/audio"
)

// Player is an audio.Player backed by a malgo playback device. The device
// runs for the player's lifetime and outputs silence while stopped.
type Player struct {
	looper *audio.Looper

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// New opens the default playback device for clip.
func New(clip *audio.Clip, volume float64) (*Player, error) {
	var backends []malgo.Backend
	switch runtime.GOOS {
	case "linux":
		backends = []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		backends = []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		backends = []malgo.Backend{malgo.BackendCoreaudio}
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio context init: %w", err)
	}

	p := &Player{looper: audio.NewLooper(clip), ctx: ctx}
	p.looper.SetVolume(volume)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(clip.Channels)
	cfg.SampleRate = uint32(clip.SampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			p.looper.Fill(out)
		},
	}
	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio device init: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio device start: %w", err)
	}
	p.device = dev
	log.Printf("alert audio ready: %d Hz, %d channel(s)", clip.SampleRate, clip.Channels)
	return p, nil
}

// PlayLoop implements audio.Player.
func (p *Player) PlayLoop() error {
	p.looper.Start()
	return nil
}

// Stop implements audio.Player.
func (p *Player) Stop() error {
	p.looper.Stop()
	return nil
}

// SetVolume implements audio.Player.
func (p *Player) SetVolume(v float64) { p.looper.SetVolume(v) }

// Playing implements audio.Player.
func (p *Player) Playing() bool { return p.looper.Playing() }

// Close stops playback and releases the device.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.looper.Stop()
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	if p.ctx != nil {
		err := p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
		return err
	}
	return nil
}
