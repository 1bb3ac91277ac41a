package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert.wav")
	src := &Clip{SampleRate: 8000, Channels: 1, Samples: []int16{0, 1000, -1000, 32767, -32768}}

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, src.WriteWAV(f))
	require.NoError(t, f.Close())

	got, err := LoadWAVFile(path)
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestLoadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o644))
	_, err := LoadWAVFile(path)
	assert.Error(t, err)

	_, err = LoadWAVFile(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestBeep(t *testing.T) {
	c := Beep(16000)
	assert.Equal(t, 1, c.Channels)
	assert.Len(t, c.Samples, 8000)
	assert.Equal(t, int16(0), c.Samples[len(c.Samples)-1], "tail is silent")
}

func samplesOf(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func TestLooperFillWrapsAndScales(t *testing.T) {
	l := NewLooper(&Clip{SampleRate: 8000, Channels: 1, Samples: []int16{100, 200, 300}})
	l.SetVolume(0.5)

	buf := make([]byte, 10)
	l.Fill(buf)
	assert.Equal(t, []int16{0, 0, 0, 0, 0}, samplesOf(buf), "silent while stopped")

	l.Start()
	l.Fill(buf)
	assert.Equal(t, []int16{50, 100, 150, 50, 100}, samplesOf(buf))

	// Start while playing does not rewind
	l.Start()
	l.Fill(buf[:4])
	assert.Equal(t, []int16{150, 50}, samplesOf(buf[:4]))

	l.Stop()
	assert.False(t, l.Playing())
	l.Fill(buf)
	assert.Equal(t, []int16{0, 0, 0, 0, 0}, samplesOf(buf))
}

func TestVolumeClamped(t *testing.T) {
	l := NewLooper(nil)
	assert.Equal(t, DefaultVolume, l.Volume())
	l.SetVolume(3)
	assert.Equal(t, 1.0, l.Volume())
	l.SetVolume(-1)
	assert.Equal(t, 0.0, l.Volume())
}

func TestNopPlayLoopIdempotent(t *testing.T) {
	n := NewNop()
	var p Player = n
	require.NoError(t, p.PlayLoop())
	require.NoError(t, p.PlayLoop())
	assert.True(t, p.Playing())
	assert.Equal(t, 1, n.Starts())

	require.NoError(t, p.Stop())
	assert.False(t, p.Playing())
	require.NoError(t, p.PlayLoop())
	assert.Equal(t, 2, n.Starts())

	p.SetVolume(1.7)
	assert.Equal(t, 1.0, n.Volume())
	require.NoError(t, p.Close())
	assert.False(t, p.Playing())
}
